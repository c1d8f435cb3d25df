// Copyright 2026 The Rep Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dict

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hasher turns an arbitrary byte string key into the fixed-width digest the
// hash table buckets on. The digest width bounds the table's maximum
// capacity (it must have at least H bits to support 2^H buckets).
type Hasher interface {
	Hash(key []byte) []byte
	Size() int
}

// SHA256Hasher is the default Hasher: the cryptographic digest is treated
// as an out-of-scope 32-byte oracle, so the standard library's
// implementation is used directly rather than a third-party one.
type SHA256Hasher struct{}

func (SHA256Hasher) Hash(key []byte) []byte {
	sum := sha256.Sum256(key)
	return sum[:]
}

func (SHA256Hasher) Size() int { return sha256.Size }

// XXHasher is a fast, non-cryptographic alternative for tests and
// applications that don't need collision resistance across untrusted
// input, trading digest width (8 bytes, 64 bits of prefix) for speed.
type XXHasher struct{}

func (XXHasher) Hash(key []byte) []byte {
	sum := xxhash.Sum64(key)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, sum)
	return buf
}

func (XXHasher) Size() int { return 8 }
