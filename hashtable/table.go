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

// Package hashtable implements a collision-splitting hash table: a
// power-of-two array.FixedArray of fixed-size items, indexed by the top H
// bits of each item's key, grown on collision directly to the smallest H
// that separates the colliding keys (for a batched Update, every colliding
// pair in the batch at once).
package hashtable

import (
	"bytes"
	"io"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/karl3wm/rep/array"
	"github.com/karl3wm/rep/internal/d"
)

// KeyFunc extracts an item's hash key, e.g. the leading bytes of a fixed
// record. Set requires KeyFunc(item) to equal the hash passed alongside it.
type KeyFunc func(item []byte) []byte

// Table is a collision-splitting hash table backed by a FixedArray. Bucket
// i of a table at capacity C = 2^H holds the item whose key's top H bits
// equal i, or the sentinel (all-zero item) if no such item has been
// inserted.
type Table struct {
	arr      *array.FixedArray
	keyFn    KeyFunc
	itemSize int
	sentinel []byte
}

// New wraps arr, whose current length must already be a power of two (or
// zero, for a table that has never received an insert).
func New(arr *array.FixedArray, keyFn KeyFunc) (*Table, error) {
	c := arr.Len()
	if c != 0 && !isPowerOfTwo(c) {
		return nil, errors.Errorf("hashtable: array length %d is not a power of two", c)
	}
	return &Table{
		arr:      arr,
		keyFn:    keyFn,
		itemSize: arr.ItemSize(),
		sentinel: make([]byte, arr.ItemSize()),
	}, nil
}

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

func log2(n int) int { return bits.Len(uint(n)) - 1 }

// Capacity is the current number of buckets, C = 2^H.
func (t *Table) Capacity() int { return t.arr.Len() }

// Array returns the backing FixedArray, e.g. to reach its Document for
// persistence.
func (t *Table) Array() *array.FixedArray { return t.arr }

// bucket returns the top-h-bits bucket index for a hash, treating hash as a
// big-endian bit string.
func bucket(hash []byte, h int) int {
	if h == 0 {
		return 0
	}
	nbytes := (h + 7) / 8
	v := uint64(0)
	for i := 0; i < nbytes; i++ {
		v = v<<8 | uint64(hash[i])
	}
	shift := uint(nbytes*8 - h)
	return int(v >> shift)
}

func isSentinel(t *Table, item []byte) bool { return bytes.Equal(item, t.sentinel) }

// Get returns the item in hash's bucket: the sentinel (all-zero) item if
// the table or that bucket is empty. The occupant's key is not compared
// with hash, so the item returned may belong to a different key that
// shares the bucket at the current H.
func (t *Table) Get(hash []byte) ([]byte, error) {
	if t.arr.Len() == 0 {
		return t.sentinel, nil
	}
	h := log2(t.arr.Len())
	return t.arr.Get(bucket(hash, h))
}

// Set inserts or overwrites the item keyed by hash, growing the table
// (doubling one or more times) if hash collides with a different key
// already occupying its bucket.
func (t *Table) Set(hash, item []byte) error {
	d.PanicIfTrue(isSentinel(t, item), "hashtable: cannot store the sentinel value")
	d.PanicIfFalse(bytes.Equal(t.keyFn(item), hash), "hashtable: keyFn(item) does not match hash")

	if t.arr.Len() == 0 {
		if err := t.bootstrap(); err != nil {
			return err
		}
	}
	h := log2(t.arr.Len())
	b := bucket(hash, h)
	occupant, err := t.arr.Get(b)
	if err != nil {
		return err
	}
	if isSentinel(t, occupant) || bytes.Equal(t.keyFn(occupant), hash) {
		return t.arr.Set(b, item)
	}

	newH := separatingH(hash, t.keyFn(occupant), h, len(hash)*8)
	if err := t.expandTo(newH); err != nil {
		return err
	}
	return t.arr.Set(bucket(hash, newH), item)
}

// Delete writes the sentinel into hash's bucket. The occupant's key is not
// compared with hash: if the bucket holds an item with a different key,
// that item is removed. On an empty table Delete does nothing.
func (t *Table) Delete(hash []byte) error {
	if t.arr.Len() == 0 {
		return nil
	}
	h := log2(t.arr.Len())
	return t.arr.Set(bucket(hash, h), t.sentinel)
}

// ForEach calls fn with (key, item) for every occupied bucket, in bucket
// order.
func (t *Table) ForEach(fn func(hash, item []byte) error) error {
	return t.arr.ForEachItem(func(item []byte) error {
		if isSentinel(t, item) {
			return nil
		}
		return fn(t.keyFn(item), item)
	})
}

// ForEachIndexed is ForEach plus the occupied bucket's index, letting a
// caller re-verify the bucket invariant (index == Bucket(key, H())) as it
// streams, the way Dict.Keys/Items do.
func (t *Table) ForEachIndexed(fn func(idx int, hash, item []byte) error) error {
	idx := 0
	return t.arr.ForEachItem(func(item []byte) error {
		i := idx
		idx++
		if isSentinel(t, item) {
			return nil
		}
		return fn(i, t.keyFn(item), item)
	})
}

// IsSentinel reports whether item is this table's sentinel (empty-bucket)
// value.
func (t *Table) IsSentinel(item []byte) bool { return isSentinel(t, item) }

// H is the current hash-prefix bit width, or -1 if the table is empty
// (Capacity() == 0).
func (t *Table) H() int {
	c := t.Capacity()
	if c == 0 {
		return -1
	}
	return log2(c)
}

// Bucket is the exported form of the bucketing function, for callers
// (like Dict) that need to re-derive a bucket index outside
// the table itself.
func Bucket(hash []byte, h int) int { return bucket(hash, h) }

func (t *Table) bootstrap() error {
	items := [][]byte{t.sentinel, t.sentinel}
	return t.arr.SetRange(0, 0, items)
}

// separatingH finds the smallest H' > h at which hash and otherKey land in
// different buckets, the "pre-walk the diverging bit" shortcut sanctioned
// in place of growing one bit at a time and re-checking.
func separatingH(hash, otherKey []byte, h, maxBits int) int {
	for h2 := h + 1; ; h2++ {
		if h2 > maxBits {
			d.Corrupt("hashtable: keys are identical in every bit and cannot be separated by growth")
		}
		if bucket(hash, h2) != bucket(otherKey, h2) {
			return h2
		}
	}
}

// expandTo grows the table from its current capacity to 2^newH buckets,
// streaming the new array contents: for each old bucket, in order, it
// emits E = 2^newH / 2^oldH items, all sentinel except at the sub-slot
// corresponding to that bucket's occupant's new low bits (if it has one).
func (t *Table) expandTo(newH int) error {
	oldC := t.arr.Len()
	oldH := log2(oldC)
	newC := 1 << uint(newH)
	e := newC / oldC
	src := &expandSource{t: t, oldC: oldC, oldH: oldH, newH: newH, e: e}
	return t.arr.SetRangeStream(0, oldC, src)
}

type expandSource struct {
	t                   *Table
	oldC, oldH, newH, e int
	oldIdx, sub         int
	cur                 []byte
	curFetched          bool
}

func (s *expandSource) Len() int { return s.oldC * s.e }

func (s *expandSource) Next() ([]byte, error) {
	if s.oldIdx >= s.oldC {
		return nil, io.EOF
	}
	if !s.curFetched {
		item, err := s.t.arr.Get(s.oldIdx)
		if err != nil {
			return nil, err
		}
		s.cur = item
		s.curFetched = true
	}
	out := s.t.sentinel
	if !isSentinel(s.t, s.cur) {
		key := s.t.keyFn(s.cur)
		if bucket(key, s.newH)%s.e == s.sub {
			out = s.cur
		}
	}
	s.sub++
	if s.sub == s.e {
		s.sub = 0
		s.oldIdx++
		s.curFetched = false
	}
	return out, nil
}
