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

// Package store defines the backing byte-allocator interface shared by the
// local memory-mapped implementation and the remote bundle-backed
// implementation, and the local implementation itself.
package store

import "github.com/pkg/errors"

// ErrNotFound is returned by Fetch/FetchSize when an id does not resolve to
// a live payload. The local store does not detect this case (fetching a
// dealloc'd id is undefined behavior per spec); it is surfaced by
// implementations, like the remote store, that can distinguish it cheaply.
var ErrNotFound = errors.New("store: id not found")

// ErrStoreFull is returned when an allocation cannot be satisfied because
// the backing medium refused to grow (disk full, remote quota, etc). It is
// non-retriable.
var ErrStoreFull = errors.New("store: allocation failed, backing medium is full")

// Store allocates opaque fixed-width identifiers for byte payloads no
// larger than AllocSize() and fetches them back. Two ids are equal iff they
// denote the same payload; the store never interprets id contents.
//
// All methods are synchronous and run to completion; the core assumes a
// single-threaded cooperative caller and holds no internal locks.
type Store interface {
	// IDSize is the fixed width, in bytes, of every id this store returns.
	IDSize() int
	// AllocSize is the maximum payload length accepted by Alloc.
	AllocSize() int

	// Alloc stores data (len(data) <= AllocSize()) and returns its id.
	// A successful Alloc is visible to a subsequent Fetch in the same
	// process.
	Alloc(data []byte) (id []byte, err error)
	// Fetch returns a copy of the payload addressed by id.
	Fetch(id []byte) ([]byte, error)
	// FetchSize returns the payload length addressed by id, without
	// copying the payload itself.
	FetchSize(id []byte) (int, error)
	// Dealloc invalidates id. Fetching a dealloc'd id afterwards is
	// undefined behavior. Dealloc must precede any reuse of the freed
	// region by a subsequent Alloc.
	Dealloc(id []byte) error

	// Shrink reclaims backing space made available by Dealloc calls.
	// Implementations that cannot reclaim space (e.g. the remote store)
	// treat this as a no-op.
	Shrink() error

	// Close releases resources held by the store (file handles, mappings,
	// network clients). Shrink is not implied; callers that want the
	// backing medium compacted on exit call Shrink first.
	Close() error
}
