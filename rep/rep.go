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

// Package rep is the thin fan-out layer over a store.Store that lets
// callers alloc/fetch payloads larger than the store's AllocSize by
// splitting them into AllocSize-sized chunks and concatenating the
// resulting ids.
package rep

import (
	"github.com/karl3wm/rep/store"
)

// Rep fans a single logical payload out across one or more store
// allocations. Its own "id" for a payload is simply the concatenation of
// the underlying ids. Document and FixedArray do not go through Rep: they
// take a store.Store directly and do their own chunking.
type Rep struct {
	Store store.Store
}

// New wraps a store.Store in a Rep.
func New(s store.Store) *Rep {
	return &Rep{Store: s}
}

func (r *Rep) IDSize() int    { return r.Store.IDSize() }
func (r *Rep) AllocSize() int { return r.Store.AllocSize() }

// Alloc splits data into AllocSize()-sized pieces, allocates each in the
// backing store, and returns the concatenation of the resulting ids.
func (r *Rep) Alloc(data []byte) ([]byte, error) {
	sz := r.Store.AllocSize()
	if len(data) == 0 {
		return nil, nil
	}
	ids := make([]byte, 0, ((len(data)+sz-1)/sz)*r.Store.IDSize())
	for off := 0; off < len(data); off += sz {
		end := off + sz
		if end > len(data) {
			end = len(data)
		}
		id, err := r.Store.Alloc(data[off:end])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id...)
	}
	return ids, nil
}

// Fetch splits idConcat into IDSize()-sized pieces, fetches each, and
// concatenates the payloads back into the original data.
func (r *Rep) Fetch(idConcat []byte) ([]byte, error) {
	sz := r.Store.IDSize()
	if len(idConcat) == 0 {
		return nil, nil
	}
	var out []byte
	for off := 0; off < len(idConcat); off += sz {
		chunk, err := r.Store.Fetch(idConcat[off : off+sz])
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// FetchSize splits idConcat and sums the sizes of every piece, without
// materializing the payloads.
func (r *Rep) FetchSize(idConcat []byte) (int, error) {
	sz := r.Store.IDSize()
	total := 0
	for off := 0; off < len(idConcat); off += sz {
		n, err := r.Store.FetchSize(idConcat[off : off+sz])
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Dealloc deallocs every constituent id of idConcat.
func (r *Rep) Dealloc(idConcat []byte) error {
	sz := r.Store.IDSize()
	for off := 0; off < len(idConcat); off += sz {
		if err := r.Store.Dealloc(idConcat[off : off+sz]); err != nil {
			return err
		}
	}
	return nil
}
