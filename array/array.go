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

// Package array implements FixedArray, a fixed-stride view of a
// document.Document.
package array

import (
	"github.com/pkg/errors"

	"github.com/karl3wm/rep/document"
	"github.com/karl3wm/rep/internal/d"
)

// FixedArray views a Document as a sequence of equal-width items.
type FixedArray struct {
	doc      *document.Document
	itemSize int
}

// New wraps doc as a FixedArray of the given item size. doc's length must
// already be a multiple of itemSize.
func New(doc *document.Document, itemSize int) (*FixedArray, error) {
	if itemSize <= 0 {
		return nil, errors.New("array: item size must be positive")
	}
	if doc.Len()%itemSize != 0 {
		return nil, errors.Errorf("array: document length %d is not a multiple of item size %d", doc.Len(), itemSize)
	}
	return &FixedArray{doc: doc, itemSize: itemSize}, nil
}

// ItemSize is the fixed width, in bytes, of every item.
func (a *FixedArray) ItemSize() int { return a.itemSize }

// Len is the number of items.
func (a *FixedArray) Len() int { return a.doc.Len() / a.itemSize }

// Document returns the backing document (e.g. to obtain its id for
// persistence).
func (a *FixedArray) Document() *document.Document { return a.doc }

// Get returns a copy of item i.
func (a *FixedArray) Get(i int) ([]byte, error) {
	if i < 0 || i >= a.Len() {
		return nil, errors.Errorf("array: index %d out of range [0, %d)", i, a.Len())
	}
	sz := a.itemSize
	return a.doc.ReadRange(i*sz, (i+1)*sz)
}

// GetRange returns the items in [lo, hi) as a single concatenated
// []byte slice of (hi-lo)*ItemSize() bytes; use Slice to get individual
// items back out.
func (a *FixedArray) GetRange(lo, hi int) ([]byte, error) {
	if lo < 0 || hi > a.Len() || lo > hi {
		return nil, errors.Errorf("array: range [%d, %d) out of bounds for length %d", lo, hi, a.Len())
	}
	sz := a.itemSize
	return a.doc.ReadRange(lo*sz, hi*sz)
}

// Slice splits a byte run returned by GetRange (or any multiple-of-itemSize
// buffer) back into individual items.
func (a *FixedArray) Slice(data []byte) [][]byte {
	sz := a.itemSize
	items := make([][]byte, 0, len(data)/sz)
	for off := 0; off < len(data); off += sz {
		items = append(items, data[off:off+sz])
	}
	return items
}

// SetRange replaces items [lo, hi) with the given items, each of which
// must be exactly ItemSize() bytes. The array may grow or shrink.
func (a *FixedArray) SetRange(lo, hi int, items [][]byte) error {
	return a.SetRangeStream(lo, hi, SliceSource(items, a.itemSize))
}

// Set replaces item i, requiring len(item) == ItemSize().
func (a *FixedArray) Set(i int, item []byte) error {
	return a.SetRange(i, i+1, [][]byte{item})
}

// Delete removes items [lo, hi); equivalent to a zero-length replace.
func (a *FixedArray) Delete(lo, hi int) error {
	return a.SetRange(lo, hi, nil)
}

// Insert inserts item before index i.
func (a *FixedArray) Insert(i int, item []byte) error {
	return a.SetRange(i, i, [][]byte{item})
}

// SetRangeStream replaces items [lo, hi) with the items an ItemSource
// lazily yields, avoiding materializing a large replacement sequence.
func (a *FixedArray) SetRangeStream(lo, hi int, items ItemSource) error {
	if lo < 0 || hi > a.Len() || lo > hi {
		return errors.Errorf("array: range [%d, %d) out of bounds for length %d", lo, hi, a.Len())
	}
	sz := a.itemSize
	return a.doc.WriteRange(lo*sz, hi*sz, &itemByteSource{items: items, itemSize: sz})
}

// ForEachItem streams fixed-size items across the document's chunk
// boundaries, maintaining a rollover buffer of up to ItemSize()-1 bytes so
// items are never split across the callback boundary.
func (a *FixedArray) ForEachItem(fn func(item []byte) error) error {
	sz := a.itemSize
	buf := make([]byte, 0, sz)
	err := a.doc.ForEachChunk(func(chunk []byte) error {
		off := 0
		if len(buf) > 0 {
			need := sz - len(buf)
			if need > len(chunk) {
				buf = append(buf, chunk...)
				return nil
			}
			buf = append(buf, chunk[:need]...)
			if err := fn(buf); err != nil {
				return err
			}
			buf = buf[:0]
			off = need
		}
		for off+sz <= len(chunk) {
			if err := fn(chunk[off : off+sz]); err != nil {
				return err
			}
			off += sz
		}
		buf = append(buf, chunk[off:]...)
		return nil
	})
	if err != nil {
		return err
	}
	d.PanicIfFalse(len(buf) == 0, "array iteration ended with a partial item in the rollover buffer")
	return nil
}

// MutateAll rewrites every item in place via mutator, e.g. to recompute a
// per-item field. The mutated items need not share the original item
// size: the total output length must divide evenly by the item count, and
// the array's item size becomes that quotient, mirroring the reference
// implementation's support for changing item size during a full rewrite.
func (a *FixedArray) MutateAll(mutator func(item []byte) ([]byte, error)) error {
	length := a.Len()
	var mutated [][]byte
	if err := a.ForEachItem(func(item []byte) error {
		out, err := mutator(item)
		if err != nil {
			return err
		}
		mutated = append(mutated, out)
		return nil
	}); err != nil {
		return err
	}
	total := 0
	for _, m := range mutated {
		total += len(m)
	}
	if length > 0 {
		d.PanicIfFalse(total%length == 0, "array mutate_all output is not evenly divisible across items")
	}
	if err := a.doc.WriteRange(0, a.doc.Len(), document.Bytes(concat(mutated))); err != nil {
		return err
	}
	if length > 0 {
		a.itemSize = total / length
	}
	return nil
}

func concat(parts [][]byte) []byte {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
