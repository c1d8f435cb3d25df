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

// Package document implements the resizeable, arbitrarily large byte
// string built from an ordered sequence of store-sized chunks.
package document

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"

	"github.com/karl3wm/rep/internal/d"
	"github.com/karl3wm/rep/store"
)

// Document is an ordered list of store ids, their payload sizes, and the
// running offsets derived from those sizes (the exclusive prefix sum). The
// logical byte string it represents is the concatenation of the fetched
// payloads.
type Document struct {
	store store.Store
	ids   [][]byte
	sizes []int
	offs  []int
	index *offsetIndex
}

// New creates an empty Document backed by s.
func New(s store.Store) *Document {
	doc := &Document{store: s, offs: []int{0}, index: newOffsetIndex()}
	return doc
}

// Open reconstructs a Document from a previously-obtained id, a
// concatenation of store.IDSize()-byte ids, fetching each chunk's size
// from the store.
func Open(s store.Store, id []byte) (*Document, error) {
	idSize := s.IDSize()
	if len(id)%idSize != 0 {
		return nil, errors.Errorf("document: id length %d is not a multiple of IDSize %d", len(id), idSize)
	}
	n := len(id) / idSize
	doc := &Document{
		store: s,
		ids:   make([][]byte, n),
		sizes: make([]int, n),
		offs:  make([]int, n+1),
		index: newOffsetIndex(),
	}
	total := 0
	for i := 0; i < n; i++ {
		chunkID := append([]byte(nil), id[i*idSize:(i+1)*idSize]...)
		sz, err := s.FetchSize(chunkID)
		if err != nil {
			return nil, err
		}
		doc.ids[i] = chunkID
		doc.sizes[i] = sz
		doc.offs[i] = total
		total += sz
	}
	doc.offs[n] = total
	doc.index.rebuild(doc.offs)
	doc.fsck()
	return doc, nil
}

// ID returns the concatenation of this document's chunk ids.
func (doc *Document) ID() []byte {
	out := make([]byte, 0, len(doc.ids)*doc.store.IDSize())
	for _, id := range doc.ids {
		out = append(out, id...)
	}
	return out
}

// Len is the total logical byte length of the document.
func (doc *Document) Len() int {
	return doc.offs[len(doc.offs)-1]
}

// AllocSize is the backing store's maximum payload size, i.e. the maximum
// size of any one chunk.
func (doc *Document) AllocSize() int { return doc.store.AllocSize() }

// idxOff finds, starting the search at index from, the largest chunk index
// idx >= from such that offs[idx] <= off, and the within-chunk offset
// off - offs[idx].
func (doc *Document) idxOff(off int, from int) (idx int, within int) {
	offs := doc.offs
	i := sort.Search(len(offs)-from, func(i int) bool { return offs[from+i] > off })
	idx = from + i - 1
	if idx < from {
		idx = from
	}
	within = off - offs[idx]
	return idx, within
}

// IDAtOffset returns the id of the chunk containing the given logical byte
// offset, using the B-tree offset index rather than the plain slice
// bisection ReadRange/WriteRange use.
func (doc *Document) IDAtOffset(offset int) ([]byte, error) {
	if offset < 0 || offset >= doc.Len() {
		return nil, errors.Errorf("document: offset %d out of range [0, %d)", offset, doc.Len())
	}
	idx, _, ok := doc.index.locate(offset)
	if !ok {
		d.Corrupt("offset index has no entry for offset %d", offset)
	}
	return doc.ids[idx], nil
}

// ReadRange returns a copy of the logical bytes [lo, hi).
func (doc *Document) ReadRange(lo, hi int) ([]byte, error) {
	total := doc.Len()
	if lo < 0 || hi > total || lo > hi {
		return nil, errors.Errorf("document: range [%d, %d) out of bounds for length %d", lo, hi, total)
	}
	if lo == hi {
		return []byte{}, nil
	}
	startIdx, startOff := doc.idxOff(lo, 0)
	stopIdx, stopOff := doc.idxOff(hi, startIdx)

	endExclusive := stopIdx
	trimEnd := 0
	if stopOff != 0 {
		endExclusive = stopIdx + 1
		trimEnd = doc.sizes[stopIdx] - stopOff
	}

	bufs := make([][]byte, 0, endExclusive-startIdx)
	for i := startIdx; i < endExclusive; i++ {
		data, err := doc.store.Fetch(doc.ids[i])
		if err != nil {
			return nil, err
		}
		bufs = append(bufs, data)
	}
	bufs[0] = bufs[0][startOff:]
	last := len(bufs) - 1
	if trimEnd > 0 {
		bufs[last] = bufs[last][:len(bufs[last])-trimEnd]
	}
	return bytes.Join(bufs, nil), nil
}

// ForEachChunk streams raw chunk payloads in order, letting callers consume
// the document without materializing it in full.
func (doc *Document) ForEachChunk(fn func(chunk []byte) error) error {
	for _, id := range doc.ids {
		data, err := doc.store.Fetch(id)
		if err != nil {
			return err
		}
		if err := fn(data); err != nil {
			return err
		}
	}
	return nil
}

// Append extends the document with data.
func (doc *Document) Append(data []byte) error {
	n := doc.Len()
	return doc.WriteRange(n, n, Bytes(data))
}

// WriteRange replaces the logical bytes [lo, hi) with the len(src) bytes
// src yields, re-chunking the affected edge chunks as needed.
func (doc *Document) WriteRange(lo, hi int, src ByteSource) error {
	total := doc.Len()
	d.Chk(lo >= 0 && hi <= total && lo <= hi, "document write range out of bounds: lo=%d hi=%d total=%d", lo, hi, total)

	startIdx, startOff := doc.idxOff(lo, 0)
	stopIdx, stopOff := doc.idxOff(hi, startIdx)

	var prefix, suffix []byte
	if startOff > 0 {
		full, err := doc.store.Fetch(doc.ids[startIdx])
		if err != nil {
			return err
		}
		prefix = full[:startOff]
	}
	endExclusive := stopIdx
	if stopOff > 0 {
		full, err := doc.store.Fetch(doc.ids[stopIdx])
		if err != nil {
			return err
		}
		suffix = full[stopOff:]
		endExclusive = stopIdx + 1
	}
	oldIDs := doc.ids[startIdx:endExclusive]

	chunks, err := planChunks(prefix, suffix, src, doc.store.AllocSize())
	if err != nil {
		return err
	}

	newIDs := make([][]byte, len(chunks))
	newSizes := make([]int, len(chunks))
	for i, piece := range chunks {
		id, err := doc.store.Alloc(piece)
		if err != nil {
			return err
		}
		newIDs[i] = id
		newSizes[i] = len(piece)
	}

	doc.ids = spliceIDs(doc.ids, startIdx, endExclusive, newIDs)
	doc.sizes = spliceSizes(doc.sizes, startIdx, endExclusive, newSizes)
	doc.recomputeOffsets()
	doc.index.rebuild(doc.offs)

	for _, old := range oldIDs {
		if err := doc.store.Dealloc(old); err != nil {
			return err
		}
	}

	doc.fsck()
	return nil
}

// planChunks computes the byte contents of the chunks that will replace
// the edited range, given the fixed prefix/suffix edge material and the
// (possibly streamed) replacement data.
func planChunks(prefix, suffix []byte, src ByteSource, allocSize int) ([][]byte, error) {
	P := len(prefix)
	D := src.Len()
	S := len(suffix)
	sz := allocSize

	var chunks [][]byte
	if P+D < sz {
		suffixOff := sz - P - D
		take := suffixOff
		if take > S {
			take = S
		}
		if S+P+D > 0 {
			data, err := src.Next(D)
			if err != nil {
				return nil, err
			}
			piece := make([]byte, 0, P+D+take)
			piece = append(piece, prefix...)
			piece = append(piece, data...)
			piece = append(piece, suffix[:take]...)
			chunks = append(chunks, piece)
		}
		if S > suffixOff {
			chunks = append(chunks, append([]byte(nil), suffix[suffixOff:]...))
		}
		return chunks, nil
	}

	off := sz - P
	firstData, err := src.Next(off)
	if err != nil {
		return nil, err
	}
	first := make([]byte, 0, P+len(firstData))
	first = append(first, prefix...)
	first = append(first, firstData...)
	chunks = append(chunks, first)

	remaining := D - off
	for remaining > sz {
		mid, err := src.Next(sz)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, append([]byte(nil), mid...))
		remaining -= sz
	}

	tail, err := src.Next(remaining)
	if err != nil {
		return nil, err
	}
	suffixOff := sz - len(tail)
	take := suffixOff
	if take > S {
		take = S
	}
	last := make([]byte, 0, len(tail)+take)
	last = append(last, tail...)
	last = append(last, suffix[:take]...)
	if len(last) > 0 {
		chunks = append(chunks, last)
	}

	if S > suffixOff {
		chunks = append(chunks, append([]byte(nil), suffix[suffixOff:]...))
	}
	return chunks, nil
}

func spliceIDs(ids [][]byte, start, end int, replacement [][]byte) [][]byte {
	out := make([][]byte, 0, len(ids)-(end-start)+len(replacement))
	out = append(out, ids[:start]...)
	out = append(out, replacement...)
	out = append(out, ids[end:]...)
	return out
}

func spliceSizes(sizes []int, start, end int, replacement []int) []int {
	out := make([]int, 0, len(sizes)-(end-start)+len(replacement))
	out = append(out, sizes[:start]...)
	out = append(out, replacement...)
	out = append(out, sizes[end:]...)
	return out
}

func (doc *Document) recomputeOffsets() {
	offs := make([]int, len(doc.sizes)+1)
	total := 0
	for i, sz := range doc.sizes {
		offs[i] = total
		total += sz
	}
	offs[len(doc.sizes)] = total
	doc.offs = offs
}

// fsck is the in-memory structural self-check: no size is zero, and offs
// is the exclusive prefix sum of sizes.
func (doc *Document) fsck() {
	for _, sz := range doc.sizes {
		if sz == 0 {
			d.Corrupt("document chunk has zero size")
		}
		if sz > doc.store.AllocSize() {
			d.Corrupt("document chunk of %d bytes exceeds AllocSize %d", sz, doc.store.AllocSize())
		}
	}
	total := 0
	for i, sz := range doc.sizes {
		if doc.offs[i] != total {
			d.Corrupt("document offset table is not the prefix sum of sizes at index %d", i)
		}
		total += sz
	}
	if doc.offs[len(doc.sizes)] != total {
		d.Corrupt("document offset table is not the prefix sum of sizes at tail")
	}
}
