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

package array

import (
	"io"

	"github.com/pkg/errors"

	"github.com/karl3wm/rep/document"
	"github.com/karl3wm/rep/internal/d"
)

// ItemSource is a length-annotated, lazily-pulled sequence of fixed-size
// items, mirroring the original IterableWithLength protocol: a count of
// items plus a way to advance through them one at a time.
type ItemSource interface {
	// Len is the number of items this source will yield.
	Len() int
	// Next returns the next item, or io.EOF once Len() items have been
	// returned.
	Next() ([]byte, error)
}

// SliceSource adapts a plain slice of items to ItemSource, asserting each
// item is exactly itemSize bytes as it is pulled.
func SliceSource(items [][]byte, itemSize int) ItemSource {
	return &sliceItemSource{items: items, itemSize: itemSize}
}

type sliceItemSource struct {
	items    [][]byte
	itemSize int
	idx      int
}

func (s *sliceItemSource) Len() int { return len(s.items) }

func (s *sliceItemSource) Next() ([]byte, error) {
	if s.idx >= len(s.items) {
		return nil, io.EOF
	}
	item := s.items[s.idx]
	if len(item) != s.itemSize {
		return nil, errors.Errorf("array: item %d has length %d, want %d", s.idx, len(item), s.itemSize)
	}
	s.idx++
	return item, nil
}

// itemByteSource adapts an ItemSource (items) to document.ByteSource
// (bytes), buffering partial items so the document can request arbitrary
// byte run lengths while items are pulled lazily one at a time.
type itemByteSource struct {
	items    ItemSource
	itemSize int
	buf      []byte
}

func (s *itemByteSource) Len() int { return s.items.Len() * s.itemSize }

func (s *itemByteSource) Next(n int) ([]byte, error) {
	for len(s.buf) < n {
		item, err := s.items.Next()
		if err != nil {
			return nil, d.Wrap(err, "array: pulling next item for streaming write")
		}
		d.PanicIfFalse(len(item) == s.itemSize, "array: streamed item is not itemSize bytes")
		s.buf = append(s.buf, item...)
	}
	out := s.buf[:n]
	s.buf = s.buf[n:]
	return out, nil
}

var _ document.ByteSource = (*itemByteSource)(nil)
