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

package document

import "github.com/google/btree"

// offsetEntry maps the starting byte offset of a chunk to its index in the
// document's id/size arrays.
type offsetEntry struct {
	off int
	idx int
}

func offsetLess(a, b offsetEntry) bool { return a.off < b.off }

// offsetIndex is a B-tree-backed index over chunk starting offsets, used by
// Document.IDAtOffset for direct offset-to-id lookup (the "B-tree-like
// offset index" called out in the system overview) independent of the
// plain bisection ReadRange/WriteRange use over the offs slice.
type offsetIndex struct {
	tree *btree.BTreeG[offsetEntry]
}

func newOffsetIndex() *offsetIndex {
	return &offsetIndex{tree: btree.NewG(32, offsetLess)}
}

// rebuild repopulates the index from a document's offs slice (length
// len(ids)+1, exclusive prefix sums per the data model).
func (oi *offsetIndex) rebuild(offs []int) {
	oi.tree.Clear(false)
	for idx := 0; idx < len(offs)-1; idx++ {
		oi.tree.ReplaceOrInsert(offsetEntry{off: offs[idx], idx: idx})
	}
}

// locate returns the chunk index whose span contains off, plus the
// within-chunk offset, given off is within [0, total bytes).
func (oi *offsetIndex) locate(off int) (idx int, within int, ok bool) {
	var found offsetEntry
	ok = false
	oi.tree.DescendLessOrEqual(offsetEntry{off: off, idx: 1<<62 - 1}, func(e offsetEntry) bool {
		found = e
		ok = true
		return false
	})
	if !ok {
		return 0, 0, false
	}
	return found.idx, off - found.off, true
}
