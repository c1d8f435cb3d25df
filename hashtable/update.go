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

package hashtable

import (
	"bytes"

	"github.com/karl3wm/rep/internal/d"
)

// Entry is one (hash, item) pair in a batched Update.
type Entry struct {
	Hash []byte
	Item []byte
}

// Update applies a batch of inserts/overwrites, growing the table at most
// once for the whole batch (computing the minimal capacity that separates
// every pair of distinct keys that would otherwise collide, rather than
// growing once per colliding Set), then applying the batch's writes as
// coalesced range rewrites, one per fixed window of
// AllocSize()/ItemSize() buckets that the batch touches.
func (t *Table) Update(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		d.PanicIfTrue(isSentinel(t, e.Item), "hashtable: cannot store the sentinel value")
		d.PanicIfFalse(bytes.Equal(t.keyFn(e.Item), e.Hash), "hashtable: keyFn(item) does not match hash")
	}
	if t.arr.Len() == 0 {
		if err := t.bootstrap(); err != nil {
			return err
		}
	}

	uniq := dedupeByHash(entries)
	h := log2(t.arr.Len())
	newH, err := t.requiredCapacity(uniq, h)
	if err != nil {
		return err
	}
	if newH > h {
		if err := t.expandTo(newH); err != nil {
			return err
		}
	}

	return t.applyCoalesced(uniq, newH)
}

func dedupeByHash(entries []Entry) []Entry {
	seen := map[string]int{}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		k := string(e.Hash)
		if idx, ok := seen[k]; ok {
			out[idx] = e
			continue
		}
		seen[k] = len(out)
		out = append(out, e)
	}
	return out
}

// requiredCapacity finds the smallest H' >= h such that, at capacity
// 2^H', no two distinct-key entries in the batch land in the same bucket,
// and no entry lands in a bucket already occupied (at the table's current
// capacity) by a different, unrelated key.
//
// Entries are grouped by their bucket at the current h, the occupant (if
// any) is folded into its bucket's group, and each group's keys are sorted
// byte-lexicographically: the H needed to give every key in a group a
// distinct top-H-bit prefix is the max, over adjacent pairs in that sorted
// order, of the bit at which the pair first diverges — adjacent pairs
// always share the longest prefix in the group, so pairing only a bucket's
// representative key against the rest (instead of every key against its
// sorted neighbor) can miss a conflict among three or more colliding keys.
func (t *Table) requiredCapacity(entries []Entry, h int) (int, error) {
	byBucket := map[int][][]byte{}
	for _, e := range entries {
		b := bucket(e.Hash, h)
		byBucket[b] = append(byBucket[b], e.Hash)
	}

	maxBits := len(entries[0].Hash) * 8
	newH := h
	for b, keys := range byBucket {
		occupant, err := t.arr.Get(b)
		if err != nil {
			return 0, err
		}
		if !isSentinel(t, occupant) {
			occKey := t.keyFn(occupant)
			if !containsKey(keys, occKey) {
				keys = append(keys, occKey)
			}
		}
		if len(keys) < 2 {
			continue
		}
		sortByteSlices(keys)
		for i := 1; i < len(keys); i++ {
			if bytes.Equal(keys[i-1], keys[i]) {
				continue
			}
			sep := separatingH(keys[i-1], keys[i], h, maxBits)
			if sep > newH {
				newH = sep
			}
		}
	}
	return newH, nil
}

func containsKey(keys [][]byte, k []byte) bool {
	for _, x := range keys {
		if bytes.Equal(x, k) {
			return true
		}
	}
	return false
}

func sortByteSlices(keys [][]byte) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && bytes.Compare(keys[j-1], keys[j]) > 0; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}

// applyCoalesced writes every entry's item into its bucket at capacity
// 2^h, grouping buckets that fall within the same aligned window of
// AllocSize()/ItemSize() buckets (one chunk's worth of items; the windows
// need not line up with the document's actual chunk boundaries) into a
// single GetRange+SetRange round trip instead of one write per entry.
func (t *Table) applyCoalesced(entries []Entry, h int) error {
	placements := make([]placement, len(entries))
	for i, e := range entries {
		placements[i] = placement{bucket: bucket(e.Hash, h), item: e.Item}
	}
	sortPlacements(placements)

	chunkBuckets := t.arr.Document().AllocSize() / t.itemSize
	if chunkBuckets < 1 {
		chunkBuckets = 1
	}

	i := 0
	for i < len(placements) {
		chunk := placements[i].bucket / chunkBuckets
		j := i
		for j < len(placements) && placements[j].bucket/chunkBuckets == chunk {
			j++
		}

		lo := chunk * chunkBuckets
		hi := lo + chunkBuckets
		if hi > t.arr.Len() {
			hi = t.arr.Len()
		}
		data, err := t.arr.GetRange(lo, hi)
		if err != nil {
			return err
		}
		items := t.arr.Slice(data)
		for k := i; k < j; k++ {
			items[placements[k].bucket-lo] = placements[k].item
		}
		if err := t.arr.SetRange(lo, hi, items); err != nil {
			return err
		}
		i = j
	}
	return nil
}

type placement struct {
	bucket int
	item   []byte
}

func sortPlacements(p []placement) {
	for i := 1; i < len(p); i++ {
		for j := i; j > 0 && p[j-1].bucket > p[j].bucket; j-- {
			p[j-1], p[j] = p[j], p[j-1]
		}
	}
}
