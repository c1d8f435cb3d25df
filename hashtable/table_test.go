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
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karl3wm/rep/array"
	"github.com/karl3wm/rep/document"
	"github.com/karl3wm/rep/store"
)

// testItemSize is the width of a test item: a 32-byte key hash followed by an
// 8-byte payload, used to exercise the table without dragging in dict.
const testItemSize = 40

func testKeyFn(item []byte) []byte { return item[:32] }

func newTestTable(t *testing.T) *Table {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "rep.store"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	doc := document.New(s)
	arr, err := array.New(doc, testItemSize)
	require.NoError(t, err)
	tbl, err := New(arr, testKeyFn)
	require.NoError(t, err)
	return tbl
}

func hashOf(key string) []byte {
	sum := sha256.Sum256([]byte(key))
	return sum[:]
}

func itemFor(key string) []byte {
	h := hashOf(key)
	item := make([]byte, testItemSize)
	copy(item, h)
	copy(item[32:], key)
	return item
}

func TestGetOnEmptyTableReturnsSentinel(t *testing.T) {
	tbl := newTestTable(t)
	item, err := tbl.Get(hashOf("missing"))
	require.NoError(t, err)
	assert.True(t, tbl.IsSentinel(item))
}

func TestSetGetRoundTrip(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.Set(hashOf("k"), itemFor("k")))
	got, err := tbl.Get(hashOf("k"))
	require.NoError(t, err)
	assert.Equal(t, itemFor("k"), got)
}

func TestIdempotentSet(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.Set(hashOf("k"), itemFor("k")))
	capBefore := tbl.Capacity()
	require.NoError(t, tbl.Set(hashOf("k"), itemFor("k")))
	assert.Equal(t, capBefore, tbl.Capacity())
	got, err := tbl.Get(hashOf("k"))
	require.NoError(t, err)
	assert.Equal(t, itemFor("k"), got)
}

func TestDictGrowFromEmpty(t *testing.T) {
	tbl := newTestTable(t)
	ref := map[string][]byte{}

	for i := 0; i <= 256; i++ {
		key := fmt.Sprintf("%d", i)
		require.NoError(t, tbl.Set(hashOf(key), itemFor(key)))
		ref[key] = itemFor(key)
		if i == 0 {
			assert.Equal(t, 2, tbl.Capacity())
		}
	}

	assert.True(t, isPowerOfTwo(tbl.Capacity()))

	got := map[string][]byte{}
	require.NoError(t, tbl.ForEach(func(hash, item []byte) error {
		got[string(item[32:])] = append([]byte(nil), item...)
		return nil
	}))
	assert.Equal(t, ref, got)
}

func TestBucketLawHoldsAfterInsertsAndDeletes(t *testing.T) {
	tbl := newTestTable(t)
	for i := 0; i < 80; i++ {
		key := fmt.Sprintf("key-%d", i)
		require.NoError(t, tbl.Set(hashOf(key), itemFor(key)))
	}
	for i := 0; i < 80; i += 3 {
		require.NoError(t, tbl.Delete(hashOf(fmt.Sprintf("key-%d", i))))
	}

	h := tbl.H()
	seen := map[int]bool{}
	require.NoError(t, tbl.ForEachIndexed(func(idx int, hash, item []byte) error {
		assert.Equal(t, Bucket(hash, h), idx)
		assert.False(t, seen[idx], "no-collision law: two items in bucket %d", idx)
		seen[idx] = true
		return nil
	}))
}

func TestCapacityNeverDecreases(t *testing.T) {
	tbl := newTestTable(t)
	maxCap := 0
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("cap-%d", i)
		require.NoError(t, tbl.Set(hashOf(key), itemFor(key)))
		assert.GreaterOrEqual(t, tbl.Capacity(), maxCap)
		maxCap = tbl.Capacity()
		if i%5 == 0 {
			require.NoError(t, tbl.Delete(hashOf(key)))
			assert.Equal(t, maxCap, tbl.Capacity())
		}
	}
}

func TestBatchedUpdateWithInternalCollision(t *testing.T) {
	tbl := newTestTable(t)
	// Two keys engineered to share the top bit (bucket 0 at H=1) of their
	// sha256 digest: both start with a 0x00 byte after masking, easiest to
	// guarantee here by brute-force search over a small key space.
	var a, b string
	for i := 0; ; i++ {
		cand := fmt.Sprintf("cand-%d", i)
		if hashOf(cand)[0]&0x80 == 0 {
			a = cand
			break
		}
	}
	for i := 0; ; i++ {
		cand := fmt.Sprintf("other-%d", i)
		if hashOf(cand)[0]&0x80 == 0 {
			b = cand
			break
		}
	}

	require.NoError(t, tbl.Update([]Entry{
		{Hash: hashOf(a), Item: itemFor(a)},
		{Hash: hashOf(b), Item: itemFor(b)},
	}))

	assert.GreaterOrEqual(t, tbl.Capacity(), 2)
	gotA, err := tbl.Get(hashOf(a))
	require.NoError(t, err)
	assert.Equal(t, itemFor(a), gotA)
	gotB, err := tbl.Get(hashOf(b))
	require.NoError(t, err)
	assert.Equal(t, itemFor(b), gotB)
}

func TestBatchedUpdateMatchesSequentialSets(t *testing.T) {
	tblBatch := newTestTable(t)
	tblSeq := newTestTable(t)

	var entries []Entry
	for i := 0; i < 64; i++ {
		key := fmt.Sprintf("batch-%d", i)
		entries = append(entries, Entry{Hash: hashOf(key), Item: itemFor(key)})
		require.NoError(t, tblSeq.Set(hashOf(key), itemFor(key)))
	}
	require.NoError(t, tblBatch.Update(entries))

	assert.Equal(t, tblSeq.Capacity(), tblBatch.Capacity())
	for i := 0; i < 64; i++ {
		key := fmt.Sprintf("batch-%d", i)
		want, err := tblSeq.Get(hashOf(key))
		require.NoError(t, err)
		got, err := tblBatch.Get(hashOf(key))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
