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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karl3wm/rep/document"
	"github.com/karl3wm/rep/store"
)

func openTestStore(t *testing.T) *store.LocalStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "rep.store"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func itemsOf(strs ...string) [][]byte {
	out := make([][]byte, len(strs))
	for i, s := range strs {
		out[i] = []byte(s)
	}
	return out
}

func TestArraySliceInsertion(t *testing.T) {
	s := openTestStore(t)
	doc := document.New(s)
	require.NoError(t, doc.Append([]byte("foobar")))
	arr, err := New(doc, 3)
	require.NoError(t, err)

	require.NoError(t, arr.SetRange(1, 1, itemsOf("baz", "qux")))

	got, err := arr.GetRange(0, arr.Len())
	require.NoError(t, err)
	assert.Equal(t, "foobazquxbar", string(got))
	assert.Equal(t, 4, arr.Len())
	assert.Equal(t, 12, doc.Len())
}

func TestArrayLengthAlwaysMultipleOfItemSize(t *testing.T) {
	s := openTestStore(t)
	doc := document.New(s)
	arr, err := New(doc, 5)
	require.NoError(t, err)

	require.NoError(t, arr.Insert(0, []byte("aaaaa")))
	require.NoError(t, arr.Insert(1, []byte("bbbbb")))
	require.NoError(t, arr.Delete(0, 1))
	assert.Equal(t, 0, doc.Len()%5)
}

func TestArrayIterationEqualsSlicing(t *testing.T) {
	s := openTestStore(t)
	doc := document.New(s)
	arr, err := New(doc, 4)
	require.NoError(t, err)

	want := itemsOf("abcd", "efgh", "ijkl", "mnop", "qrst")
	require.NoError(t, arr.SetRange(0, 0, want))

	var iterated [][]byte
	require.NoError(t, arr.ForEachItem(func(item []byte) error {
		iterated = append(iterated, append([]byte(nil), item...))
		return nil
	}))

	sliced, err := arr.GetRange(0, arr.Len())
	require.NoError(t, err)
	assert.Equal(t, arr.Slice(sliced), iterated)
}

func TestMutateAllRewritesEveryItem(t *testing.T) {
	s := openTestStore(t)
	doc := document.New(s)
	arr, err := New(doc, 1)
	require.NoError(t, err)
	require.NoError(t, arr.SetRange(0, 0, itemsOf("a", "b", "c", "d")))

	require.NoError(t, arr.MutateAll(func(item []byte) ([]byte, error) {
		up := make([]byte, len(item))
		for i, b := range item {
			up[i] = b - 32
		}
		return up, nil
	}))

	got, err := arr.GetRange(0, arr.Len())
	require.NoError(t, err)
	assert.Equal(t, "ABCD", string(got))
}

func TestStreamingSetRangeMatchesMaterialized(t *testing.T) {
	s := openTestStore(t)
	doc := document.New(s)
	arr, err := New(doc, 2)
	require.NoError(t, err)

	items := itemsOf("aa", "bb", "cc", "dd", "ee")
	require.NoError(t, arr.SetRangeStream(0, 0, SliceSource(items, 2)))

	got, err := arr.GetRange(0, arr.Len())
	require.NoError(t, err)
	assert.Equal(t, "aabbccddee", string(got))
}
