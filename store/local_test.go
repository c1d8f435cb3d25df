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

package store

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, opts ...Option) *LocalStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rep.store")
	s, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAllocFetchRoundTrip(t *testing.T) {
	s := openTestStore(t)
	for _, payload := range [][]byte{
		{},
		[]byte("a"),
		[]byte("the quick brown fox"),
		make([]byte, 512),
	} {
		id, err := s.Alloc(payload)
		require.NoError(t, err)
		got, err := s.Fetch(id)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
		sz, err := s.FetchSize(id)
		require.NoError(t, err)
		assert.Equal(t, len(payload), sz)
	}
}

func TestAllocRejectsOversizePayload(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Alloc(make([]byte, s.AllocSize()+1))
	assert.Error(t, err)
}

func TestDisjointnessAfterRandomAllocDealloc(t *testing.T) {
	s := openTestStore(t)
	rng := rand.New(rand.NewSource(1))
	live := map[string][]byte{}
	for i := 0; i < 200; i++ {
		if len(live) > 0 && rng.Intn(2) == 0 {
			for id := range live {
				delete(live, id)
				require.NoError(t, s.Dealloc([]byte(id)))
				break
			}
			continue
		}
		payload := make([]byte, rng.Intn(64))
		rng.Read(payload)
		id, err := s.Alloc(payload)
		require.NoError(t, err)
		live[string(id)] = payload
	}
	// fsck runs on every mutation; reaching here without a panic already
	// proves disjointness, but re-verify every surviving id fetches back
	// its own payload.
	for id, want := range live {
		got, err := s.Fetch([]byte(id))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestReuseAfterDealloc(t *testing.T) {
	s := openTestStore(t)
	id, err := s.Alloc([]byte("0123456789abcdef"))
	require.NoError(t, err)
	require.NoError(t, s.Dealloc(id))

	id2, err := s.Alloc([]byte("fedcba9876543210"))
	require.NoError(t, err)
	assert.Equal(t, id, id2, "first-fit should hand back the just-freed region")
}

func TestShrinkMinimality(t *testing.T) {
	s := openTestStore(t)
	var ids [][]byte
	for i := 0; i < 100; i++ {
		payload := []byte(fmt.Sprintf("payload-%03d-%s", i, string(make([]byte, i%17))))
		id, err := s.Alloc(payload)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	sizeBefore := s.wf.sizeBytes()

	var survivors [][]byte
	for i, id := range ids {
		if i%2 == 0 {
			require.NoError(t, s.Dealloc(id))
			continue
		}
		survivors = append(survivors, id)
	}

	require.NoError(t, s.Shrink())
	assert.Less(t, s.wf.sizeBytes(), sizeBefore)

	free := s.snapshotFreeList()
	require.Len(t, free, 1)
	assert.EqualValues(t, 2, free[0].length)
	assert.Equal(t, s.wf.words(), free[0].addr+2)

	for _, id := range survivors {
		_, err := s.Fetch(id)
		require.NoError(t, err)
	}
}

func TestFetchCacheServesWithoutStaleReuse(t *testing.T) {
	s := openTestStore(t, WithFetchCacheSize(16))
	id, err := s.Alloc([]byte("cached"))
	require.NoError(t, err)

	got, err := s.Fetch(id)
	require.NoError(t, err)
	assert.Equal(t, "cached", string(got))

	require.NoError(t, s.Dealloc(id))
	id2, err := s.Alloc([]byte("reused"))
	require.NoError(t, err)
	got2, err := s.Fetch(id2)
	require.NoError(t, err)
	assert.Equal(t, "reused", string(got2))
}

func TestOpenReopenPreservesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rep.store")
	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.Alloc([]byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Fetch(id)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got))
}
