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

package rep

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karl3wm/rep/store"
)

func openTestStore(t *testing.T) *store.LocalStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "rep.store"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRepRoundTripSpansMultipleChunks(t *testing.T) {
	s := openTestStore(t)
	r := New(s)

	payload := bytes.Repeat([]byte("0123456789abcdef"), s.AllocSize()) // several chunks
	id, err := r.Alloc(payload)
	require.NoError(t, err)
	assert.Equal(t, 0, len(id)%r.IDSize())
	assert.Greater(t, len(id), r.IDSize(), "payload should have spanned more than one chunk")

	got, err := r.Fetch(id)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	sz, err := r.FetchSize(id)
	require.NoError(t, err)
	assert.Equal(t, len(payload), sz)

	require.NoError(t, r.Dealloc(id))
}

func TestRepEmptyPayload(t *testing.T) {
	s := openTestStore(t)
	r := New(s)
	id, err := r.Alloc(nil)
	require.NoError(t, err)
	assert.Nil(t, id)
	got, err := r.Fetch(id)
	require.NoError(t, err)
	assert.Empty(t, got)
}
