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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigRequiresPath(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "store.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`fetch_cache_size = 10`), 0o644))

	_, err := LoadConfig(cfgPath)
	assert.Error(t, err)
}

func TestConfigOpenAppliesOptions(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "rep.store")
	cfgPath := filepath.Join(dir, "store.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(
		"path = %q\nfsck_enabled = false\nfetch_cache_size = 64\n", dataPath,
	)), 0o644))

	cfg, err := LoadConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, dataPath, cfg.Path)
	require.NotNil(t, cfg.FsckEnabled)
	assert.False(t, *cfg.FsckEnabled)

	s, err := cfg.Open()
	require.NoError(t, err)
	defer s.Close()
	assert.False(t, s.fsckEnabled)
	assert.NotNil(t, s.cache)

	id, err := s.Alloc([]byte("hi"))
	require.NoError(t, err)
	got, err := s.Fetch(id)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
}
