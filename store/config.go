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
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config is the on-disk configuration for a LocalStore, loaded from a TOML
// file. It carries only knobs that do not affect the on-disk format itself
// (IDSIZE is fixed at the word size and ALLOCSIZE is derived from the OS
// page size; neither is configurable).
type Config struct {
	// Path is the backing file path, relative to the config file's
	// directory unless absolute.
	Path string `toml:"path"`
	// FsckEnabled mirrors WithFsck; defaults to true when absent.
	FsckEnabled *bool `toml:"fsck_enabled"`
	// FetchCacheSize mirrors WithFetchCacheSize.
	FetchCacheSize int `toml:"fetch_cache_size"`
}

// LoadConfig reads a TOML config file describing how to open a LocalStore.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "loading store config %q", path)
	}
	if cfg.Path == "" {
		return Config{}, errors.Errorf("store config %q: path is required", path)
	}
	if !filepath.IsAbs(cfg.Path) {
		cfg.Path = filepath.Join(filepath.Dir(path), cfg.Path)
	}
	return cfg, nil
}

// Open opens the LocalStore described by cfg, applying any additional
// options after the config-derived ones so callers can override them.
func (cfg Config) Open(opts ...Option) (*LocalStore, error) {
	all := make([]Option, 0, len(opts)+2)
	if cfg.FsckEnabled != nil {
		all = append(all, WithFsck(*cfg.FsckEnabled))
	}
	if cfg.FetchCacheSize > 0 {
		all = append(all, WithFetchCacheSize(cfg.FetchCacheSize))
	}
	all = append(all, opts...)
	return Open(cfg.Path, all...)
}
