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
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Option configures a LocalStore at Open time.
type Option func(*LocalStore)

// WithLogger attaches a structured logger used for grow/shrink events.
// The zero value (default) is a disabled logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *LocalStore) { s.log = wrapLogger(l) }
}

// WithFsck toggles the in-memory structural self-check that normally runs
// after every mutating call. Disabling it trades the assert-and-terminate-
// on-corruption guarantee for raw throughput; it exists for large
// fuzz/benchmark runs where the O(file size) walk dominates.
func WithFsck(enabled bool) Option {
	return func(s *LocalStore) { s.fsckEnabled = enabled }
}

// WithFetchCacheSize bounds the number of payloads cached by id in an LRU
// held in front of the mmap. A size of 0 disables the cache (default).
func WithFetchCacheSize(n int) Option {
	return func(s *LocalStore) {
		if n <= 0 {
			s.cache = nil
			return
		}
		c, err := lru.New[string, []byte](n)
		if err == nil {
			s.cache = c
		}
	}
}

func defaultLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}
