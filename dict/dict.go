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

// Package dict implements a keyed dictionary on top of a collision-
// splitting hash table whose items are key_id∥value_id pairs, keyed by
// the hash of the fetched key bytes.
package dict

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/karl3wm/rep/array"
	"github.com/karl3wm/rep/document"
	"github.com/karl3wm/rep/hashtable"
	"github.com/karl3wm/rep/internal/d"
	"github.com/karl3wm/rep/store"
)

// ErrNotFound is returned by Delete when the key is absent. Get reports
// absence through its ok result instead.
var ErrNotFound = errors.New("dict: key not found")

// Dict is a Keyed Dictionary backed by s.
type Dict struct {
	store  store.Store
	table  *hashtable.Table
	hasher Hasher
	idSize int
}

// New creates an empty Dict backed by s, hashing keys with hasher.
func New(s store.Store, hasher Hasher) (*Dict, error) {
	doc := document.New(s)
	return newDict(s, doc, hasher)
}

// Open reconstructs a Dict from a document id previously obtained from
// (*Dict).ID.
func Open(s store.Store, docID []byte, hasher Hasher) (*Dict, error) {
	doc, err := document.Open(s, docID)
	if err != nil {
		return nil, err
	}
	return newDict(s, doc, hasher)
}

func newDict(s store.Store, doc *document.Document, hasher Hasher) (*Dict, error) {
	idSize := s.IDSize()
	arr, err := array.New(doc, 2*idSize)
	if err != nil {
		return nil, err
	}
	dd := &Dict{store: s, hasher: hasher, idSize: idSize}
	table, err := hashtable.New(arr, dd.keyFn)
	if err != nil {
		return nil, err
	}
	dd.table = table
	return dd, nil
}

// keyFn extracts the bucket key for a stored key_id∥value_id item: the
// hash of the key bytes fetched from the store. A fetch failure here means
// a live bucket points at a dealloc'd or otherwise missing id, which is a
// structural inconsistency, not a caller-facing error.
func (dd *Dict) keyFn(item []byte) []byte {
	keyBytes, err := dd.store.Fetch(item[:dd.idSize])
	d.PanicIfError(err)
	return dd.hasher.Hash(keyBytes)
}

// ID returns the id of the backing document, for persistence.
func (dd *Dict) ID() []byte { return dd.table.Array().Document().ID() }

// Get returns the value stored under key, and whether it was found.
func (dd *Dict) Get(key []byte) (value []byte, ok bool, err error) {
	h := dd.hasher.Hash(key)
	item, err := dd.table.Get(h)
	if err != nil {
		return nil, false, err
	}
	if dd.table.IsSentinel(item) {
		return nil, false, nil
	}
	storedKey, err := dd.store.Fetch(item[:dd.idSize])
	if err != nil {
		return nil, false, err
	}
	if !bytes.Equal(storedKey, key) {
		return nil, false, nil
	}
	value, err = dd.store.Fetch(item[dd.idSize:])
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set inserts or overwrites key's value. If key is already present, its
// stored key_id is reused and only a new value_id is allocated.
func (dd *Dict) Set(key, value []byte) error {
	h := dd.hasher.Hash(key)
	existing, err := dd.table.Get(h)
	if err != nil {
		return err
	}

	var keyID, oldValID []byte
	if !dd.table.IsSentinel(existing) {
		storedKey, err := dd.store.Fetch(existing[:dd.idSize])
		if err != nil {
			return err
		}
		if bytes.Equal(storedKey, key) {
			keyID = existing[:dd.idSize]
			oldValID = existing[dd.idSize:]
		}
	}
	if keyID == nil {
		id, err := dd.store.Alloc(key)
		if err != nil {
			return err
		}
		keyID = id
	}
	valID, err := dd.store.Alloc(value)
	if err != nil {
		return err
	}

	item := make([]byte, 0, 2*dd.idSize)
	item = append(item, keyID...)
	item = append(item, valID...)
	if err := dd.table.Set(h, item); err != nil {
		return err
	}
	if oldValID != nil {
		return dd.store.Dealloc(oldValID)
	}
	return nil
}

// Delete removes key, if present. It returns ErrNotFound if the key is
// absent.
func (dd *Dict) Delete(key []byte) error {
	h := dd.hasher.Hash(key)
	item, err := dd.table.Get(h)
	if err != nil {
		return err
	}
	if dd.table.IsSentinel(item) {
		return ErrNotFound
	}
	storedKey, err := dd.store.Fetch(item[:dd.idSize])
	if err != nil {
		return err
	}
	if !bytes.Equal(storedKey, key) {
		return ErrNotFound
	}
	if err := dd.table.Delete(h); err != nil {
		return err
	}
	keyID := append([]byte(nil), item[:dd.idSize]...)
	valID := append([]byte(nil), item[dd.idSize:]...)
	if err := dd.store.Dealloc(keyID); err != nil {
		return err
	}
	return dd.store.Dealloc(valID)
}

// Entry is one (key, value) pair passed to Update.
type Entry struct {
	Key   []byte
	Value []byte
}

// Keys streams every stored key in bucket order, re-verifying that each
// occupied bucket's index matches Bucket(hash(key), H()) as it goes.
func (dd *Dict) Keys(fn func(key []byte) error) error {
	return dd.walk(func(_ int, key, _ []byte) error { return fn(key) })
}

// Items streams every stored (key, value) pair in bucket order, with the
// same integrity re-verification as Keys.
func (dd *Dict) Items(fn func(key, value []byte) error) error {
	return dd.walk(func(_ int, key, value []byte) error { return fn(key, value) })
}

func (dd *Dict) walk(fn func(idx int, key, value []byte) error) error {
	h := dd.table.H()
	return dd.table.ForEachIndexed(func(idx int, hash, item []byte) error {
		if hashtable.Bucket(hash, h) != idx {
			d.Corrupt("dict: bucket %d holds an item whose key hashes to bucket %d", idx, hashtable.Bucket(hash, h))
		}
		storedKey, err := dd.store.Fetch(item[:dd.idSize])
		if err != nil {
			return err
		}
		value, err := dd.store.Fetch(item[dd.idSize:])
		if err != nil {
			return err
		}
		return fn(idx, storedKey, value)
	})
}

// Update applies a batch of key/value sets, amortising hash-table growth
// across the whole batch rather than growing once per colliding insert.
func (dd *Dict) Update(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	pairs := make([]hashtable.Entry, len(entries))
	var deallocs [][]byte
	for i, e := range entries {
		h := dd.hasher.Hash(e.Key)
		existing, err := dd.table.Get(h)
		if err != nil {
			return err
		}
		var keyID, oldValID []byte
		if !dd.table.IsSentinel(existing) {
			storedKey, err := dd.store.Fetch(existing[:dd.idSize])
			if err != nil {
				return err
			}
			if bytes.Equal(storedKey, e.Key) {
				keyID = existing[:dd.idSize]
				oldValID = existing[dd.idSize:]
			}
		}
		if keyID == nil {
			id, err := dd.store.Alloc(e.Key)
			if err != nil {
				return err
			}
			keyID = id
		}
		valID, err := dd.store.Alloc(e.Value)
		if err != nil {
			return err
		}
		item := make([]byte, 0, 2*dd.idSize)
		item = append(item, keyID...)
		item = append(item, valID...)
		pairs[i] = hashtable.Entry{Hash: h, Item: item}
		if oldValID != nil {
			deallocs = append(deallocs, oldValID)
		}
	}
	if err := dd.table.Update(pairs); err != nil {
		return err
	}
	for _, id := range deallocs {
		if err := dd.store.Dealloc(id); err != nil {
			return err
		}
	}
	return nil
}
