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
	"sort"

	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/karl3wm/rep/internal/d"
)

// LocalStore is the local memory-mapped slab allocator: a word-addressed
// file with a singly-linked free list headed at word 0, page-aligned
// growth, and deferred coalescing on Shrink.
type LocalStore struct {
	wf          *wordFile
	pageSize    int
	log         loggerIface
	fsckEnabled bool
	cache       *lru.Cache[string, []byte]
}

// IDSize is the fixed width, in bytes, of every LocalStore id.
const IDSize = wordSize

// Open opens (creating if necessary) a LocalStore backed by the file at
// path. A freshly created file is initialized to one OS page with a single
// free region spanning the rest of the page.
func Open(path string, opts ...Option) (*LocalStore, error) {
	wf, err := openWordFile(path)
	if err != nil {
		return nil, err
	}
	s := &LocalStore{
		wf:          wf,
		pageSize:    os.Getpagesize(),
		log:         wrapLogger(defaultLogger()),
		fsckEnabled: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if wf.words() == 0 {
		if err := s.initEmpty(); err != nil {
			wf.close()
			return nil, err
		}
	}
	s.fsck()
	return s, nil
}

func (s *LocalStore) initEmpty() error {
	if err := s.wf.truncateTo(int64(s.pageSize)); err != nil {
		return errors.Wrap(err, "initializing backing file")
	}
	pageWords := uint64(s.pageSize) / wordSize
	s.wf.writeWord(0, 1)
	s.wf.writeWord(1, 0)
	s.wf.writeWord(2, pageWords-1)
	return nil
}

// IDSize implements Store.
func (s *LocalStore) IDSize() int { return IDSize }

// AllocSize implements Store.
func (s *LocalStore) AllocSize() int { return s.pageSize - wordSize }

func wordsNeeded(payloadLen int) uint64 {
	w := uint64((payloadLen+wordSize-1)/wordSize) + 1
	if w < 2 {
		w = 2
	}
	return w
}

// Alloc implements Store.
func (s *LocalStore) Alloc(data []byte) ([]byte, error) {
	if len(data) > s.AllocSize() {
		return nil, errors.Errorf("store: payload of %d bytes exceeds AllocSize %d", len(data), s.AllocSize())
	}
	L := wordsNeeded(len(data))
	addr, prev, err := s.findFit(L)
	if err != nil {
		return nil, err
	}
	s.commitSelection(addr, prev, L)

	s.wf.writeWord(addr, uint64(len(data)))
	s.wf.writeBytesAt((addr+1)*wordSize, data)

	id := encodeID(addr)
	if s.cache != nil {
		s.cache.Add(string(id), append([]byte(nil), data...))
	}
	s.fsck()
	return id, nil
}

// findFit walks the free list for a region fitting L words, returning its
// address and the address of its predecessor in the list (0 if it is the
// head). It grows the tail region if nothing fits.
func (s *LocalStore) findFit(L uint64) (addr, prev uint64, err error) {
	wf := s.wf
	var (
		cur       = wf.readWord(0)
		prevAddr  = uint64(0)
		tailAddr  uint64
		tailPrev  uint64
		haveTail  bool
		iteration uint64
	)
	for cur != 0 {
		iteration++
		if iteration > wf.words() {
			d.Corrupt("free list cycle detected at word %d", cur)
		}
		length := wf.readWord(cur + 1)
		next := wf.readWord(cur)
		isTail := next == 0
		if isTail {
			tailAddr, tailPrev, haveTail = cur, prevAddr, true
		}
		if (length == L && !isTail) || length >= L+2 {
			return cur, prevAddr, nil
		}
		prevAddr = cur
		cur = next
	}
	if !haveTail {
		d.Corrupt("free list has no tail region")
	}
	return s.growTail(tailAddr, tailPrev, L)
}

// growTail extends the tail free region so it can satisfy L words, growing
// the backing file by at least doubling it (and always to a page multiple).
func (s *LocalStore) growTail(tailAddr, tailPrev, L uint64) (addr, prev uint64, err error) {
	wf := s.wf
	curWords := wf.words()
	needed := L + 2
	newWords := curWords * 2
	if minWords := tailAddr + needed; newWords < minWords {
		newWords = minWords
	}
	newBytes := newWords * wordSize
	pageBytes := uint64(s.pageSize)
	if rem := newBytes % pageBytes; rem != 0 {
		newBytes += pageBytes - rem
	}
	if err := wf.truncateTo(int64(newBytes)); err != nil {
		return 0, 0, errors.Wrap(ErrStoreFull, err.Error())
	}
	newTailLength := wf.words() - tailAddr
	wf.writeWord(tailAddr+1, newTailLength)
	s.log.Info("store grown", "old_bytes", humanize.Bytes(uint64(curWords)*wordSize), "new_bytes", humanize.Bytes(uint64(wf.words())*wordSize))
	return tailAddr, tailPrev, nil
}

// commitSelection removes (or splits) the free region at addr so that L
// words of it become an allocated region.
func (s *LocalStore) commitSelection(addr, prev, L uint64) {
	wf := s.wf
	length := wf.readWord(addr + 1)
	next := wf.readWord(addr)
	isTail := next == 0
	if length == L && !isTail {
		if prev == 0 {
			wf.writeWord(0, next)
		} else {
			wf.writeWord(prev, next)
		}
		return
	}
	newAddr := addr + L
	newLength := length - L
	wf.writeWord(newAddr, next)
	wf.writeWord(newAddr+1, newLength)
	if prev == 0 {
		wf.writeWord(0, newAddr)
	} else {
		wf.writeWord(prev, newAddr)
	}
}

// Dealloc implements Store.
func (s *LocalStore) Dealloc(id []byte) error {
	addr, err := decodeID(id)
	if err != nil {
		return err
	}
	wf := s.wf
	byteLen := wf.readWord(addr)
	L := wordsNeeded(int(byteLen))
	head := wf.readWord(0)
	wf.writeWord(addr, head)
	wf.writeWord(addr+1, L)
	wf.writeWord(0, addr)
	if s.cache != nil {
		s.cache.Remove(string(id))
	}
	s.fsck()
	return nil
}

// Fetch implements Store.
func (s *LocalStore) Fetch(id []byte) ([]byte, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(string(id)); ok {
			return append([]byte(nil), v...), nil
		}
	}
	addr, err := decodeID(id)
	if err != nil {
		return nil, err
	}
	n := s.wf.readWord(addr)
	data := s.wf.bytesAt((addr+1)*wordSize, int(n))
	if s.cache != nil {
		s.cache.Add(string(id), append([]byte(nil), data...))
	}
	return data, nil
}

// FetchSize implements Store.
func (s *LocalStore) FetchSize(id []byte) (int, error) {
	addr, err := decodeID(id)
	if err != nil {
		return 0, err
	}
	return int(s.wf.readWord(addr)), nil
}

type freeRegion struct {
	addr, length uint64
}

func (s *LocalStore) snapshotFreeList() []freeRegion {
	wf := s.wf
	var regions []freeRegion
	cur := wf.readWord(0)
	iteration := uint64(0)
	for cur != 0 {
		iteration++
		if iteration > wf.words() {
			d.Corrupt("free list cycle detected at word %d", cur)
		}
		length := wf.readWord(cur + 1)
		regions = append(regions, freeRegion{addr: cur, length: length})
		cur = wf.readWord(cur)
	}
	return regions
}

// Shrink implements Store. It coalesces adjacent free regions and
// truncates the file so the tail free region is the minimum 2 words.
// Allocated payloads are not moved: free regions that are not adjacent to
// one another stay in the free list as separate regions.
func (s *LocalStore) Shrink() error {
	wf := s.wf
	regions := s.snapshotFreeList()
	if len(regions) == 0 {
		d.Corrupt("free list is empty; a tail region must always be present")
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].addr < regions[j].addr })

	merged := regions[:1]
	for _, r := range regions[1:] {
		last := &merged[len(merged)-1]
		if last.addr+last.length == r.addr {
			last.length += r.length
		} else {
			merged = append(merged, r)
		}
	}

	last := &merged[len(merged)-1]
	if last.addr+last.length != wf.words() {
		d.Corrupt("tail free region does not reach end of file")
	}
	oldBytes := wf.sizeBytes()
	last.length = 2
	newWords := last.addr + 2
	newBytes := int64(newWords * wordSize)

	if err := wf.truncateTo(newBytes); err != nil {
		return err
	}
	for i, r := range merged {
		next := uint64(0)
		if i+1 < len(merged) {
			next = merged[i+1].addr
		}
		wf.writeWord(r.addr, next)
		wf.writeWord(r.addr+1, r.length)
	}
	wf.writeWord(0, merged[0].addr)
	s.log.Info("store shrunk", "old_bytes", humanize.Bytes(uint64(oldBytes)), "new_bytes", humanize.Bytes(uint64(newBytes)))
	s.fsck()
	return nil
}

// Close implements Store.
func (s *LocalStore) Close() error {
	return s.wf.close()
}

// fsck is the in-memory structural self-check: it verifies the free list
// is acyclic and that free regions and allocated regions partition
// [1, words) with no gap or overlap. A violation panics; recovering a
// corrupt backing file is out of scope.
func (s *LocalStore) fsck() {
	if !s.fsckEnabled {
		return
	}
	wf := s.wf
	words := wf.words()
	if words == 0 {
		return
	}
	free := s.snapshotFreeList()
	sort.Slice(free, func(i, j int) bool { return free[i].addr < free[j].addr })

	addr := uint64(1)
	idx := 0
	for addr < words {
		if idx < len(free) && free[idx].addr < addr {
			d.Corrupt("free regions overlap at word %d", free[idx].addr)
		}
		if idx < len(free) && free[idx].addr == addr {
			if free[idx].length < 2 {
				d.Corrupt("free region at word %d is shorter than 2 words", addr)
			}
			addr += free[idx].length
			idx++
			continue
		}
		n := wf.readWord(addr)
		L := wordsNeeded(int(n))
		if addr+L > words {
			d.Corrupt("allocated region at word %d overruns file", addr)
		}
		addr += L
	}
	if addr != words {
		d.Corrupt("regions do not cover file exactly: ended at word %d, file has %d words", addr, words)
	}
	if idx != len(free) {
		d.Corrupt("free region at word %d lies beyond end of file coverage", free[idx].addr)
	}
}
