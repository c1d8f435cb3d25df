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
	"encoding/binary"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// wordSize is the machine word size the on-disk format is built from.
// Fixed at 8 regardless of GOARCH so the on-disk format is portable across
// build targets.
const wordSize = 8

// wordFile is a memory-mapped file addressed in wordSize-byte words, native
// (little-endian, per the on-disk format section) byte order. It owns the
// single mmap.MMap region backing a LocalStore and re-maps on every grow or
// shrink; no slice of the mapping may be retained across a call that may
// remap (grow/shrink) the file, which is why bytesAt returns a copy.
type wordFile struct {
	path string
	file *os.File
	data mmap.MMap
}

func openWordFile(path string) (*wordFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening backing file %q", path)
	}
	wf := &wordFile{path: path, file: f}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat backing file")
	}
	if info.Size() > 0 {
		if err := wf.remap(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return wf, nil
}

func (wf *wordFile) remap() error {
	if wf.data != nil {
		if err := wf.data.Unmap(); err != nil {
			return errors.Wrap(err, "unmapping backing file")
		}
		wf.data = nil
	}
	info, err := wf.file.Stat()
	if err != nil {
		return errors.Wrap(err, "stat backing file")
	}
	if info.Size() == 0 {
		return nil
	}
	m, err := mmap.Map(wf.file, mmap.RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "mmap backing file")
	}
	wf.data = m
	return nil
}

// truncateTo resizes the file to n bytes and remaps it. n must be a
// multiple of wordSize.
func (wf *wordFile) truncateTo(n int64) error {
	if err := wf.file.Truncate(n); err != nil {
		return errors.Wrap(err, "truncating backing file")
	}
	return wf.remap()
}

func (wf *wordFile) sizeBytes() int64 {
	if wf.data == nil {
		return 0
	}
	return int64(len(wf.data))
}

// words is the capacity of the file in wordSize-byte words.
func (wf *wordFile) words() uint64 {
	return uint64(wf.sizeBytes()) / wordSize
}

func (wf *wordFile) readWord(addr uint64) uint64 {
	off := addr * wordSize
	return binary.LittleEndian.Uint64(wf.data[off : off+wordSize])
}

func (wf *wordFile) writeWord(addr uint64, v uint64) {
	off := addr * wordSize
	binary.LittleEndian.PutUint64(wf.data[off:off+wordSize], v)
}

// bytesAt returns a copy of n bytes starting at byte offset byteOff (for a
// payload, the byte offset of the word after its length word).
func (wf *wordFile) bytesAt(byteOff uint64, n int) []byte {
	out := make([]byte, n)
	copy(out, wf.data[byteOff:byteOff+uint64(n)])
	return out
}

func (wf *wordFile) writeBytesAt(byteOff uint64, data []byte) {
	copy(wf.data[byteOff:byteOff+uint64(len(data))], data)
}

func (wf *wordFile) close() error {
	if wf.data != nil {
		if err := wf.data.Unmap(); err != nil {
			return err
		}
		wf.data = nil
	}
	return wf.file.Close()
}

// encodeID is the little-endian wordSize-byte encoding of a word address.
func encodeID(addr uint64) []byte {
	id := make([]byte, wordSize)
	binary.LittleEndian.PutUint64(id, addr)
	return id
}

func decodeID(id []byte) (uint64, error) {
	if len(id) != wordSize {
		return 0, errors.Errorf("store: id must be %d bytes, got %d", wordSize, len(id))
	}
	return binary.LittleEndian.Uint64(id), nil
}
