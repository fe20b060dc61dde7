// Copyright 2024 The Rowblock author and other contributors.
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

// Package rowblock reads and writes the row-oriented data block of a
// sorted-string table. A block is an immutable byte buffer holding a sorted
// run of prefix-compressed key/value entries followed by a restart array:
//
//	entries | restart offsets (fixed32 each) | num restarts (fixed32)
//
// Entries at restart offsets carry their full key; the restart array serves
// both as the binary-search index for seeks and as the set of decoding
// anchors for backward iteration.
package rowblock

import (
	"encoding/binary"

	"github.com/lsmkit/rowblock/internal/base"
)

// An empty block still contains one restart point (offset 0) and the
// restart count, 4 bytes each.
const minBlockSize = 8

// HashIndex narrows a seek to the contiguous restart range whose entries
// share the target key's prefix bucket. ok == false means the key cannot be
// in the block.
type HashIndex interface {
	RestartRange(key []byte) (first, count uint32, ok bool)
	ApproximateMemoryUsage() int
}

// PrefixIndex narrows a seek to a sparse ascending set of candidate restart
// indices whose restart keys share the target key's prefix. An empty result
// means the key cannot be in the block.
type PrefixIndex interface {
	Blocks(key []byte) []uint32
	ApproximateMemoryUsage() int
}

// IterOptions adjusts cursor behavior at creation time.
type IterOptions struct {
	// TotalOrderSeek makes SeekGE ignore any attached hash or prefix index
	// and binary-search the full restart range.
	TotalOrderSeek bool
}

// Block is an immutable data block. It owns its byte buffer and any
// attached auxiliary index; cursors created from it borrow both and must
// not outlive it.
type Block struct {
	data          []byte
	restartOffset uint32
	numRestarts   uint32
	err           error
	hashIndex     HashIndex
	prefixIndex   PrefixIndex
}

// NewBlock wraps a serialized block. Ownership of data passes to the Block;
// the caller must not mutate it afterwards. A buffer whose trailer is
// unusable yields a degenerate block: every cursor it hands out reports
// ErrBadBlockContents.
func NewBlock(data []byte) *Block {
	b := &Block{data: data}
	if len(data) < 4 {
		b.err = ErrBadBlockContents
		return b
	}
	b.numRestarts = binary.LittleEndian.Uint32(data[len(data)-4:])
	// 64-bit arithmetic: a huge declared restart count must not wrap the
	// subtraction into a plausible offset.
	trailerSize := (1 + uint64(b.numRestarts)) * 4
	if trailerSize > uint64(len(data)) {
		// The declared restart array does not fit in the buffer.
		b.err = ErrBadBlockContents
		return b
	}
	b.restartOffset = uint32(uint64(len(data)) - trailerSize)
	return b
}

// NumRestarts returns the restart count from the block trailer, or 0 for a
// degenerate block.
func (b *Block) NumRestarts() uint32 {
	if b.err != nil {
		return 0
	}
	return b.numRestarts
}

// Size returns the byte length of the block buffer.
func (b *Block) Size() int {
	return len(b.data)
}

// Err returns ErrBadBlockContents for a degenerate block and nil otherwise.
func (b *Block) Err() error {
	return b.err
}

// ApproximateMemoryUsage returns the buffer size plus the reported usage of
// any attached index.
func (b *Block) ApproximateMemoryUsage() int {
	usage := len(b.data)
	if b.hashIndex != nil {
		usage += b.hashIndex.ApproximateMemoryUsage()
	}
	if b.prefixIndex != nil {
		usage += b.prefixIndex.ApproximateMemoryUsage()
	}
	return usage
}

// SetHashIndex attaches a hash index. Ownership transfers to the block.
func (b *Block) SetHashIndex(h HashIndex) {
	b.hashIndex = h
}

// SetPrefixIndex attaches a prefix index. Ownership transfers to the block.
func (b *Block) SetPrefixIndex(p PrefixIndex) {
	b.prefixIndex = p
}

// NewIter returns a cursor over the block's entries. If reuse is non-nil it
// is reinitialized in place, retaining its key buffer. A degenerate block
// yields a cursor whose Error is ErrBadBlockContents; a block with zero
// restarts yields a cursor that is never valid but whose Error is nil.
func (b *Block) NewIter(cmp base.Compare, reuse *BlockIter, o IterOptions) *BlockIter {
	it := reuse
	if it == nil {
		it = &BlockIter{}
	}
	if b.err != nil || len(b.data) < minBlockSize {
		*it = BlockIter{err: ErrBadBlockContents}
		return it
	}
	if b.numRestarts == 0 {
		*it = BlockIter{}
		return it
	}
	it.init(cmp, b.data, b.restartOffset, b.numRestarts)
	if !o.TotalOrderSeek {
		it.hashIndex = b.hashIndex
		it.prefixIndex = b.prefixIndex
	}
	return it
}

// MiddleKey returns the restart key roughly halfway through the block,
// used for picking a split point. It returns ErrBlockEmpty for a block with
// no entries.
func (b *Block) MiddleKey() ([]byte, error) {
	if b.err != nil || len(b.data) < minBlockSize {
		return nil, ErrBadBlockContents
	}
	if len(b.data) == minBlockSize {
		return nil, ErrBlockEmpty
	}
	restartIdx := b.numRestarts / 2
	entryOffset := binary.LittleEndian.Uint32(b.data[b.restartOffset+4*restartIdx:])
	if entryOffset >= b.restartOffset {
		return nil, ErrBadEntryInBlock
	}
	shared, unshared, _, headerLen, ok := decodeEntry(b.data[entryOffset:b.restartOffset])
	if !ok || shared != 0 {
		return nil, ErrBadEntryInBlock
	}
	keyStart := entryOffset + headerLen
	return b.data[keyStart : keyStart+unshared], nil
}
