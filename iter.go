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

package rowblock

import (
	"encoding/binary"

	"github.com/lsmkit/rowblock/internal/base"
)

// BlockIter is a cursor over a block's entries. It is created by
// Block.NewIter, holds non-owning references to the block buffer and any
// attached indexes, and must not outlive the block. A single BlockIter is
// not safe for concurrent use; distinct iterators over the same block are.
//
// Entries are only decodable forward: each key borrows a prefix from its
// predecessor, so backward motion rewinds to a restart point and walks
// forward from there.
type BlockIter struct {
	cmp  base.Compare
	data []byte
	// restarts is the byte offset where the restart array begins; entries
	// occupy data[:restarts].
	restarts    uint32
	numRestarts uint32
	// offset is the byte position of the entry whose key and value are
	// exposed. offset == restarts is the invalid sentinel, paired with
	// restartIndex == numRestarts.
	offset     uint32
	nextOffset uint32
	// restartIndex is the restart interval holding offset: the largest index
	// whose restart offset is < offset, or the index whose restart offset
	// equals offset when the cursor got there by seeking to that restart
	// point. Either way its restart offset is <= offset.
	restartIndex uint32
	// key points either directly into data (entries with no shared prefix)
	// or into fullKey. fullKey always holds the reconstructed current key.
	key     []byte
	fullKey []byte
	val     []byte
	err     error

	hashIndex   HashIndex
	prefixIndex PrefixIndex
}

func (i *BlockIter) init(cmp base.Compare, data []byte, restarts, numRestarts uint32) {
	fullKey := i.fullKey[:0]
	*i = BlockIter{
		cmp:          cmp,
		data:         data,
		restarts:     restarts,
		numRestarts:  numRestarts,
		offset:       restarts,
		nextOffset:   restarts,
		restartIndex: numRestarts,
		fullKey:      fullKey,
	}
}

// Valid reports whether the cursor is positioned at an entry.
func (i *BlockIter) Valid() bool {
	return i.data != nil && i.offset < i.restarts
}

// Key returns the current key. The returned slice is only valid until the
// next cursor motion.
func (i *BlockIter) Key() []byte {
	return i.key
}

// Value returns the current value. The returned slice points into the block
// buffer and remains valid for the block's lifetime.
func (i *BlockIter) Value() []byte {
	return i.val
}

// Error returns the corruption status. Once set it never clears; the caller
// must create a new cursor.
func (i *BlockIter) Error() error {
	return i.err
}

func (i *BlockIter) restartPoint(index uint32) uint32 {
	return binary.LittleEndian.Uint32(i.data[i.restarts+4*index:])
}

func (i *BlockIter) seekToRestartPoint(index uint32) {
	i.restartIndex = index
	i.fullKey = i.fullKey[:0]
	i.key = nil
	i.val = nil
	// parseNextEntry picks the entry up from nextOffset.
	i.nextOffset = i.restartPoint(index)
}

func (i *BlockIter) corruptionError() {
	i.offset = i.restarts
	i.nextOffset = i.restarts
	i.restartIndex = i.numRestarts
	i.err = ErrBadEntryInBlock
	i.key = nil
	i.fullKey = i.fullKey[:0]
	i.val = nil
}

// parseNextEntry advances to the entry at nextOffset and decodes it. It
// returns false when the cursor moves past the last entry or hits
// corruption.
func (i *BlockIter) parseNextEntry() bool {
	i.offset = i.nextOffset
	if i.offset >= i.restarts {
		// No more entries.
		i.offset = i.restarts
		i.restartIndex = i.numRestarts
		return false
	}

	shared, unshared, valueLen, headerLen, ok := decodeEntry(i.data[i.offset:i.restarts])
	if !ok || uint32(len(i.fullKey)) < shared {
		i.corruptionError()
		return false
	}

	keyStart := i.offset + headerLen
	unsharedKey := i.data[keyStart : keyStart+unshared]
	i.fullKey = append(i.fullKey[:shared], unsharedKey...)
	if shared == 0 {
		// The entry carries its whole key; expose it straight from the
		// block buffer.
		i.key = unsharedKey
	} else {
		i.key = i.fullKey
	}
	i.val = i.data[keyStart+unshared : keyStart+unshared+valueLen]
	i.nextOffset = keyStart + unshared + valueLen
	for i.restartIndex+1 < i.numRestarts && i.restartPoint(i.restartIndex+1) < i.offset {
		i.restartIndex++
	}
	return true
}

// First positions the cursor at the first entry. It returns nil, nil if the
// block has no entries.
func (i *BlockIter) First() ([]byte, []byte) {
	if i.data == nil {
		return nil, nil
	}
	i.seekToRestartPoint(0)
	if !i.parseNextEntry() {
		return nil, nil
	}
	return i.key, i.val
}

// Last positions the cursor at the final entry.
func (i *BlockIter) Last() ([]byte, []byte) {
	if i.data == nil {
		return nil, nil
	}
	i.seekToRestartPoint(i.numRestarts - 1)
	if !i.parseNextEntry() {
		return nil, nil
	}
	for i.nextOffset < i.restarts {
		if !i.parseNextEntry() {
			return nil, nil
		}
	}
	return i.key, i.val
}

// Next moves to the following entry. The cursor must be valid.
func (i *BlockIter) Next() ([]byte, []byte) {
	if !i.Valid() {
		return nil, nil
	}
	if !i.parseNextEntry() {
		return nil, nil
	}
	return i.key, i.val
}

// Prev moves to the preceding entry. The cursor must be valid. Prefix
// compression makes entries undecodable in reverse, so Prev rewinds to the
// nearest restart point before the current entry and replays forward.
func (i *BlockIter) Prev() ([]byte, []byte) {
	if !i.Valid() {
		return nil, nil
	}
	original := i.offset
	for i.restartPoint(i.restartIndex) >= original {
		if i.restartIndex == 0 {
			// The current entry is the first in the block.
			i.offset = i.restarts
			i.nextOffset = i.restarts
			i.restartIndex = i.numRestarts
			i.key = nil
			i.val = nil
			return nil, nil
		}
		i.restartIndex--
	}

	i.seekToRestartPoint(i.restartIndex)
	for {
		if !i.parseNextEntry() {
			return nil, nil
		}
		if i.nextOffset >= original {
			break
		}
	}
	return i.key, i.val
}

// SeekGE positions the cursor at the first entry whose key is >= target,
// leaving it invalid if no such entry exists. With an attached prefix or
// hash index the restart-range to search is narrowed first; either index
// may also prove the target absent outright.
func (i *BlockIter) SeekGE(target []byte) ([]byte, []byte) {
	if i.data == nil {
		return nil, nil
	}

	var index uint32
	var ok bool
	switch {
	case i.prefixIndex != nil:
		index, ok = i.prefixSeek(target)
	case i.hashIndex != nil:
		index, ok = i.hashSeek(target)
	default:
		index, ok = i.binarySeek(target, 0, i.numRestarts-1)
	}
	if !ok {
		return nil, nil
	}

	i.seekToRestartPoint(index)
	// Linear walk within the restart interval for the first key >= target.
	for {
		if !i.parseNextEntry() {
			return nil, nil
		}
		if i.cmp(i.key, target) >= 0 {
			return i.key, i.val
		}
	}
}

// binarySeek returns the largest restart index in [left, right] whose key
// is <= target, under the loop invariant that the answer stays inside the
// shrinking range. The caller walks forward from the returned restart.
func (i *BlockIter) binarySeek(target []byte, left, right uint32) (uint32, bool) {
	for left < right {
		// Upper-biased midpoint: left < right implies mid >= 1, so the
		// mid-1 below cannot wrap.
		mid := (left + right + 1) / 2
		midKey, ok := i.decodeRestartKey(mid)
		if !ok {
			i.corruptionError()
			return 0, false
		}
		cmp := i.cmp(midKey, target)
		switch {
		case cmp < 0:
			// Restarts before mid are all < target; mid itself may still
			// lead to the answer.
			left = mid
		case cmp > 0:
			right = mid - 1
		default:
			left, right = mid, mid
		}
	}
	return left, true
}

// decodeRestartKey decodes the key of the entry anchored at the given
// restart index. Restart entries must carry their full key.
func (i *BlockIter) decodeRestartKey(index uint32) ([]byte, bool) {
	entryOffset := i.restartPoint(index)
	if entryOffset >= i.restarts {
		return nil, false
	}
	shared, unshared, _, headerLen, ok := decodeEntry(i.data[entryOffset:i.restarts])
	if !ok || shared != 0 {
		return nil, false
	}
	keyStart := entryOffset + headerLen
	return i.data[keyStart : keyStart+unshared], true
}

// compareRestartKey compares the restart key at index against target,
// entering the corrupt state (and reporting the target smaller) on a bad
// entry.
func (i *BlockIter) compareRestartKey(index uint32, target []byte) int {
	key, ok := i.decodeRestartKey(index)
	if !ok {
		i.corruptionError()
		return 1
	}
	return i.cmp(key, target)
}

func (i *BlockIter) invalidate() {
	i.offset = i.restarts
	i.nextOffset = i.restarts
	i.restartIndex = i.numRestarts
	i.key = nil
	i.val = nil
}

// hashSeek narrows the binary search to the contiguous restart range that
// the hash index maps the target's prefix bucket to.
func (i *BlockIter) hashSeek(target []byte) (uint32, bool) {
	first, count, ok := i.hashIndex.RestartRange(target)
	if !ok || count == 0 {
		i.invalidate()
		return 0, false
	}
	if first >= i.numRestarts || count > i.numRestarts-first {
		// The index disagrees with the block trailer.
		i.corruptionError()
		return 0, false
	}
	return i.binarySeek(target, first, first+count-1)
}

// prefixSeek asks the prefix index for the sparse candidate restart set and
// binary-searches it. An empty set means the target cannot be in the block.
func (i *BlockIter) prefixSeek(target []byte) (uint32, bool) {
	blockIDs := i.prefixIndex.Blocks(target)
	if len(blockIDs) == 0 {
		i.invalidate()
		return 0, false
	}
	return i.binaryBlockIndexSeek(target, blockIDs, 0, uint32(len(blockIDs)-1))
}

// binaryBlockIndexSeek finds the first candidate in blockIDs[left:right+1]
// whose restart key is >= target. The candidate set may be sparse: when the
// winning candidate is preceded by a gap of omitted restarts, the entry
// just before it decides whether the target can exist at all. A restart key
// greater than the target inside such a gap proves the target absent, since
// every omitted restart shares a prefix the target does not.
func (i *BlockIter) binaryBlockIndexSeek(target []byte, blockIDs []uint32, left, right uint32) (uint32, bool) {
	leftBound := left
	for left <= right {
		mid := (left + right) / 2
		if blockIDs[mid] >= i.numRestarts {
			i.corruptionError()
			return 0, false
		}
		cmp := i.compareRestartKey(blockIDs[mid], target)
		if i.err != nil {
			return 0, false
		}
		if cmp < 0 {
			left = mid + 1
		} else {
			if left == right {
				break
			}
			right = mid
		}
	}

	if left != right {
		// Every candidate restart key is < target; the target would sort
		// past the last candidate's restart interval.
		i.invalidate()
		return 0, false
	}
	if blockIDs[left] > 0 &&
		(left == leftBound || blockIDs[left-1] != blockIDs[left]-1) &&
		i.compareRestartKey(blockIDs[left]-1, target) > 0 {
		if i.err != nil {
			return 0, false
		}
		i.invalidate()
		return 0, false
	}
	if i.err != nil {
		return 0, false
	}
	return blockIDs[left], true
}
