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
	"github.com/cespare/xxhash/v2"

	"github.com/lsmkit/rowblock/internal/base"
)

// restartRange is a contiguous half-open range of restart indices,
// [first, first+count).
type restartRange struct {
	first uint32
	count uint32
}

// BlockHashIndex maps the hash of a key's prefix to the contiguous restart
// range whose entries carry that prefix. A missing bucket proves the key
// absent from the block. It implements HashIndex.
type BlockHashIndex struct {
	split   base.Split
	buckets map[uint64]restartRange
}

var _ HashIndex = (*BlockHashIndex)(nil)

// RestartRange returns the restart range for the key's prefix bucket.
func (h *BlockHashIndex) RestartRange(key []byte) (first, count uint32, ok bool) {
	r, ok := h.buckets[hashPrefix(h.split, key)]
	return r.first, r.count, ok
}

// ApproximateMemoryUsage returns the rough heap footprint of the index.
func (h *BlockHashIndex) ApproximateMemoryUsage() int {
	// Bucket header plus key and value per entry.
	return 48 + len(h.buckets)*(8+8)
}

func hashPrefix(split base.Split, key []byte) uint64 {
	return xxhash.Sum64(key[:split(key)])
}

// HashIndexBuilder accumulates (entry key, restart index) pairs during
// block construction and produces a BlockHashIndex. Feed it every entry
// added to the block, in order, with the writer's current RestartIndex.
type HashIndexBuilder struct {
	split   base.Split
	buckets map[uint64]restartRange
}

// NewHashIndexBuilder returns a builder bucketing by the given prefix
// extractor.
func NewHashIndexBuilder(split base.Split) *HashIndexBuilder {
	return &HashIndexBuilder{
		split:   split,
		buckets: make(map[uint64]restartRange),
	}
}

// Add records that an entry with the given key lives in the given restart
// interval. Restart indices must be fed in ascending order.
func (b *HashIndexBuilder) Add(key []byte, restartIndex uint32) {
	h := hashPrefix(b.split, key)
	r, ok := b.buckets[h]
	if !ok {
		b.buckets[h] = restartRange{first: restartIndex, count: 1}
		return
	}
	if restartIndex < r.first+r.count {
		return
	}
	// A hash collision or a reappearing prefix leaves holes; widening the
	// range keeps the bucket a superset of the prefix's restarts, which
	// seeks tolerate.
	r.count = restartIndex - r.first + 1
	b.buckets[h] = r
}

// Finish returns the immutable index. The builder must not be reused.
func (b *HashIndexBuilder) Finish() *BlockHashIndex {
	idx := &BlockHashIndex{split: b.split, buckets: b.buckets}
	b.buckets = nil
	return idx
}
