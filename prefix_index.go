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
	"github.com/RoaringBitmap/roaring"

	"github.com/lsmkit/rowblock/internal/base"
)

// BlockPrefixIndex maps the hash of a key's prefix to the ascending,
// possibly sparse set of restart indices whose restart keys carry that
// prefix. An empty result proves the key absent from the block. It
// implements PrefixIndex.
type BlockPrefixIndex struct {
	split   base.Split
	buckets map[uint64][]uint32
	// ids backs every bucket slice in one allocation.
	ids []uint32
}

var _ PrefixIndex = (*BlockPrefixIndex)(nil)

// Blocks returns the candidate restart indices for the key's prefix.
func (p *BlockPrefixIndex) Blocks(key []byte) []uint32 {
	return p.buckets[hashPrefix(p.split, key)]
}

// ApproximateMemoryUsage returns the rough heap footprint of the index.
func (p *BlockPrefixIndex) ApproximateMemoryUsage() int {
	return 48 + len(p.buckets)*(8+24) + 4*len(p.ids)
}

// PrefixIndexBuilder accumulates (restart key, restart index) pairs during
// block construction and produces a BlockPrefixIndex. Unlike the hash index
// it is fed only restart-point entries, so its candidate sets may have gaps
// that seeks must compensate for.
type PrefixIndexBuilder struct {
	split   base.Split
	buckets map[uint64]*roaring.Bitmap
}

// NewPrefixIndexBuilder returns a builder bucketing by the given prefix
// extractor.
func NewPrefixIndexBuilder(split base.Split) *PrefixIndexBuilder {
	return &PrefixIndexBuilder{
		split:   split,
		buckets: make(map[uint64]*roaring.Bitmap),
	}
}

// Add records that the restart interval's anchor key carries the given
// prefix.
func (b *PrefixIndexBuilder) Add(restartKey []byte, restartIndex uint32) {
	h := hashPrefix(b.split, restartKey)
	bm := b.buckets[h]
	if bm == nil {
		bm = roaring.New()
		b.buckets[h] = bm
	}
	bm.Add(restartIndex)
}

// Finish returns the immutable index. The builder must not be reused.
func (b *PrefixIndexBuilder) Finish() *BlockPrefixIndex {
	var total uint64
	for _, bm := range b.buckets {
		total += bm.GetCardinality()
	}
	idx := &BlockPrefixIndex{
		split:   b.split,
		buckets: make(map[uint64][]uint32, len(b.buckets)),
		ids:     make([]uint32, 0, total),
	}
	for h, bm := range b.buckets {
		n := len(idx.ids)
		idx.ids = append(idx.ids, bm.ToArray()...)
		idx.buckets[h] = idx.ids[n:len(idx.ids):len(idx.ids)]
	}
	b.buckets = nil
	return idx
}
