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
	"testing"

	"github.com/stretchr/testify/require"
)

func appendUvarint32(dst []byte, x uint32) []byte {
	var tmp [binary.MaxVarintLen32]byte
	n := binary.PutUvarint(tmp[:], uint64(x))
	return append(dst, tmp[:n]...)
}

func TestDecodeVarint32(t *testing.T) {
	for _, x := range []uint32{0, 1, 127, 128, 300, 1 << 14, 1<<28 - 1, 1 << 28, 1<<32 - 1} {
		b := appendUvarint32(nil, x)
		v, n := decodeVarint32(b)
		require.Equal(t, len(b), n)
		require.Equal(t, x, v)
	}

	// Truncated.
	_, n := decodeVarint32(nil)
	require.Zero(t, n)
	_, n = decodeVarint32([]byte{0x80})
	require.Zero(t, n)
	_, n = decodeVarint32([]byte{0x80, 0x80, 0x80})
	require.Zero(t, n)

	// More than 5 bytes of continuation.
	_, n = decodeVarint32([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	require.Zero(t, n)
}

func TestDecodeEntryFastPath(t *testing.T) {
	b := []byte{2, 3, 4, 'a', 'b', 'c', 'w', 'x', 'y', 'z'}
	shared, unshared, valueLen, headerLen, ok := decodeEntry(b)
	require.True(t, ok)
	require.Equal(t, uint32(2), shared)
	require.Equal(t, uint32(3), unshared)
	require.Equal(t, uint32(4), valueLen)
	require.Equal(t, uint32(3), headerLen)
}

func TestDecodeEntryVarintPath(t *testing.T) {
	var b []byte
	b = appendUvarint32(b, 0)
	b = appendUvarint32(b, 200)
	b = appendUvarint32(b, 5)
	headerEnd := len(b)
	b = append(b, make([]byte, 205)...)

	shared, unshared, valueLen, headerLen, ok := decodeEntry(b)
	require.True(t, ok)
	require.Equal(t, uint32(0), shared)
	require.Equal(t, uint32(200), unshared)
	require.Equal(t, uint32(5), valueLen)
	require.Equal(t, uint32(headerEnd), headerLen)

	// A header whose three values each fit in one byte takes the fast path
	// and yields the values that three single-byte varints encode.
	fast := []byte{1, 1, 1, 'k', 'v'}
	s1, u1, v1, h1, ok1 := decodeEntry(fast)
	require.True(t, ok1)
	require.Equal(t, []uint32{1, 1, 1, 3}, []uint32{s1, u1, v1, h1})
}

func TestDecodeEntryTruncated(t *testing.T) {
	for _, b := range [][]byte{
		nil,
		{1},
		{1, 2},
		{0, 3, 0, 'f', 'o'},      // unshared bytes cut short
		{0, 1, 3, 'f', 'o'},      // value bytes cut short
		{0x80, 0x80, 0x80, 0x80}, // shared varint overruns the buffer
	} {
		_, _, _, _, ok := decodeEntry(b)
		require.False(t, ok, "entry %x", b)
	}
}

func TestDecodeEntryLengthOverflow(t *testing.T) {
	// unshared + valueLen close to 2^32 must not wrap the bounds check.
	var b []byte
	b = appendUvarint32(b, 0)
	b = appendUvarint32(b, 1<<32-1)
	b = appendUvarint32(b, 1<<32-1)
	b = append(b, make([]byte, 64)...)
	_, _, _, _, ok := decodeEntry(b)
	require.False(t, ok)
}
