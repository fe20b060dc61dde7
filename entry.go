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

// Each block entry is a header of three uint32s (shared key length,
// unshared key length, value length) followed by the unshared key bytes and
// the value bytes. The header is three varint32s; when all three fit in one
// byte each the raw bytes are the values themselves, which decodes the same
// either way.

// decodeVarint32 decodes a base-128 varint of at most 5 bytes from the
// front of b. It returns the decoded value and the number of bytes
// consumed, or n == 0 if b is truncated or the varint overruns 5 bytes.
func decodeVarint32(b []byte) (v uint32, n int) {
	for shift := uint(0); shift <= 28; shift += 7 {
		if n >= len(b) {
			return 0, 0
		}
		c := b[n]
		n++
		if c < 128 {
			return v | uint32(c)<<shift, n
		}
		v |= uint32(c&0x7f) << shift
	}
	return 0, 0
}

// decodeEntry decodes the entry header at the front of b, where b extends
// to the end of the entry region. It returns the three header values and
// the header length. ok is false if the header is truncated, a varint is
// malformed, or the declared key and value bytes extend past b. decodeEntry
// never reads outside b.
func decodeEntry(b []byte) (shared, unshared, valueLen, headerLen uint32, ok bool) {
	if len(b) < 3 {
		return 0, 0, 0, 0, false
	}
	if b[0]|b[1]|b[2] < 128 {
		// Fast path: all three values are encoded in one byte each.
		shared = uint32(b[0])
		unshared = uint32(b[1])
		valueLen = uint32(b[2])
		headerLen = 3
	} else {
		var n int
		p := 0
		if shared, n = decodeVarint32(b); n == 0 {
			return 0, 0, 0, 0, false
		}
		p += n
		if unshared, n = decodeVarint32(b[p:]); n == 0 {
			return 0, 0, 0, 0, false
		}
		p += n
		if valueLen, n = decodeVarint32(b[p:]); n == 0 {
			return 0, 0, 0, 0, false
		}
		headerLen = uint32(p + n)
	}
	// 64-bit arithmetic so the sum of two 32-bit lengths cannot wrap.
	if uint64(len(b))-uint64(headerLen) < uint64(unshared)+uint64(valueLen) {
		return 0, 0, 0, 0, false
	}
	return shared, unshared, valueLen, headerLen, true
}
