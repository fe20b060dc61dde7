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

package base

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Compare returns -1, 0, or +1 depending on whether a is less than, equal
// to, or greater than b. An empty slice must be treated the same as nil.
type Compare func(a, b []byte) int

// Equal reports whether a and b are equivalent under the same total order
// as Compare.
type Equal func(a, b []byte) bool

// AbbreviatedKey maps a key to a uint64 whose ordering over keys is
// consistent with Compare for the keys it can distinguish.
type AbbreviatedKey func(key []byte) uint64

// Split returns the length of the prefix of the key. Keys sharing a prefix
// are bucketed together by the auxiliary block indexes. Split must satisfy
// 0 <= Split(k) <= len(k) for every key k.
type Split func(key []byte) int

// Comparer bundles the key ordering functions and an identifying name.
type Comparer struct {
	Compare        Compare
	Equal          Equal
	AbbreviatedKey AbbreviatedKey
	Split          Split
	Name           string
}

// DefaultComparer orders keys bytewise. It has no Split: prefix bucketing
// is meaningless without a key schema, so callers wanting the auxiliary
// indexes supply their own.
var DefaultComparer = &Comparer{
	Compare: bytes.Compare,
	Equal:   bytes.Equal,

	AbbreviatedKey: func(key []byte) uint64 {
		if len(key) >= 8 {
			return binary.BigEndian.Uint64(key)
		}
		var v uint64
		for _, b := range key {
			v <<= 8
			v |= uint64(b)
		}
		return v << uint(8*(8-len(key)))
	},

	Name: "rowblock.BytewiseComparator",
}

// SharedPrefixLen returns the length of the common byte prefix of a and b.
func SharedPrefixLen(a, b []byte) int {
	i, n := 0, len(a)
	if n > len(b) {
		n = len(b)
	}
	asUint64 := func(c []byte, i int) uint64 {
		return binary.LittleEndian.Uint64(c[i:])
	}
	for i < n-7 && asUint64(a, i) == asUint64(b, i) {
		i += 8
	}
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// FormatBytes renders a key with non-printable bytes escaped.
type FormatBytes []byte

func (p FormatBytes) Format(s fmt.State, c rune) {
	lower := []byte("0123456789abcdef")
	for _, b := range p {
		if b < 0x20 || b > 0x7e {
			fmt.Fprintf(s, `\x%c%c`, lower[b>>4], lower[b&0xf])
			continue
		}
		s.Write([]byte{b})
	}
}
