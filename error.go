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

import "github.com/cockroachdb/errors"

var (
	// ErrBadBlockContents reports a structurally unusable block: the buffer
	// is too small to hold a trailer, or the restart array it declares does
	// not fit in the buffer.
	ErrBadBlockContents = errors.New("rowblock: bad block contents")

	// ErrBadEntryInBlock reports an entry that failed to decode, or whose
	// shared length is inconsistent with its position.
	ErrBadEntryInBlock = errors.New("rowblock: bad entry in block")

	// ErrBlockEmpty is returned by MiddleKey on a well-formed block that
	// holds no entries.
	ErrBlockEmpty = errors.New("rowblock: empty block")
)
