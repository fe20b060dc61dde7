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

// DefaultRestartInterval is the number of entries between restart points.
const DefaultRestartInterval = 16

// WriterOptions configures a BlockWriter.
type WriterOptions struct {
	// RestartInterval is the number of entries between restart points.
	// Defaults to DefaultRestartInterval.
	RestartInterval int
	// Comparer orders the keys fed to Add. The writer does not sort; it
	// only reports out-of-order input through Logger, since readers trust
	// builder order unconditionally. Defaults to base.DefaultComparer.
	Comparer *base.Comparer
	// Logger receives misuse reports. Defaults to base.DefaultLogger.
	Logger base.Logger
}

func (o WriterOptions) ensureDefaults() WriterOptions {
	if o.RestartInterval <= 0 {
		o.RestartInterval = DefaultRestartInterval
	}
	if o.Comparer == nil {
		o.Comparer = base.DefaultComparer
	}
	if o.Logger == nil {
		o.Logger = base.DefaultLogger
	}
	return o
}

// BlockWriter accumulates sorted key/value entries and serializes them into
// the block layout read by Block. Keys must be added in the Comparer's
// order.
type BlockWriter struct {
	opts     WriterOptions
	nEntries int
	// nextRestart is the entry index at which the next restart point is
	// emitted.
	nextRestart int
	buf         []byte
	restarts    []uint32
	curKey      []byte
	prevKey     []byte
	tmp         [4]byte
}

// NewBlockWriter returns a writer with the given options.
func NewBlockWriter(o WriterOptions) *BlockWriter {
	return &BlockWriter{opts: o.ensureDefaults()}
}

// Add appends an entry. The key is prefix-compressed against the previous
// key unless this entry starts a new restart interval.
func (w *BlockWriter) Add(key, value []byte) {
	w.curKey, w.prevKey = w.prevKey, w.curKey
	w.curKey = append(w.curKey[:0], key...)

	if w.nEntries > 0 && w.opts.Comparer.Compare(w.curKey, w.prevKey) < 0 {
		w.opts.Logger.Errorf("rowblock: key %s added out of order after %s",
			base.FormatBytes(w.curKey), base.FormatBytes(w.prevKey))
	}

	shared := 0
	if w.nEntries == w.nextRestart {
		w.nextRestart = w.nEntries + w.opts.RestartInterval
		w.restarts = append(w.restarts, uint32(len(w.buf)))
	} else {
		shared = base.SharedPrefixLen(w.curKey, w.prevKey)
	}

	needed := 3*binary.MaxVarintLen32 + len(w.curKey[shared:]) + len(value)
	n := len(w.buf)
	if cap(w.buf) < n+needed {
		newCap := 2 * cap(w.buf)
		if newCap == 0 {
			newCap = 1024
		}
		for newCap < n+needed {
			newCap *= 2
		}
		newBuf := make([]byte, n, newCap)
		copy(newBuf, w.buf)
		w.buf = newBuf
	}
	w.buf = w.buf[:n+needed]

	n = w.putUvarint32(n, uint32(shared))
	n = w.putUvarint32(n, uint32(len(w.curKey)-shared))
	n = w.putUvarint32(n, uint32(len(value)))
	n += copy(w.buf[n:], w.curKey[shared:])
	n += copy(w.buf[n:], value)
	w.buf = w.buf[:n]

	w.nEntries++
}

func (w *BlockWriter) putUvarint32(n int, x uint32) int {
	for x >= 0x80 {
		w.buf[n] = byte(x) | 0x80
		x >>= 7
		n++
	}
	w.buf[n] = byte(x)
	n++
	return n
}

// NumEntries returns the number of entries added since the last Finish.
func (w *BlockWriter) NumEntries() int {
	return w.nEntries
}

// RestartIndex returns the index of the restart interval the most recently
// added entry belongs to. It is what index builders record per entry.
func (w *BlockWriter) RestartIndex() uint32 {
	if len(w.restarts) == 0 {
		return 0
	}
	return uint32(len(w.restarts) - 1)
}

// EstimatedSize returns the byte size of the block if finished now. With no
// entries added it returns 4, leaving out the restart offset that Finish
// writes for an empty block.
func (w *BlockWriter) EstimatedSize() int {
	return len(w.buf) + 4*(len(w.restarts)+1)
}

// Finish appends the restart array and count and returns the serialized
// block. The writer is reset for reuse; the returned buffer is not.
func (w *BlockWriter) Finish() []byte {
	if w.nEntries == 0 {
		// Every block carries at least one restart point.
		w.restarts = append(w.restarts[:0], 0)
	}
	tmp4 := w.tmp[:4]
	for _, x := range w.restarts {
		binary.LittleEndian.PutUint32(tmp4, x)
		w.buf = append(w.buf, tmp4...)
	}
	binary.LittleEndian.PutUint32(tmp4, uint32(len(w.restarts)))
	w.buf = append(w.buf, tmp4...)
	result := w.buf

	w.nEntries = 0
	w.nextRestart = 0
	w.buf = nil
	w.restarts = w.restarts[:0]
	return result
}

// Reset discards all buffered entries.
func (w *BlockWriter) Reset() {
	w.nEntries = 0
	w.nextRestart = 0
	w.buf = w.buf[:0]
	w.restarts = w.restarts[:0]
}
