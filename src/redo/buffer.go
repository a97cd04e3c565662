package redo

import (
	"github.com/Blackdeer1524/redopipe/src/pkg/assert"
	"github.com/Blackdeer1524/redopipe/src/pkg/common"
)

// logBuffer is the in-memory window of the log stream. The byte with LSN l
// lives at data[l mod len(data)].
type logBuffer struct {
	data []byte
	mask uint64
}

func newLogBuffer(size uint64) *logBuffer {
	assert.Assert(size > 0 && size&(size-1) == 0, "log buffer size must be a power of two: %d", size)
	return &logBuffer{
		data: make([]byte, size),
		mask: size - 1,
	}
}

func (b *logBuffer) size() uint64 {
	return b.mask + 1
}

func (b *logBuffer) write(at common.LSN, p []byte) {
	assert.Assert(uint64(len(p)) <= b.size(), "write of %d bytes exceeds buffer size %d", len(p), b.size())

	off := uint64(at) & b.mask
	n := copy(b.data[off:], p)
	copy(b.data, p[n:])
}

// read appends bytes [from, to) to dst.
func (b *logBuffer) read(from, to common.LSN, dst []byte) []byte {
	assert.Assert(to >= from, "invalid range [%d, %d)", from, to)
	length := uint64(to - from)
	assert.Assert(length <= b.size(), "read of %d bytes exceeds buffer size %d", length, b.size())

	off := uint64(from) & b.mask
	if off+length <= b.size() {
		return append(dst, b.data[off:off+length]...)
	}

	dst = append(dst, b.data[off:]...)
	return append(dst, b.data[:length-(b.size()-off)]...)
}
