package mqtt

import (
	"sync"
)

// Encode scratch buffers are pooled: every publish encodes into one, and
// producer workers publish in tight loops.
var bytesBufferPool = sync.Pool{
	New: func() any {
		return &bytesBuffer{}
	},
}

// getBytesBuffer returns a pooled, empty bytesBuffer.
func getBytesBuffer() *bytesBuffer {
	b := bytesBufferPool.Get().(*bytesBuffer)
	b.Reset()
	return b
}

// putBytesBuffer returns a bytesBuffer to the pool.
func putBytesBuffer(b *bytesBuffer) {
	if b == nil {
		return
	}
	// Keep pooled memory bounded (64KB per buffer)
	if cap(b.data) <= 65536 {
		b.Reset()
		bytesBufferPool.Put(b)
	}
}
