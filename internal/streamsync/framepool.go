package streamsync

import "sync"

// defaultMaxPoolBuffer bounds the size of a pixel buffer this package will
// recycle through a framePool; larger ones are left for the garbage
// collector rather than pinned in the pool indefinitely.
//
// Adapted from alesr/tidstrom's bufferPool (streambuffer.go): a sync.Pool
// wrapped with a size ceiling, reused here for the reader's defensive pixel
// copy instead of tidstrom's snapshot frame buffers.
const defaultMaxPoolBuffer = 8 * 1024 * 1024

// framePool recycles the byte buffers readers copy decoded pixels into, to
// keep the steady-state ingest path allocation-free once warmed up.
type framePool struct {
	pool    sync.Pool
	maxSize int
}

func newFramePool(sizeHint int) *framePool {
	if sizeHint <= 0 {
		sizeHint = 1
	}
	return &framePool{
		pool: sync.Pool{
			New: func() any {
				return make([]byte, 0, sizeHint)
			},
		},
		maxSize: defaultMaxPoolBuffer,
	}
}

// copyOf returns a pooled buffer containing a defensive copy of src.
func (p *framePool) copyOf(src []byte) []byte {
	buf := p.pool.Get().([]byte)[:0]
	return append(buf, src...)
}

// release returns buf to the pool if it isn't too large to bother recycling.
func (p *framePool) release(buf []byte) {
	if buf != nil && cap(buf) <= p.maxSize {
		p.pool.Put(buf)
	}
}
