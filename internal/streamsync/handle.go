package streamsync

import (
	"sync"
	"sync/atomic"
)

// SourceHandle wraps one VideoCapture with the liveness and idempotent
// release semantics spec.md §4.3 requires. Grounded on the Acquire/Done/Join
// lifecycle of internal/driver/jpeg/manager.go's SessionManager, adapted
// from a session-counted resource to a single valid/invalid flag per source.
type SourceHandle struct {
	id  int
	url string
	cap VideoCapture

	valid   atomic.Bool
	release sync.Once
}

// NewSourceHandle wraps cap for the given source id and URL. The handle
// starts invalid; call Open to attempt the initial connection.
func NewSourceHandle(id int, url string, cap VideoCapture) *SourceHandle {
	return &SourceHandle{
		id:  id,
		url: url,
		cap: cap,
	}
}

// Open attempts the initial connection and sets the handle's valid flag
// accordingly. A failed Open never panics or returns an error: per
// SPEC_FULL.md §4.2 it only marks this source invalid from the start.
func (h *SourceHandle) Open() bool {
	ok := h.cap.Open(h.url)
	h.valid.Store(ok)
	return ok
}

// Read proxies to the wrapped capability. Callers should not call Read once
// the handle has been marked invalid.
func (h *SourceHandle) Read() (DecodedFrame, error) {
	return h.cap.Read()
}

// IsValid reports whether this source is still considered live.
func (h *SourceHandle) IsValid() bool {
	return h.valid.Load()
}

// MarkInvalid retires the source. Idempotent.
func (h *SourceHandle) MarkInvalid() {
	h.valid.Store(false)
}

// Release idempotently closes the wrapped capability.
func (h *SourceHandle) Release() {
	h.release.Do(h.cap.Release)
}
