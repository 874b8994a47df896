// Package fakesource provides a scripted streamsync.VideoCapture used by the
// demo binary and by tests that need deterministic, non-hardware frame
// production. Grounded on the ticker-driven Run loop and Start/Stop
// lifecycle of the teacher's dirsource/fakesource sources, rewritten against
// streamsync.VideoCapture instead of a jpeg.Image/CGO pipeline.
package fakesource

import (
	"errors"
	"sync"
	"time"

	"github.com/warpcomdev/streamsync/internal/streamsync"
)

// ErrClosed is returned by Read once the source has been released.
var ErrClosed = errors.New("fakesource: source closed")

// ErrScriptExhausted is returned by Read once every scripted timestamp has
// been delivered and Loop is false.
var ErrScriptExhausted = errors.New("fakesource: script exhausted")

// Frame describes one scripted frame outcome: either a timestamp to emit, or
// a forced read error.
type Frame struct {
	Timestamp float64
	Err       bool
}

// Source is a scripted streamsync.VideoCapture: it replays a fixed sequence
// of Frame entries, one per Read call, optionally pacing them with a fixed
// sleep before each Read returns so concurrent tests can observe ordering without relying on wall-clock
// sleeps in the synchronization engine itself.
type Source struct {
	mu     sync.Mutex
	script []Frame
	pos    int
	loop   bool
	pace   time.Duration
	width  int
	height int

	opened bool
	closed bool
}

// Option configures a Source.
type Option func(*Source)

// WithPacing adds a fixed delay before each Read returns, simulating a live
// stream's frame interval. Zero (the default) makes Read return immediately,
// which is what deterministic tests want.
func WithPacing(d time.Duration) Option {
	return func(s *Source) { s.pace = d }
}

// WithLoop makes the script repeat indefinitely instead of returning
// ErrScriptExhausted once consumed.
func WithLoop() Option {
	return func(s *Source) { s.loop = true }
}

// WithFrameSize sets the width/height baked into every emitted DecodedFrame's
// pixel buffer (width*height*3 bytes, zero-filled).
func WithFrameSize(width, height int) Option {
	return func(s *Source) { s.width, s.height = width, height }
}

// New returns a Source that replays script in order.
func New(script []Frame, opts ...Option) *Source {
	s := &Source{script: script, width: 4, height: 4}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open always succeeds; fakesource has no real connection to establish.
func (s *Source) Open(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = true
	return true
}

// Read returns the next scripted frame, pacing as configured. Implements
// streamsync.VideoCapture.
func (s *Source) Read() (streamsync.DecodedFrame, error) {
	if s.pace > 0 {
		time.Sleep(s.pace)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return streamsync.DecodedFrame{}, ErrClosed
	}
	if s.pos >= len(s.script) {
		if !s.loop || len(s.script) == 0 {
			return streamsync.DecodedFrame{}, ErrScriptExhausted
		}
		s.pos = 0
	}

	frame := s.script[s.pos]
	s.pos++

	if frame.Err {
		return streamsync.DecodedFrame{}, errors.New("fakesource: scripted read error")
	}

	pixels := make([]byte, s.width*s.height*3)
	return streamsync.DecodedFrame{
		Pixels:        pixels,
		Width:         s.width,
		Height:        s.height,
		FrameType:     "I",
		MotionVectors: nil,
		Timestamp:     frame.Timestamp,
	}, nil
}

// Release marks the source closed. Idempotent.
func (s *Source) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
