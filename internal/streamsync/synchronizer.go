package streamsync

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxInitialStreamOffset is the default bound spec.md §6 gives for
	// the spread between sources' first observed timestamps.
	DefaultMaxInitialStreamOffset = 30 * time.Second
	// DefaultMaxReadErrors is the default consecutive-failure threshold
	// before a source is retired.
	DefaultMaxReadErrors = 3
	// DefaultOutputCapacity is the default bounded output-buffer size:
	// latest-wins semantics for a slow consumer.
	DefaultOutputCapacity = 1
)

// Config configures a Synchronizer. Grounded on cmd/driver/config.go's
// Config/Check shape: zero values are filled in by Check, hard requirements
// fail with a plain error.
type Config struct {
	// Sources is the ordered list of source URLs passed to VideoCapture.Open.
	// Must contain at least one entry.
	Sources []string

	// MaxInitialStreamOffset bounds the spread between valid sources' first
	// observed timestamps. Zero means DefaultMaxInitialStreamOffset.
	MaxInitialStreamOffset time.Duration

	// MaxReadErrors is the number of consecutive read failures before a
	// source is retired. Zero means DefaultMaxReadErrors.
	MaxReadErrors int

	// OutputCapacity bounds the output buffer. Zero means DefaultOutputCapacity.
	OutputCapacity int
}

// Check validates the configuration and fills in defaults for zero-valued
// fields, returning the effective configuration.
func (c Config) Check() (Config, error) {
	if len(c.Sources) == 0 {
		return Config{}, errors.New("streamsync: at least one source is required")
	}
	if c.MaxInitialStreamOffset == 0 {
		c.MaxInitialStreamOffset = DefaultMaxInitialStreamOffset
	}
	if c.MaxReadErrors == 0 {
		c.MaxReadErrors = DefaultMaxReadErrors
	}
	if c.OutputCapacity == 0 {
		c.OutputCapacity = DefaultOutputCapacity
	}
	return c, nil
}

// CaptureFactory opens a VideoCapture implementation for one source. The
// Synchronizer never dials real hardware or network streams itself; the
// caller supplies the factory (see internal/fakesource for a scripted
// implementation used by the demo and the tests).
type CaptureFactory func(sourceID int, url string) VideoCapture

// Synchronizer is the facade described in spec.md §4.6: it owns the source
// handles, the per-source queues, the reader goroutines, the assembler
// goroutine, and the output buffer, and exposes GetFramePacket as the sole
// consumer-facing operation.
type Synchronizer struct {
	handles []*SourceHandle
	queues  []*FrameQueue
	output  *PacketDeque

	progress *progressSignal
	stopCh   chan struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool

	log *zap.Logger
}

// New opens every configured source, launches the reader goroutines (whose
// pushes the startup offset check below needs in order to make progress),
// runs the synchronous startup offset check, and — only on success — starts
// the assembler goroutine. A per-source Open failure never aborts
// construction; it only leaves that source's handle invalid from the start
// (spec.md §7's SourceOpenFailed row). If the offset check fails, the
// already-running readers are stopped and joined before returning the error.
func New(log *zap.Logger, factory CaptureFactory, cfg Config) (*Synchronizer, error) {
	cfg, err := cfg.Check()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Synchronizer{
		output:   NewPacketDeque(cfg.OutputCapacity),
		progress: newProgressSignal(),
		stopCh:   make(chan struct{}),
		log:      log,
	}

	pool := newFramePool(0)
	for i, url := range cfg.Sources {
		label := strconv.Itoa(i)
		handle := NewSourceHandle(i, url, factory(i, url))
		if handle.Open() {
			sourceUp.WithLabelValues(label).Set(1)
		} else {
			sourceUp.WithLabelValues(label).Set(0)
			log.Warn("source failed to open", zap.Int("source", i), zap.String("url", url))
		}
		s.handles = append(s.handles, handle)
		s.queues = append(s.queues, NewFrameQueue())
	}

	for i, handle := range s.handles {
		r := newReader(i, handle, s.queues[i], pool, cfg.MaxReadErrors, log, s.progress, s.stopCh)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			r.run()
		}()
	}

	asm := newAssembler(s.queues, s.handles, s.output, s.progress, s.stopCh, log)
	if err := asm.checkStartup(cfg.MaxInitialStreamOffset.Seconds()); err != nil {
		close(s.stopCh)
		s.progress.broadcast()
		s.wg.Wait()
		s.releaseAll()
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		asm.run()
	}()

	return s, nil
}

// GetFramePacket blocks until a synchronized packet is available. Ownership
// of every buffer inside the returned packet transfers to the caller, who
// must call FramePacket.Free once done with it.
func (s *Synchronizer) GetFramePacket() FramePacket {
	return s.output.Pop()
}

// Close idempotently signals every background goroutine to stop, waits for
// them to exit, then releases all source handles. Grounded on the
// Acquire/Done/Join shutdown shape of internal/driver/jpeg/manager.go's
// SessionManager.
func (s *Synchronizer) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	close(s.stopCh)
	s.progress.broadcast()
	for _, q := range s.queues {
		q.cond.Broadcast()
	}
	s.output.cond.Broadcast()
	s.wg.Wait()
	s.releaseAll()
}

func (s *Synchronizer) releaseAll() {
	for _, h := range s.handles {
		h.Release()
	}
}
