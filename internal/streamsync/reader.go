package streamsync

import (
	"strconv"
	"time"

	"go.uber.org/zap"
)

// idleSleep is how long a reader naps between checks on a retired source
// before re-checking the stop signal, per spec.md §4.4 step 1.
const idleSleep = 100 * time.Millisecond

// reader pumps one source's VideoCapture into its FrameQueue, counting
// consecutive read failures and retiring the source on threshold breach.
// Grounded on the poll loop shape of internal/driver/dirsource.Source and
// internal/driver/fakesource.Source, rewritten against the VideoCapture
// contract instead of a filesystem/CGO capture.
type reader struct {
	id            int
	handle        *SourceHandle
	queue         *FrameQueue
	pool          *framePool
	maxReadErrors int
	log           *zap.Logger
	progress      *progressSignal
	stopCh        <-chan struct{}

	label string
}

func newReader(id int, handle *SourceHandle, queue *FrameQueue, pool *framePool, maxReadErrors int, log *zap.Logger, progress *progressSignal, stopCh <-chan struct{}) *reader {
	return &reader{
		id:            id,
		handle:        handle,
		queue:         queue,
		pool:          pool,
		maxReadErrors: maxReadErrors,
		log:           log.With(zap.Int("source", id)),
		progress:      progress,
		stopCh:        stopCh,
		label:         strconv.Itoa(id),
	}
}

// run is the reader's goroutine body. It returns only when stopCh is closed.
func (r *reader) run() {
	consecutiveErrors := 0
	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		if !r.handle.IsValid() {
			select {
			case <-r.stopCh:
				return
			case <-time.After(idleSleep):
			}
			continue
		}

		frame, err := r.handle.Read()
		if err != nil {
			consecutiveErrors++
			readErrorsTotal.WithLabelValues(r.label).Inc()
			r.log.Warn("transient read error", zap.Error(err), zap.Int("consecutive_errors", consecutiveErrors))
			r.queue.Push(&FrameRecord{Status: FrameReadError})
			if consecutiveErrors >= r.maxReadErrors {
				r.handle.MarkInvalid()
				sourceRetiredTotal.WithLabelValues(r.label).Inc()
				sourceUp.WithLabelValues(r.label).Set(0)
				r.log.Error("source retired after repeated read errors", zap.Int("max_read_errors", r.maxReadErrors))
			}
			r.progress.broadcast()
			continue
		}

		consecutiveErrors = 0
		framesReadTotal.WithLabelValues(r.label).Inc()
		r.log.Debug("read frame", zap.Float64("timestamp", frame.Timestamp))

		r.queue.Push(&FrameRecord{
			Status:        FrameOkay,
			Timestamp:     frame.Timestamp,
			Pixels:        r.pool.copyOf(frame.Pixels),
			Width:         frame.Width,
			Height:        frame.Height,
			MotionVectors: frame.MotionVectors,
			FrameType:     frame.FrameType,
			pool:          r.pool,
		})
		queueDepth.WithLabelValues(r.label).Set(float64(r.queue.Len()))
		r.progress.broadcast()
	}
}
