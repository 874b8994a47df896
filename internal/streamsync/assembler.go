package streamsync

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// assembler is the synchronization state machine described in spec.md §4.5:
// it selects an alignment timestamp, waits for every live source to catch up
// to it, and assembles one FramePacket per iteration into the output buffer.
type assembler struct {
	queues   []*FrameQueue
	handles  []*SourceHandle
	output   *PacketDeque
	progress *progressSignal
	stopCh   <-chan struct{}
	log      *zap.Logger
}

func newAssembler(queues []*FrameQueue, handles []*SourceHandle, output *PacketDeque, progress *progressSignal, stopCh <-chan struct{}, log *zap.Logger) *assembler {
	return &assembler{
		queues:   queues,
		handles:  handles,
		output:   output,
		progress: progress,
		stopCh:   stopCh,
		log:      log,
	}
}

// checkStartup implements spec.md §4.5's startup phase: wait until every
// valid source has at least one record, then measure the spread between the
// oldest timestamps and fail fast if it is too large or no source is valid
// (including every source being retired while the wait is in progress).
// Runs synchronously inside Synchronizer.New, before the steady-state
// goroutine is spawned, so the two fatal outcomes can be returned as plain
// errors instead of surfacing through a background task.
func (a *assembler) checkStartup(maxInitialOffset float64) error {
	if !a.anyValid() {
		return ErrNoStreamsAvailable
	}

	ok := a.progress.wait(a.stopCh, func() bool {
		return !a.anyValid() || a.minQueueSizeOverValid() > 0
	})
	if !ok {
		return ErrNoStreamsAvailable
	}

	minTS, maxTS := 0.0, 0.0
	first := true
	for i, h := range a.handles {
		if !h.IsValid() {
			continue
		}
		front, ok := a.queues[i].PeekFront()
		if !ok {
			continue
		}
		ts := front.Timestamp
		if first {
			minTS, maxTS = ts, ts
			first = false
			continue
		}
		if ts < minTS {
			minTS = ts
		}
		if ts > maxTS {
			maxTS = ts
		}
	}
	if first {
		return ErrNoStreamsAvailable
	}

	offset := maxTS - minTS
	if offset > maxInitialOffset {
		a.log.Error("initial stream offset too large",
			zap.Float64("offset", offset), zap.Float64("max_initial_stream_offset", maxInitialOffset))
		return fmt.Errorf("%w: measured %.3fs over limit %.3fs", ErrStreamOffsetTooLarge, offset, maxInitialOffset)
	}

	a.log.Info("initial stream offset measured", zap.Float64("offset", offset), zap.Int("sources", len(a.handles)))
	return nil
}

func (a *assembler) anyValid() bool {
	for _, h := range a.handles {
		if h.IsValid() {
			return true
		}
	}
	return false
}

func (a *assembler) minQueueSizeOverValid() int {
	min := -1
	for i, h := range a.handles {
		if !h.IsValid() {
			continue
		}
		n := a.queues[i].Len()
		if min < 0 || n < min {
			min = n
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

// run is the steady-state loop. Returns when stopCh closes.
func (a *assembler) run() {
	for {
		select {
		case <-a.stopCh:
			return
		default:
		}

		ok := a.progress.wait(a.stopCh, func() bool {
			return a.minQueueSizeOverValid() > 0
		})
		if !ok {
			return
		}

		tStar, anchor := a.pickAlignment()
		alignmentTimestamp.Set(tStar)

		ok = a.progress.wait(a.stopCh, func() bool {
			return a.allCaughtUp(tStar)
		})
		if !ok {
			return
		}

		packet := a.assemble(tStar, anchor)
		a.output.Push(packet)
		outputBufferSize.Set(float64(a.output.Size()))

		for i := range a.queues {
			queueDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(a.queues[i].Len()))
		}
	}
}

// pickAlignment implements spec.md §4.5(b): the alignment timestamp is the
// maximum oldest-OKAY-front timestamp across valid sources, ties broken by
// highest source id (last-max wins, a deliberate redesign from the original's
// first-max std::max_element behavior).
func (a *assembler) pickAlignment() (tStar float64, anchor int) {
	tStar = 0.0
	anchor = 0
	for i, h := range a.handles {
		if !h.IsValid() {
			continue
		}
		front, ok := a.queues[i].PeekFront()
		ts := 0.0
		if ok && front.Status == FrameOkay {
			ts = front.Timestamp
		}
		if ts >= tStar {
			tStar = ts
			anchor = i
		}
	}
	return tStar, anchor
}

// allCaughtUp implements spec.md §4.5(c): every valid source's newest queued
// record must have timestamp >= tStar. An invalid source vacuously satisfies
// the predicate, per the open-question note in spec.md §9 that must be
// re-checked on every wakeup (not just once at the start of the wait).
func (a *assembler) allCaughtUp(tStar float64) bool {
	for i, h := range a.handles {
		if !h.IsValid() {
			continue
		}
		back, ok := a.queues[i].PeekBack()
		if !ok {
			return false
		}
		if back.Timestamp < tStar {
			return false
		}
	}
	return true
}

// assemble implements spec.md §4.5(d).
func (a *assembler) assemble(tStar float64, anchor int) FramePacket {
	packet := make(FramePacket, len(a.queues))
	for i, h := range a.handles {
		switch {
		case !h.IsValid():
			packet[i] = FrameRecord{Status: FrameCapBroken}
		case i == anchor:
			packet[i] = a.popAnchorFront(i)
		default:
			packet[i] = a.catchUp(i, tStar)
		}
	}
	return packet
}

// popAnchorFront pops and emits the anchor source's oldest record, whose
// timestamp pickAlignment measured as tStar. pickAlignment only credits a
// source's OKAY front timestamp toward tStar; a non-OKAY front (e.g. a
// READ_ERROR placeholder, or every valid source's front being non-OKAY at
// once) contributes 0.0 instead, so the anchor's front is not guaranteed to
// still be OKAY by the time assemble runs. Discard any non-OKAY front first,
// the same way catchUp does for non-anchor sources, so a READ_ERROR record
// is never popped straight into a packet (spec.md §8 invariant 2). If the
// queue runs dry before an OKAY front turns up, emit DROPPED rather than
// blocking — assemble must never block once the catch-up wait has passed.
func (a *assembler) popAnchorFront(i int) FrameRecord {
	q := a.queues[i]
	for {
		front, ok := q.PeekFront()
		if !ok {
			return FrameRecord{Status: FrameDropped}
		}
		if front.Status != FrameOkay {
			q.PopAndFree()
			continue
		}
		return *q.Pop()
	}
}

// catchUp advances a non-anchor source's queue, discarding every record with
// timestamp <= tStar except the latest such one, which is emitted. A front
// with a non-OKAY status is discarded outright (the loop re-evaluates rather
// than breaking without emitting — the correction spec.md §4.5(d) makes to
// the original's apparent early-break bug).
func (a *assembler) catchUp(i int, tStar float64) FrameRecord {
	q := a.queues[i]
	var chosen *FrameRecord
	for {
		front, ok := q.PeekFront()
		if !ok {
			if chosen != nil {
				return *chosen
			}
			return FrameRecord{Status: FrameDropped}
		}
		if front.Status != FrameOkay {
			q.PopAndFree()
			continue
		}
		if front.Timestamp <= tStar {
			if chosen != nil {
				chosen.Free()
			}
			chosen = q.Pop()
			continue
		}
		if chosen != nil {
			return *chosen
		}
		return FrameRecord{Status: FrameDropped}
	}
}
