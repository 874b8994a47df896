package streamsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestAssembler(t *testing.T, n int) (*assembler, []*FrameQueue, []*SourceHandle) {
	t.Helper()

	queues := make([]*FrameQueue, n)
	handles := make([]*SourceHandle, n)
	for i := range queues {
		queues[i] = NewFrameQueue()
		handles[i] = NewSourceHandle(i, "url", &scriptedCapture{})
		require.True(t, handles[i].Open())
	}
	stopCh := make(chan struct{})
	a := newAssembler(queues, handles, NewPacketDeque(4), newProgressSignal(), stopCh, zaptest.NewLogger(t))
	return a, queues, handles
}

func TestPickAlignment(t *testing.T) {
	t.Parallel()

	t.Run("picks the max timestamp among OKAY fronts", func(t *testing.T) {
		t.Parallel()

		a, queues, _ := newTestAssembler(t, 2)
		queues[0].Push(&FrameRecord{Status: FrameOkay, Timestamp: 1.0})
		queues[1].Push(&FrameRecord{Status: FrameOkay, Timestamp: 1.5})

		tStar, anchor := a.pickAlignment()
		assert.Equal(t, 1.5, tStar)
		assert.Equal(t, 1, anchor)
	})

	t.Run("ties break to the highest source id", func(t *testing.T) {
		t.Parallel()

		a, queues, _ := newTestAssembler(t, 3)
		queues[0].Push(&FrameRecord{Status: FrameOkay, Timestamp: 2.0})
		queues[1].Push(&FrameRecord{Status: FrameOkay, Timestamp: 2.0})
		queues[2].Push(&FrameRecord{Status: FrameOkay, Timestamp: 2.0})

		_, anchor := a.pickAlignment()
		assert.Equal(t, 2, anchor, "last maximum wins, not first")
	})

	t.Run("non-OKAY fronts contribute zero", func(t *testing.T) {
		t.Parallel()

		a, queues, _ := newTestAssembler(t, 2)
		queues[0].Push(&FrameRecord{Status: FrameReadError})
		queues[1].Push(&FrameRecord{Status: FrameOkay, Timestamp: 0.5})

		tStar, anchor := a.pickAlignment()
		assert.Equal(t, 0.5, tStar)
		assert.Equal(t, 1, anchor)
	})

	t.Run("invalid sources are skipped", func(t *testing.T) {
		t.Parallel()

		a, queues, handles := newTestAssembler(t, 2)
		queues[0].Push(&FrameRecord{Status: FrameOkay, Timestamp: 9.0})
		queues[1].Push(&FrameRecord{Status: FrameOkay, Timestamp: 1.0})
		handles[0].MarkInvalid()

		tStar, anchor := a.pickAlignment()
		assert.Equal(t, 1.0, tStar)
		assert.Equal(t, 1, anchor)
	})
}

func TestAllCaughtUp(t *testing.T) {
	t.Parallel()

	t.Run("false until every valid source's back timestamp reaches tStar", func(t *testing.T) {
		t.Parallel()

		a, queues, _ := newTestAssembler(t, 2)
		queues[0].Push(&FrameRecord{Status: FrameOkay, Timestamp: 2.0})
		queues[1].Push(&FrameRecord{Status: FrameOkay, Timestamp: 1.0})

		assert.False(t, a.allCaughtUp(2.0))

		queues[1].Push(&FrameRecord{Status: FrameOkay, Timestamp: 2.0})
		assert.True(t, a.allCaughtUp(2.0))
	})

	t.Run("invalid sources are vacuously satisfied", func(t *testing.T) {
		t.Parallel()

		a, queues, handles := newTestAssembler(t, 2)
		queues[0].Push(&FrameRecord{Status: FrameOkay, Timestamp: 2.0})
		handles[1].MarkInvalid()

		assert.True(t, a.allCaughtUp(2.0))
	})

	t.Run("empty valid queue is not caught up", func(t *testing.T) {
		t.Parallel()

		a, queues, _ := newTestAssembler(t, 2)
		queues[0].Push(&FrameRecord{Status: FrameOkay, Timestamp: 2.0})

		assert.False(t, a.allCaughtUp(2.0))
	})
}

func TestCatchUp(t *testing.T) {
	t.Parallel()

	t.Run("keeps only the latest record at or before tStar, frees the rest", func(t *testing.T) {
		t.Parallel()

		a, queues, _ := newTestAssembler(t, 2)
		pool := newFramePool(8)
		queues[1].Push(&FrameRecord{Status: FrameOkay, Timestamp: 1.0, Pixels: pool.copyOf([]byte{1}), pool: pool})
		queues[1].Push(&FrameRecord{Status: FrameOkay, Timestamp: 1.5, Pixels: pool.copyOf([]byte{2}), pool: pool})
		queues[1].Push(&FrameRecord{Status: FrameOkay, Timestamp: 2.5}) // stays buffered, timestamp > T*

		rec := a.catchUp(1, 1.5)
		assert.Equal(t, FrameOkay, rec.Status)
		assert.Equal(t, 1.5, rec.Timestamp)
		require.Equal(t, 1, queues[1].Len(), "the newer, unconsumed record remains queued")

		remaining, ok := queues[1].PeekFront()
		require.True(t, ok)
		assert.Equal(t, 2.5, remaining.Timestamp)
	})

	t.Run("equal timestamp is consumed, not left behind", func(t *testing.T) {
		t.Parallel()

		a, queues, _ := newTestAssembler(t, 2)
		queues[1].Push(&FrameRecord{Status: FrameOkay, Timestamp: 2.0})

		rec := a.catchUp(1, 2.0)
		assert.Equal(t, FrameOkay, rec.Status)
		assert.Equal(t, 2.0, rec.Timestamp)
		assert.Equal(t, 0, queues[1].Len())
	})

	t.Run("empty queue with no candidate emits DROPPED", func(t *testing.T) {
		t.Parallel()

		a, _, _ := newTestAssembler(t, 2)
		rec := a.catchUp(1, 1.0)
		assert.Equal(t, FrameDropped, rec.Status)
	})

	t.Run("non-OKAY fronts are discarded without stopping early", func(t *testing.T) {
		t.Parallel()

		a, queues, _ := newTestAssembler(t, 2)
		queues[1].Push(&FrameRecord{Status: FrameReadError})
		queues[1].Push(&FrameRecord{Status: FrameOkay, Timestamp: 1.0})

		rec := a.catchUp(1, 5.0)
		assert.Equal(t, FrameOkay, rec.Status)
		assert.Equal(t, 1.0, rec.Timestamp)
	})

	t.Run("no candidate but a newer frame pending emits DROPPED and keeps the frame", func(t *testing.T) {
		t.Parallel()

		a, queues, _ := newTestAssembler(t, 2)
		queues[1].Push(&FrameRecord{Status: FrameOkay, Timestamp: 9.0})

		rec := a.catchUp(1, 1.0)
		assert.Equal(t, FrameDropped, rec.Status)
		assert.Equal(t, 1, queues[1].Len())
	})
}

func TestAssembleNeverEmitsReadErrorForAnchor(t *testing.T) {
	t.Parallel()

	t.Run("anchor discards a leading READ_ERROR front instead of emitting it", func(t *testing.T) {
		t.Parallel()

		a, queues, _ := newTestAssembler(t, 1)
		queues[0].Push(&FrameRecord{Status: FrameReadError})
		queues[0].Push(&FrameRecord{Status: FrameOkay, Timestamp: 1.0})

		tStar, anchor := a.pickAlignment()
		assert.Equal(t, 0.0, tStar, "a non-OKAY front contributes zero")
		assert.Equal(t, 0, anchor)

		packet := a.assemble(tStar, anchor)
		require.Len(t, packet, 1)
		assert.NotEqual(t, FrameReadError, packet[0].Status, "no emitted record may ever be READ_ERROR")
		assert.Equal(t, FrameOkay, packet[0].Status)
		assert.Equal(t, 1.0, packet[0].Timestamp)
	})

	t.Run("anchor emits DROPPED if its queue is all errors and runs dry", func(t *testing.T) {
		t.Parallel()

		a, queues, _ := newTestAssembler(t, 1)
		queues[0].Push(&FrameRecord{Status: FrameReadError})

		tStar, anchor := a.pickAlignment()
		packet := a.assemble(tStar, anchor)
		require.Len(t, packet, 1)
		assert.Equal(t, FrameDropped, packet[0].Status)
	})
}
