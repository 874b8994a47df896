package streamsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameQueue(t *testing.T) {
	t.Parallel()

	t.Run("push then pop preserves FIFO order", func(t *testing.T) {
		t.Parallel()

		q := NewFrameQueue()
		q.Push(&FrameRecord{Status: FrameOkay, Timestamp: 1.0})
		q.Push(&FrameRecord{Status: FrameOkay, Timestamp: 2.0})

		first := q.Pop()
		assert.Equal(t, 1.0, first.Timestamp)
		second := q.Pop()
		assert.Equal(t, 2.0, second.Timestamp)
	})

	t.Run("peek does not remove", func(t *testing.T) {
		t.Parallel()

		q := NewFrameQueue()
		_, ok := q.PeekFront()
		assert.False(t, ok)

		q.Push(&FrameRecord{Status: FrameOkay, Timestamp: 5.0})
		front, ok := q.PeekFront()
		require.True(t, ok)
		assert.Equal(t, 5.0, front.Timestamp)
		assert.Equal(t, 1, q.Len())

		back, ok := q.PeekBack()
		require.True(t, ok)
		assert.Equal(t, 5.0, back.Timestamp)
	})

	t.Run("peek front and back differ with multiple entries", func(t *testing.T) {
		t.Parallel()

		q := NewFrameQueue()
		q.Push(&FrameRecord{Status: FrameOkay, Timestamp: 1.0})
		q.Push(&FrameRecord{Status: FrameOkay, Timestamp: 2.0})
		q.Push(&FrameRecord{Status: FrameOkay, Timestamp: 3.0})

		front, _ := q.PeekFront()
		back, _ := q.PeekBack()
		assert.Equal(t, 1.0, front.Timestamp)
		assert.Equal(t, 3.0, back.Timestamp)
		assert.Equal(t, 3, q.Len())
	})

	t.Run("pop blocks until a push arrives", func(t *testing.T) {
		t.Parallel()

		q := NewFrameQueue()
		done := make(chan *FrameRecord, 1)
		go func() {
			done <- q.Pop()
		}()

		select {
		case <-done:
			t.Fatal("Pop returned before any Push")
		case <-time.After(20 * time.Millisecond):
		}

		q.Push(&FrameRecord{Status: FrameOkay, Timestamp: 9.0})

		select {
		case rec := <-done:
			assert.Equal(t, 9.0, rec.Timestamp)
		case <-time.After(time.Second):
			t.Fatal("Pop never returned after Push")
		}
	})

	t.Run("PopAndFree releases pooled buffer", func(t *testing.T) {
		t.Parallel()

		pool := newFramePool(16)
		q := NewFrameQueue()
		q.Push(&FrameRecord{Status: FrameOkay, Pixels: pool.copyOf([]byte{1, 2, 3}), pool: pool})

		q.PopAndFree()
		assert.Equal(t, 0, q.Len())
	})
}
