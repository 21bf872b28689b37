package dispatcher

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnboundedQueueFIFO(t *testing.T) {
	q := newUnboundedQueue()
	for i := 0; i < 5; i++ {
		q.Push(taskEnvelope{taskID: strconv.Itoa(i)})
	}
	for i := 0; i < 5; i++ {
		item, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, strconv.Itoa(i), item.taskID)
	}
}

func TestUnboundedQueuePopBlocksUntilPush(t *testing.T) {
	q := newUnboundedQueue()
	done := make(chan taskEnvelope, 1)
	go func() {
		item, ok := q.Pop()
		require.True(t, ok)
		done <- item
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before any Push")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(taskEnvelope{taskID: "arrived"})
	select {
	case item := <-done:
		require.Equal(t, "arrived", item.taskID)
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Push")
	}
}

func TestUnboundedQueueCloseWakesAllWaiters(t *testing.T) {
	q := newUnboundedQueue()
	var wg sync.WaitGroup
	results := make([]bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok := q.Pop()
			results[i] = ok
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	q.Close()

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(time.Second):
		t.Fatal("workers did not wake up after Close")
	}
	for _, ok := range results {
		require.False(t, ok)
	}
}

func TestUnboundedQueuePushAfterCloseIsDiscarded(t *testing.T) {
	q := newUnboundedQueue()
	q.Close()
	q.Push(taskEnvelope{taskID: "ignored"})

	_, ok := q.Pop()
	require.False(t, ok)
}

func TestUnboundedQueuePushAfterDelaysArrival(t *testing.T) {
	q := newUnboundedQueue()
	done := make(chan taskEnvelope, 1)
	go func() {
		item, ok := q.Pop()
		require.True(t, ok)
		done <- item
	}()

	q.PushAfter(taskEnvelope{taskID: "delayed"}, 50*time.Millisecond)

	select {
	case <-done:
		t.Fatal("PushAfter delivered before its delay elapsed")
	case <-time.After(20 * time.Millisecond):
	}

	select {
	case item := <-done:
		require.Equal(t, "delayed", item.taskID)
	case <-time.After(time.Second):
		t.Fatal("PushAfter never delivered")
	}
}

func TestUnboundedQueuePushAfterZeroDelayIsImmediate(t *testing.T) {
	q := newUnboundedQueue()
	q.PushAfter(taskEnvelope{taskID: "now"}, 0)

	item, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "now", item.taskID)
}
