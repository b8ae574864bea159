package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, ch <-chan T) (T, bool) {
	t.Helper()
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	var zero T
	return zero, false
}

func TestHub_ReplaysLatestWhenRetaining(t *testing.T) {
	h := NewHub[int](true)
	h.Publish(1)
	h.Publish(2)

	v, ok := recv(t, h.Subscribe(context.Background()))
	require.True(t, ok)
	assert.Equal(t, 2, v)

	cur, ok := h.Current()
	assert.True(t, ok)
	assert.Equal(t, 2, cur)
}

func TestHub_NoReplayWithoutRetain(t *testing.T) {
	h := NewHub[int](false)
	h.Publish(1)
	ch := h.Subscribe(context.Background())

	select {
	case v := <-ch:
		t.Fatalf("unexpected %d", v)
	case <-time.After(30 * time.Millisecond):
	}

	h.Publish(5)
	v, _ := recv(t, ch)
	assert.Equal(t, 5, v)
}

func TestHub_SlowSubscriberSeesLatestOnly(t *testing.T) {
	h := NewHub[int](false)
	ch := h.Subscribe(context.Background())
	for i := 1; i <= 100; i++ {
		h.Publish(i)
	}
	v, _ := recv(t, ch)
	assert.Equal(t, 100, v)
}

func TestHub_UnsubscribeOnContextDone(t *testing.T) {
	h := NewHub[int](false)
	ctx, cancel := context.WithCancel(context.Background())
	ch := h.Subscribe(ctx)
	assert.Equal(t, 1, h.Subscribers())

	cancel()
	_, ok := recv(t, ch)
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers())
}

func TestHub_CloseClosesSubscribers(t *testing.T) {
	h := NewHub[int](true)
	ch := h.Subscribe(context.Background())
	h.Close()
	h.Publish(3)

	_, ok := recv(t, ch)
	assert.False(t, ok)

	_, ok = recv(t, h.Subscribe(context.Background()))
	assert.False(t, ok)
}

func TestDistinct_DropsRepeats(t *testing.T) {
	in := make(chan int)
	out := Distinct(in, func(v int) int { return v / 10 }, func(a, b int) bool { return a == b })

	go func() {
		defer close(in)
		for _, v := range []int{1, 5, 12, 19, 3} {
			in <- v
			time.Sleep(5 * time.Millisecond)
		}
	}()

	var got []int
	for v := range out {
		got = append(got, v)
	}
	assert.Equal(t, []int{0, 1, 0}, got)
}
