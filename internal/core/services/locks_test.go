package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLocker_ExcludesSameKey(t *testing.T) {
	l := newKeyedLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "a")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(ctx, "a")
		if err == nil {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired released key")
	}
}

func TestKeyedLocker_IndependentKeys(t *testing.T) {
	l := newKeyedLocker()
	ctx := context.Background()

	ua, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	ub, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	ua()
	ub()
	assert.Zero(t, l.Len())
}

func TestKeyedLocker_CancelReleasesPartialAcquisition(t *testing.T) {
	l := newKeyedLocker()
	hold, err := l.Lock(context.Background(), "b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "b", "a", "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// "a" was taken first and must have been released.
	ua, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	ua()
	hold()
	assert.Zero(t, l.Len())
}
