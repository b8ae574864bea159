package services

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

const lifecycleLockKey = "lifecycle"

func periodLockKey(periodID string) string { return "period:" + periodID }

// keyedLocker hands out one exclusive, context-aware lock per key. Entries are
// reference counted and dropped when the last holder or waiter leaves.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[string]*keyedLock)}
}

func (l *keyedLocker) ref(key string) *keyedLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	k, ok := l.locks[key]
	if !ok {
		k = &keyedLock{sem: semaphore.NewWeighted(1)}
		l.locks[key] = k
	}
	k.refs++
	return k
}

func (l *keyedLocker) unref(key string, k *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k.refs--
	if k.refs == 0 {
		delete(l.locks, key)
	}
}

// Lock acquires every key in sorted order, so callers locking overlapping sets never
// deadlock. On error nothing is held. The returned func releases all keys.
func (l *keyedLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	held := make([]string, 0, len(sorted))
	locks := make([]*keyedLock, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			locks[i].sem.Release(1)
			l.unref(held[i], locks[i])
		}
	}

	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		k := l.ref(key)
		if err := k.sem.Acquire(ctx, 1); err != nil {
			l.unref(key, k)
			release()
			return nil, err
		}
		held = append(held, key)
		locks = append(locks, k)
	}
	return release, nil
}

// Len reports how many keys are currently tracked.
func (l *keyedLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
