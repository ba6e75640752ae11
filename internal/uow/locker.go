package uow

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Locker hands out in-process exclusive locks by key. Waiting honours the
// context, so a caller never blocks longer than its deadline.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocker creates an empty locker.
func NewLocker() *Locker {
	return &Locker{slots: make(map[string]*slot)}
}

// Lock acquires every key, in sorted order so that two callers asking for
// overlapping sets cannot deadlock. The returned func releases them all.
func (l *Locker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalizeKeys(keys)
	held := make([]string, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(held[i])
		}
	}

	for _, k := range keys {
		s := l.acquireSlot(k)
		select {
		case s.ch <- struct{}{}:
			held = append(held, k)
		case <-ctx.Done():
			l.dropRef(k)
			release()
			return nil, fmt.Errorf("%w: waiting for %s: %w", ErrBusy, k, ctx.Err())
		}
	}
	return release, nil
}

func (l *Locker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Locker) release(key string) {
	l.mu.Lock()
	s := l.slots[key]
	l.mu.Unlock()
	<-s.ch
	l.dropRef(key)
}

func (l *Locker) dropRef(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// size returns the number of keys currently tracked.
func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
