// Package lock implements per-ad mutual exclusion for orchestration runs.
package lock

import (
	"context"
	"sync"

	"adcompliance/ports"
)

// MemoryLocker serializes runs per key within one process. A second caller
// for a held key waits until release or until its context ends.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

var _ ports.AdLocker = (*MemoryLocker)(nil)

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*slot)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.waiters++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.leave(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.leave(key, s)
		})
	}, nil
}

// leave drops the slot once nobody holds or waits for it.
func (l *MemoryLocker) leave(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.waiters--
	if s.waiters == 0 {
		delete(l.slots, key)
	}
}

// TryLocker rejects instead of waiting, giving single-process deployments the
// Redis locker's semantics.
type TryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ ports.AdLocker = (*TryLocker)(nil)

func NewTryLocker() *TryLocker { return &TryLocker{held: make(map[string]struct{})} }

func (l *TryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ports.ErrLocked
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
