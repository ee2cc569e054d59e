package lock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
)

// LocalLocker serialises work on named keys inside one process.
type LocalLocker struct {
	timeout time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	token   chan struct{}
	waiters int
}

func NewLocalLocker(timeout time.Duration) *LocalLocker {
	return &LocalLocker{
		timeout: timeout,
		slots:   make(map[string]*slot),
	}
}

func (l *LocalLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	ordered := sortedKeys(keys)

	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	held := make([]string, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for _, key := range ordered {
		if err := l.lock(waitCtx, key); err != nil {
			release()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("local locker acquire timed out", logger.Fields{
				"key":     key,
				"timeout": l.timeout.String(),
			})
			return nil, fmt.Errorf("%w: lock %s not acquired within %s", domain.ErrResourceBusy, key, l.timeout)
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *LocalLocker) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{token: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.waiters++
	l.mu.Unlock()

	select {
	case s.token <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		s.waiters--
		if s.waiters == 0 {
			delete(l.slots, key)
		}
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *LocalLocker) unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		return
	}
	<-s.token
	s.waiters--
	if s.waiters == 0 {
		delete(l.slots, key)
	}
}

// sortedKeys orders and dedupes keys so every caller acquires in the same order.
func sortedKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
