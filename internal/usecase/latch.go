package usecase

import (
	"context"
	"sync"
)

// MemoryLatch is a session-local IdempotencyStore. A key moves from unset to
// locked (in flight) to remembered (resolved); Release returns it to unset.
type MemoryLatch struct {
	mu       sync.Mutex
	locked   map[string]bool
	resolved map[string]string
}

func NewMemoryLatch() *MemoryLatch {
	return &MemoryLatch{locked: map[string]bool{}, resolved: map[string]string{}}
}

func latchKey(scope, key string) string { return scope + ":" + key }

func (l *MemoryLatch) TryLock(_ context.Context, scope, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := latchKey(scope, key)
	if l.locked[k] {
		return false, nil
	}
	l.locked[k] = true
	return true, nil
}

func (l *MemoryLatch) Remember(_ context.Context, scope, key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resolved[latchKey(scope, key)] = value
	return nil
}

func (l *MemoryLatch) Recall(_ context.Context, scope, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.resolved[latchKey(scope, key)]
	return v, ok, nil
}

func (l *MemoryLatch) Release(_ context.Context, scope, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := latchKey(scope, key)
	delete(l.locked, k)
	delete(l.resolved, k)
	return nil
}

// State reports the verification state of key within scope.
func (l *MemoryLatch) State(scope, key string) VerifyState {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := latchKey(scope, key)
	if _, ok := l.resolved[k]; ok {
		return VerifyResolved
	}
	if l.locked[k] {
		return VerifyInFlight
	}
	return VerifyNotStarted
}

var _ IdempotencyStore = (*MemoryLatch)(nil)
