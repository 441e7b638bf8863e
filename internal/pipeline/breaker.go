package pipeline

import "sync"

// breaker trips after a run of consecutive service failures and stays
// open until Reset. While open, dynamic fitting degrades to static
// inference instead of calling the service.
type breaker struct {
	mu       sync.Mutex
	limit    int
	failures int
	open     bool
}

func newBreaker(limit int) *breaker {
	if limit <= 0 {
		limit = 3
	}
	return &breaker{limit: limit}
}

func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.open
}

func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

func (b *breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.limit {
		b.open = true
		breakerOpen.Set(1)
	}
}

// Reset closes the breaker. Recovery is explicit; the breaker never
// half-opens on its own.
func (b *breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
	breakerOpen.Set(0)
}
