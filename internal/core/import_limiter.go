package core

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyImports is returned when every import slot stays busy for the
// limiter's wait time.
var ErrTooManyImports = errors.New("too many uploads in progress")

const (
	DefaultMaxConcurrentImports = 3
	DefaultImportWait           = 30 * time.Second
)

// ImportLimiter bounds the number of spreadsheet imports running at once.
type ImportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewImportLimiter allows maxConcurrent imports. Callers wait up to
// maxWait for a slot. Non-positive arguments select the defaults.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultImportWait
	}
	return &ImportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. The caller must Release it.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyImports
	}
}

// TryAcquire takes a slot without waiting.
func (l *ImportLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *ImportLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of running imports.
func (l *ImportLimiter) Active() int {
	return int(l.active.Load())
}

// Available returns the number of free slots.
func (l *ImportLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no import is running or ctx ends. Used during
// shutdown.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
