// Package pool implements PermitPools, counting semaphores bounding how
// many downloads and transcodes run concurrently. Go has no direct stdlib
// equivalent of tokio::sync::Semaphore (the original's pool_manager.rs); a
// buffered channel used as a token bucket is the idiomatic substitute.
package pool

import "context"

// Semaphore is a context-cancellable counting semaphore backed by a
// buffered channel of empty structs (tokens).
type Semaphore struct {
	tokens chan struct{}
	cap    int
}

func NewSemaphore(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &Semaphore{tokens: make(chan struct{}, capacity), cap: capacity}
}

// Acquire blocks until a permit is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.tokens <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit to the pool. Calling Release without a matching
// successful Acquire is a programmer error and will block forever on an
// already-full pool rather than panic, so callers must pair every Acquire
// with exactly one Release (typically via defer).
func (s *Semaphore) Release() {
	<-s.tokens
}

// Available reports the number of free permits right now. Racy by nature
// in a concurrent pool; intended for metrics gauges, not control flow.
func (s *Semaphore) Available() int {
	return s.cap - len(s.tokens)
}

func (s *Semaphore) Capacity() int { return s.cap }

// PermitPools bundles the two permit pools the pipeline needs: one bounding
// concurrent downloads, one bounding concurrent transcodes.
type PermitPools struct {
	Download  *Semaphore
	Transcode *Semaphore
}

func NewPermitPools(maxDownloads, maxTranscodes int) *PermitPools {
	return &PermitPools{
		Download:  NewSemaphore(maxDownloads),
		Transcode: NewSemaphore(maxTranscodes),
	}
}
