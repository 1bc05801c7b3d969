package service

import "sync"

// refreshTracker counts forecast refreshes in progress. More than one means
// several callers found the slot expired at once and each went to the backend.
type refreshTracker struct {
	mu     sync.Mutex
	active int
}

func newRefreshTracker() *refreshTracker {
	return &refreshTracker{}
}

// Start records a refresh and returns the number in progress including it.
// Callers defer Done.
func (rt *refreshTracker) Start() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.active++
	return rt.active
}

// Done records the end of a refresh.
func (rt *refreshTracker) Done() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.active > 0 {
		rt.active--
	}
}
