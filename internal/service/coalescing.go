package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/farm-records-service/internal/models"
)

// forecastCall is one backend refresh that several callers may wait for.
// entries and err are written before done is closed.
type forecastCall struct {
	done    chan struct{}
	entries []models.ForecastEntry
	err     error
}

// forecastCoalescer collapses concurrent forecast refreshes into one backend
// call. The forecast has a single slot, so there is at most one call in flight.
type forecastCoalescer struct {
	mu       sync.Mutex
	inFlight *forecastCall
	timeout  time.Duration
}

func newForecastCoalescer(timeout time.Duration) *forecastCoalescer {
	return &forecastCoalescer{timeout: timeout}
}

// Do joins the in-flight refresh or starts one running fn. The refresh is
// detached from the caller's cancellation so one impatient caller does not
// fail the others; it is bounded by the coalescer timeout instead. coalesced
// reports whether this caller joined an existing refresh. The returned slice
// is shared between all callers of the same refresh.
func (fc *forecastCoalescer) Do(ctx context.Context, fn func(context.Context) ([]models.ForecastEntry, error)) (entries []models.ForecastEntry, coalesced bool, err error) {
	fc.mu.Lock()
	call := fc.inFlight
	coalesced = call != nil
	if !coalesced {
		call = &forecastCall{done: make(chan struct{})}
		fc.inFlight = call
		go fc.run(ctx, call, fn)
	}
	fc.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, fc.timeout)
	defer cancel()
	select {
	case <-call.done:
		return call.entries, coalesced, call.err
	case <-waitCtx.Done():
		return nil, coalesced, waitCtx.Err()
	}
}

func (fc *forecastCoalescer) run(ctx context.Context, call *forecastCall, fn func(context.Context) ([]models.ForecastEntry, error)) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fc.timeout)
	defer cancel()

	call.entries, call.err = fn(runCtx)

	fc.mu.Lock()
	if fc.inFlight == call {
		fc.inFlight = nil
	}
	fc.mu.Unlock()
	close(call.done)
}
