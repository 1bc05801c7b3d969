package lifecycle

import "sync/atomic"

var (
	shuttingDown atomic.Bool
	ready        atomic.Bool
)

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// While set, /health reports shutting-down and the record provider reports
// the client as unavailable.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// SetReady marks startup (config, client, optional forecast warm-up) as complete.
func SetReady(v bool) {
	ready.Store(v)
}

// IsReady reports whether startup has completed.
func IsReady() bool {
	return ready.Load()
}
