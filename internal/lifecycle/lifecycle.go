// Package lifecycle holds process readiness and drain state.
package lifecycle

import "sync/atomic"

// State reports whether the process is ready and whether it is draining.
// The zero value is not ready and not shutting down.
type State struct {
	ready        atomic.Bool
	shuttingDown atomic.Bool
}

// New returns a State that is not yet ready.
func New() *State {
	return &State{}
}

// SetReady marks the process ready once upstream clients and the router are wired.
func (s *State) SetReady(v bool) {
	s.ready.Store(v)
}

// IsReady returns true once the process can serve traffic.
func (s *State) IsReady() bool {
	return s.ready.Load()
}

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func (s *State) SetShuttingDown(v bool) {
	s.shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func (s *State) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}
