package service

import (
	"context"
	"errors"
	"sync"

	"github.com/kjstillabower/air-quality-advisor/internal/observability"
)

// ErrSuperseded is returned to a request that a newer request for the same session replaced.
var ErrSuperseded = errors.New("request superseded by a newer request")

// ticket tracks the latest in-flight request for one session.
type ticket struct {
	id     uint64
	cancel context.CancelCauseFunc
}

// Sequencer enforces last-issued-request-wins per session key. Starting a request cancels
// the previous in-flight one for the same key, and a request that finishes after being
// replaced reports ErrSuperseded instead of its result.
type Sequencer struct {
	mu       sync.Mutex
	sessions map[string]*ticket
	nextID   uint64
}

// NewSequencer returns an empty Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{sessions: make(map[string]*ticket)}
}

// Run executes fn as the current request for key. An empty key runs fn unsequenced.
func (s *Sequencer) Run(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if key == "" {
		return fn(ctx)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s.mu.Lock()
	s.nextID++
	t := &ticket{id: s.nextID, cancel: cancel}
	if prev, ok := s.sessions[key]; ok {
		prev.cancel(ErrSuperseded)
	}
	s.sessions[key] = t
	s.mu.Unlock()

	err := fn(runCtx)

	s.mu.Lock()
	current := s.sessions[key] == t
	if current {
		delete(s.sessions, key)
	}
	s.mu.Unlock()

	if !current {
		observability.SupersededRequestsTotal.Inc()
		return ErrSuperseded
	}
	return err
}

// Active returns the number of sessions with a request in flight.
func (s *Sequencer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
