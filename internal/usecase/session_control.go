package usecase

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCancelled is returned by waits interrupted through SessionControl.
var ErrCancelled = errors.New("operation cancelled by session control")

// SessionControl is passed to long-running page operations. It carries an
// operator cancellation flag and at most one pending external command
// (for example "pause" or "skip") that waits check between polls.
type SessionControl struct {
	mu        sync.Mutex
	cancelled bool
	pending   string
}

func NewSessionControl() *SessionControl {
	return &SessionControl{}
}

func (s *SessionControl) RequestCancel() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *SessionControl) CancelRequested() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// PushCommand replaces the pending command.
func (s *SessionControl) PushCommand(cmd string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.pending = cmd
	s.mu.Unlock()
}

// PendingCommand reports the pending command without consuming it.
func (s *SessionControl) PendingCommand() (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.pending != ""
}

// TakeCommand consumes the pending command.
func (s *SessionControl) TakeCommand() (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd := s.pending
	s.pending = ""
	return cmd, cmd != ""
}

// Interrupted reports whether a wait should stop: the operator cancelled or
// an external command is waiting to be handled.
func (s *SessionControl) Interrupted() bool {
	if s.CancelRequested() {
		return true
	}
	_, ok := s.PendingCommand()
	return ok
}

// Sleep waits for d unless ctx ends or the session is interrupted. The
// session is checked every 100ms.
func (s *SessionControl) Sleep(ctx context.Context, d time.Duration) error {
	const slice = 100 * time.Millisecond
	deadline := time.Now().Add(d)
	for {
		if s.Interrupted() {
			return ErrCancelled
		}
		left := time.Until(deadline)
		if left <= 0 {
			return nil
		}
		step := min(left, slice)
		t := time.NewTimer(step)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
