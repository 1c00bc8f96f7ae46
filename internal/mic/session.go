// Package mic manages access to the audio capture hardware.
//
// A Session is the only owner of a hardware Handle. It moves through
//
//	Uninitialized -> RequestingPermission -> Ready <-> Recording -> Closed
//
// with PermissionDenied as a terminal failure of RequestingPermission.
// Close releases the hardware from any state and may be called any number
// of times.
package mic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type State int

const (
	StateUninitialized State = iota
	StateRequestingPermission
	StateReady
	StateRecording
	StateClosed
	StatePermissionDenied
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRequestingPermission:
		return "requesting-permission"
	case StateReady:
		return "ready"
	case StateRecording:
		return "recording"
	case StateClosed:
		return "closed"
	case StatePermissionDenied:
		return "permission-denied"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	ErrInvalidState = errors.New("invalid microphone session state")
	ErrClosed       = errors.New("microphone session closed")
)

// PermissionDeniedError is returned by Open when the device refuses access.
type PermissionDeniedError struct {
	Reason error
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("capture device unavailable: %v", e.Reason)
}

func (e *PermissionDeniedError) Unwrap() error {
	return e.Reason
}

var _ error = (*PermissionDeniedError)(nil)

type Session struct {
	device Device

	mu     sync.Mutex
	state  State
	handle Handle
}

func NewSession(device Device) *Session {
	return &Session{device: device}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open requests access to the device. It is valid only on a new session;
// a denied session stays denied and a new Session must be created.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot open from %s", ErrInvalidState, state)
	}
	s.releaseLocked()
	s.state = StateRequestingPermission
	s.mu.Unlock()

	// Acquisition can block on the user or the OS, so it runs unlocked.
	// Close may run meanwhile and wins.
	handle, err := s.device.Acquire(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		if handle != nil {
			releaseHandle(handle)
		}
		return ErrClosed
	}
	if err != nil {
		s.state = StatePermissionDenied
		return &PermissionDeniedError{Reason: err}
	}

	s.handle = handle
	s.state = StateReady
	return nil
}

// BeginRecording starts a capture on the hardware and moves the session to
// Recording. It is valid only from Ready.
func (s *Session) BeginRecording(ctx context.Context) (Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return nil, fmt.Errorf("%w: cannot record from %s", ErrInvalidState, s.state)
	}

	capture, err := s.handle.Record(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}
	s.state = StateRecording
	return capture, nil
}

// EndRecording returns a recording session to Ready. It does nothing in any
// other state, so a Close that raced the recording stays closed.
func (s *Session) EndRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		s.state = StateReady
	}
}

// Close releases the hardware handle. It always succeeds.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()
	s.state = StateClosed
	return nil
}

func (s *Session) releaseLocked() {
	if s.handle == nil {
		return
	}
	releaseHandle(s.handle)
	s.handle = nil
}

func releaseHandle(h Handle) {
	if err := h.Release(); err != nil {
		slog.Warn("failed to release capture device", slog.Any("error", err))
	}
}
