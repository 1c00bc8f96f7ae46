// Package recorder turns a start/stop bracket on a microphone session into
// one compressed blob.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/glizzus/readaloud/internal/mic"
)

var (
	ErrEmptyRecording   = errors.New("recording was too short")
	ErrAlreadyRecording = errors.New("recorder is already recording")
	ErrNotRecording     = errors.New("recorder is not recording")
)

// CaptureBuffer is the ordered list of fragments from one bracket.
type CaptureBuffer struct {
	fragments [][]byte
	size      int
}

func (b *CaptureBuffer) Append(fragment []byte) {
	b.fragments = append(b.fragments, fragment)
	b.size += len(fragment)
}

func (b *CaptureBuffer) Reset() {
	b.fragments = nil
	b.size = 0
}

// Len returns the number of fragments.
func (b *CaptureBuffer) Len() int {
	return len(b.fragments)
}

// Size returns the number of buffered bytes.
func (b *CaptureBuffer) Size() int {
	return b.size
}

// Bytes concatenates the fragments in arrival order.
func (b *CaptureBuffer) Bytes() []byte {
	var out bytes.Buffer
	out.Grow(b.size)
	for _, f := range b.fragments {
		out.Write(f)
	}
	return out.Bytes()
}

type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Recorder struct {
	session *mic.Session

	mu      sync.Mutex
	state   State
	buf     CaptureBuffer
	capture mic.Capture
	drained chan struct{}
	idle    chan struct{}
}

func New(session *mic.Session) *Recorder {
	return &Recorder{session: session}
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Buffered returns the number of bytes captured so far in this bracket.
func (r *Recorder) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Size()
}

// Start clears the buffer and begins collecting fragments. The session must
// be Ready.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return ErrAlreadyRecording
	}

	capture, err := r.session.BeginRecording(ctx)
	if err != nil {
		return err
	}

	r.buf.Reset()
	r.capture = capture
	r.drained = make(chan struct{})
	r.idle = make(chan struct{})
	r.state = StateRecording

	go r.drain(capture, r.drained)
	return nil
}

// Wait blocks until the bracket in progress, if any, has been stopped and
// the recorder is idle again.
func (r *Recorder) Wait(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateIdle {
		r.mu.Unlock()
		return nil
	}
	idle := r.idle
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain is the only writer to the buffer while a bracket is recording.
func (r *Recorder) drain(capture mic.Capture, drained chan<- struct{}) {
	defer close(drained)
	for fragment := range capture.Fragments() {
		if len(fragment) == 0 {
			continue
		}
		r.mu.Lock()
		r.buf.Append(fragment)
		r.mu.Unlock()
	}
}

// Stop finalizes the capture, waits for the last fragment and returns the
// whole recording. A bracket without fragments yields ErrEmptyRecording.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	r.state = StateFinalizing
	capture, drained := r.capture, r.drained
	r.mu.Unlock()

	if err := capture.Stop(); err != nil {
		slog.Warn("failed to stop capture cleanly", slog.Any("error", err))
	}
	<-drained
	r.session.EndRecording()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = StateIdle
	r.capture = nil
	close(r.idle)
	captureErr := capture.Err()

	if r.buf.Len() == 0 {
		if captureErr != nil {
			slog.Warn("capture ended without data", slog.Any("error", captureErr))
		}
		return nil, ErrEmptyRecording
	}
	if captureErr != nil {
		// Whatever made it out is kept; the decoder rejects a truncated stream.
		slog.Warn("capture ended with an error", slog.Any("error", captureErr), slog.Int("bytes", r.buf.Size()))
	}

	blob := r.buf.Bytes()
	r.buf.Reset()
	return blob, nil
}
