package mic

import (
	"context"
	"errors"
)

// Device grants access to capture hardware.
type Device interface {
	// Acquire blocks until access is granted or refused.
	Acquire(ctx context.Context) (Handle, error)
}

// Handle is a live grant of the hardware.
type Handle interface {
	// Record starts encoding the hardware input. At most one capture runs
	// per handle.
	Record(ctx context.Context) (Capture, error)
	// Release frees the hardware and ends any running capture. It is safe
	// to call more than once.
	Release() error
}

// Capture is one running recording.
type Capture interface {
	// Fragments delivers compressed data in capture order. The channel is
	// closed after the last fragment has been flushed.
	Fragments() <-chan []byte
	// Stop asks the capture to finalize. Fragments keeps delivering until
	// the encoder has flushed.
	Stop() error
	// Err reports why the capture ended. It is only meaningful once
	// Fragments is closed and is nil after a clean Stop.
	Err() error
}

var (
	ErrReleased       = errors.New("capture device released")
	ErrCaptureRunning = errors.New("a capture is already running")
)
