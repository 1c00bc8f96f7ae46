// Package mictest provides a scriptable in-memory capture device.
package mictest

import (
	"context"
	"sync"

	"github.com/glizzus/readaloud/internal/mic"
)

// Device hands out handles whose captures replay fixed fragments. The zero
// value grants access and records nothing.
type Device struct {
	// Fragments are delivered as soon as a capture starts.
	Fragments [][]byte
	// Trailer is delivered after Stop, before the capture finishes, like an
	// encoder flushing its last page.
	Trailer [][]byte
	// HoldTrailer, when set, delays the trailer until it is closed, like an
	// encoder that is slow to finalize.
	HoldTrailer <-chan struct{}
	// AcquireErr makes Acquire fail.
	AcquireErr error
	// RecordErr makes Record fail.
	RecordErr error
	// CaptureErr is reported by a capture once it finishes.
	CaptureErr error

	mu       sync.Mutex
	active   int
	acquired int
	records  int
}

var _ mic.Device = (*Device)(nil)

func (d *Device) Acquire(ctx context.Context) (mic.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.AcquireErr != nil {
		return nil, d.AcquireErr
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.active++
	d.acquired++
	return &handle{device: d}, nil
}

// Active returns the number of handles acquired and not yet released.
func (d *Device) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Acquired returns the total number of successful acquisitions.
func (d *Device) Acquired() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquired
}

// Records returns the number of captures started.
func (d *Device) Records() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.records
}

type handle struct {
	device *Device

	mu       sync.Mutex
	current  *capture
	released bool
}

func (h *handle) Record(ctx context.Context) (mic.Capture, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, mic.ErrReleased
	}
	if h.device.RecordErr != nil {
		return nil, h.device.RecordErr
	}
	if h.current != nil && !h.current.finished() {
		return nil, mic.ErrCaptureRunning
	}

	h.device.mu.Lock()
	h.device.records++
	h.device.mu.Unlock()

	c := &capture{
		fragments: make(chan []byte),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	h.current = c
	go c.run(ctx, h.device.Fragments, h.device.Trailer, h.device.HoldTrailer, h.device.CaptureErr)
	return c, nil
}

func (h *handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}
	h.released = true
	if h.current != nil {
		h.current.release()
	}

	h.device.mu.Lock()
	h.device.active--
	h.device.mu.Unlock()
	return nil
}

type capture struct {
	fragments chan []byte
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	releaseMu sync.Mutex
	released  bool
	err       error
}

func (c *capture) run(ctx context.Context, fragments, trailer [][]byte, hold <-chan struct{}, captureErr error) {
	defer close(c.fragments)
	defer close(c.done)

	for _, f := range fragments {
		c.fragments <- f
	}

	select {
	case <-c.stop:
	case <-ctx.Done():
		c.err = ctx.Err()
		return
	}

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			c.err = ctx.Err()
			return
		}
	}
	if c.isReleased() {
		c.err = mic.ErrReleased
		return
	}
	for _, f := range trailer {
		c.fragments <- f
	}
	c.err = captureErr
}

func (c *capture) Fragments() <-chan []byte {
	return c.fragments
}

func (c *capture) Stop() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *capture) Err() error {
	return c.err
}

func (c *capture) release() {
	c.releaseMu.Lock()
	c.released = true
	c.releaseMu.Unlock()
	c.Stop()
}

func (c *capture) isReleased() bool {
	c.releaseMu.Lock()
	defer c.releaseMu.Unlock()
	return c.released
}

func (c *capture) finished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
