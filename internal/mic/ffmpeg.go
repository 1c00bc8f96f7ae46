package mic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/glizzus/readaloud/internal/config"
)

// FFmpegDevice captures from a system input through FFmpeg and encodes it to
// Ogg/Opus. InputFormat and Input are passed to ffmpeg as -f and -i, e.g.
// "pulse"/"default", "alsa"/"hw:0" or "avfoundation"/":0".
type FFmpegDevice struct {
	Path        string
	InputFormat string
	Input       string
	Channels    int
	Bitrate     int
}

func NewFFmpegDeviceFromConfig(cfg *config.CaptureConfig) *FFmpegDevice {
	return &FFmpegDevice{
		Path:        cfg.FFmpegPath,
		InputFormat: cfg.InputFormat,
		Input:       cfg.Device,
		Channels:    cfg.Channels,
		Bitrate:     cfg.Bitrate,
	}
}

var _ Device = (*FFmpegDevice)(nil)

func (d *FFmpegDevice) binary() string {
	if d.Path == "" {
		return "ffmpeg"
	}
	return d.Path
}

func (d *FFmpegDevice) inputArgs() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", d.InputFormat,
		"-i", d.Input,
	}
}

// Acquire opens the input for a fraction of a second. A device that cannot
// be opened, or that the OS refuses to share, fails here.
func (d *FFmpegDevice) Acquire(ctx context.Context) (Handle, error) {
	args := append(d.inputArgs(), "-t", "0.1", "-f", "null", "-")
	probe := exec.CommandContext(ctx, d.binary(), args...)

	var stderr bytes.Buffer
	probe.Stderr = &stderr
	if err := probe.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return &ffmpegHandle{device: d}, nil
}

type ffmpegHandle struct {
	device *FFmpegDevice

	mu       sync.Mutex
	current  *ffmpegCapture
	released bool
}

func (h *ffmpegHandle) Record(ctx context.Context) (Capture, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, ErrReleased
	}
	if h.current != nil && !h.current.finished() {
		return nil, ErrCaptureRunning
	}

	d := h.device
	args := append(d.inputArgs(),
		"-vn",
		"-ac", strconv.Itoa(d.Channels),
		"-acodec", "libopus",
		"-f", "ogg",
		"-vbr", "on",
		"-b:a", strconv.Itoa(d.Bitrate),
		"-application", "voip",
		"-frame_duration", "20",
		"-flush_packets", "1",
		"pipe:1",
	)
	ffmpeg := exec.CommandContext(ctx, d.binary(), args...)

	stdin, err := ffmpeg.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, err
	}
	c := &ffmpegCapture{
		cmd:       ffmpeg,
		stdin:     stdin,
		fragments: make(chan []byte, 16),
		done:      make(chan struct{}),
	}
	ffmpeg.Stderr = &c.stderr

	if err := ffmpeg.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	go c.pump(stdout)
	h.current = c
	return c, nil
}

func (h *ffmpegHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}
	h.released = true
	if h.current != nil {
		h.current.abort()
	}
	return nil
}

const fragmentSize = 16 * 1024

type ffmpegCapture struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer

	fragments chan []byte
	done      chan struct{}
	stopOnce  sync.Once
	stopped   atomic.Bool
	aborted   atomic.Bool
	err       error
}

func (c *ffmpegCapture) Fragments() <-chan []byte {
	return c.fragments
}

func (c *ffmpegCapture) Err() error {
	return c.err
}

func (c *ffmpegCapture) finished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Stop sends FFmpeg its interactive quit command so it writes the final
// Ogg page before exiting.
func (c *ffmpegCapture) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		if _, werr := io.WriteString(c.stdin, "q"); werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
			err = fmt.Errorf("failed to signal ffmpeg: %w", werr)
		}
		if cerr := c.stdin.Close(); cerr != nil && err == nil && !errors.Is(cerr, io.ErrClosedPipe) {
			err = cerr
		}
	})
	return err
}

func (c *ffmpegCapture) abort() {
	c.aborted.Store(true)
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
}

func (c *ffmpegCapture) pump(stdout io.Reader) {
	defer close(c.fragments)
	defer close(c.done)

	var readErr error
	for {
		buf := make([]byte, fragmentSize)
		n, err := stdout.Read(buf)
		if n > 0 {
			c.fragments <- buf[:n]
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
	}

	waitErr := c.cmd.Wait()
	switch {
	case c.aborted.Load():
		c.err = ErrReleased
	case readErr != nil:
		c.err = fmt.Errorf("failed to read capture: %w", readErr)
	case waitErr != nil && !c.stopped.Load():
		c.err = fmt.Errorf("capture ended unexpectedly: %w: %s", waitErr, strings.TrimSpace(c.stderr.String()))
	}
}
