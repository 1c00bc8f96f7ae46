package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/glizzus/readaloud/internal/pcm"
)

// OpusSampleRate is the rate every Opus stream decodes at.
const OpusSampleRate = 48000

// Decoder turns one captured blob into audio.
type Decoder interface {
	Decode(ctx context.Context, blob []byte) (*pcm.Audio, error)
}

// Func adapts a function to the Decoder interface.
type Func func(ctx context.Context, blob []byte) (*pcm.Audio, error)

func (f Func) Decode(ctx context.Context, blob []byte) (*pcm.Audio, error) {
	return f(ctx, blob)
}

var _ Decoder = Func(nil)

// Error is returned for any blob that cannot be decoded. The message is
// fixed; the cause is available through errors.Unwrap.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return "unable to decode captured audio"
}

func (e *Error) Unwrap() error {
	return e.Err
}

var _ error = (*Error)(nil)

var ErrNoFrames = errors.New("decoded audio has no frames")

// FFmpegDecoder decodes Ogg/Opus by piping it through an FFmpeg process.
type FFmpegDecoder struct {
	// Path to the ffmpeg binary. Defaults to "ffmpeg" on PATH.
	Path string
}

func NewFFmpegDecoder(path string) *FFmpegDecoder {
	return &FFmpegDecoder{Path: path}
}

func (d *FFmpegDecoder) binary() string {
	if d.Path == "" {
		return "ffmpeg"
	}
	return d.Path
}

var _ Decoder = (*FFmpegDecoder)(nil)

// Decode probes blob, then decodes it to interleaved float32 samples with
// FFmpeg and splits them per channel. The process is bound to ctx.
func (d *FFmpegDecoder) Decode(ctx context.Context, blob []byte) (*pcm.Audio, error) {
	info, err := Probe(blob)
	if err != nil {
		return nil, &Error{Err: err}
	}

	ffmpeg := exec.CommandContext(ctx, d.binary(),
		"-hide_banner",
		"-loglevel", "error",
		"-f", "ogg",
		"-i", "pipe:0",
		"-vn",
		"-map", "0:a",
		"-acodec", "pcm_f32le",
		"-f", "f32le",
		"-ac", strconv.Itoa(info.Channels),
		"-ar", strconv.Itoa(OpusSampleRate),
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	ffmpeg.Stdin = bytes.NewReader(blob)
	ffmpeg.Stdout = &stdout
	ffmpeg.Stderr = &stderr

	if err := ffmpeg.Run(); err != nil {
		return nil, &Error{Err: fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))}
	}

	audio, err := floatsToAudio(stdout.Bytes(), info.Channels, OpusSampleRate)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return audio, nil
}

func floatsToAudio(raw []byte, channels, sampleRate int) (*pcm.Audio, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("raw output of %d bytes is not a whole number of float32 samples", len(raw))
	}

	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	audio, err := pcm.Deinterleave(samples, channels, sampleRate)
	if err != nil {
		return nil, err
	}
	if audio.Frames() == 0 {
		return nil, ErrNoFrames
	}
	return audio, nil
}
