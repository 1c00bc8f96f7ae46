// Package pcm holds decoded, unquantized audio.
//
// An Audio value is produced once per recording by the decoder and is treated
// as immutable afterwards: the encoder only reads it.
package pcm

import (
	"errors"
	"fmt"
	"time"
)

// Audio is a planar buffer of floating point samples, nominally in [-1, 1].
// Channels[c][f] is the sample for channel c at frame f.
type Audio struct {
	SampleRate int
	Channels   [][]float32
}

// NumChannels returns the number of channels in the buffer.
func (a *Audio) NumChannels() int {
	return len(a.Channels)
}

// Frames returns the number of sample frames, which is the length of
// the first channel. Use Validate to check that all channels agree.
func (a *Audio) Frames() int {
	if len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// Duration returns the playback length of the buffer.
func (a *Audio) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(a.Frames()) * time.Second / time.Duration(a.SampleRate)
}

var (
	ErrNoChannels        = errors.New("audio has no channels")
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
)

// ChannelLengthError reports a channel whose length differs from channel 0.
type ChannelLengthError struct {
	Channel int
	Length  int
	Want    int
}

func (e *ChannelLengthError) Error() string {
	return fmt.Sprintf("channel %d has %d frames, want %d", e.Channel, e.Length, e.Want)
}

var _ error = (*ChannelLengthError)(nil)

// Validate checks the buffer invariants: a positive sample rate, at least
// one channel, and identical channel lengths.
func (a *Audio) Validate() error {
	if a.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if len(a.Channels) == 0 {
		return ErrNoChannels
	}
	want := len(a.Channels[0])
	for i, ch := range a.Channels[1:] {
		if len(ch) != want {
			return &ChannelLengthError{Channel: i + 1, Length: len(ch), Want: want}
		}
	}
	return nil
}

// Deinterleave splits interleaved samples into channels. Trailing samples
// that do not fill a whole frame are an error.
func Deinterleave(samples []float32, channels, sampleRate int) (*Audio, error) {
	if channels < 1 {
		return nil, ErrNoChannels
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("%d samples do not divide into %d channels", len(samples), channels)
	}

	frames := len(samples) / channels
	out := &Audio{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channels),
	}
	for c := range out.Channels {
		out.Channels[c] = make([]float32, frames)
	}
	for f := range frames {
		for c := range channels {
			out.Channels[c][f] = samples[f*channels+c]
		}
	}
	return out, nil
}
