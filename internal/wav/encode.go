package wav

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/glizzus/readaloud/internal/pcm"
)

// Container is a complete WAV file: header followed by sample data.
type Container []byte

// Header parses and validates the container's header.
func (c Container) Header() (Header, error) {
	return ParseHeader(c)
}

// Data returns the PCM sample region.
func (c Container) Data() []byte {
	if len(c) < HeaderSize {
		return nil
	}
	return c[HeaderSize:]
}

// InvariantError reports audio that violates the pcm.Audio invariants or
// does not fit in a WAV header. It indicates a defect upstream.
type InvariantError struct {
	Err error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("encode invariant violation: %v", e.Err)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

var _ error = (*InvariantError)(nil)

// Quantize converts a float sample to signed 16-bit PCM. The sample is
// clamped to [-1, 1]; negative values scale by 32768 and positive values by
// 32767, truncating toward zero. NaN maps to 0.
func Quantize(s float32) int16 {
	v := float64(s)
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	if v < 0 {
		return int16(v * 0x8000)
	}
	return int16(v * 0x7FFF)
}

func checkFits(a *pcm.Audio) error {
	if err := a.Validate(); err != nil {
		return &InvariantError{Err: err}
	}
	if a.NumChannels() > math.MaxUint16 {
		return &InvariantError{Err: fmt.Errorf("%d channels do not fit in a WAV header", a.NumChannels())}
	}
	if uint64(a.SampleRate)*uint64(a.NumChannels())*bytesPerSample > math.MaxUint32 {
		return &InvariantError{Err: fmt.Errorf("byte rate overflows for %d Hz", a.SampleRate)}
	}
	dataSize := uint64(a.Frames()) * uint64(a.NumChannels()) * bytesPerSample
	if dataSize > math.MaxUint32-riffOverhead {
		return &InvariantError{Err: fmt.Errorf("%d bytes of samples do not fit in a WAV file", dataSize)}
	}
	return nil
}

// Encode serializes a into a canonical WAV container, interleaving channels
// frame by frame. A zero-frame input yields a header-only container.
func Encode(a *pcm.Audio) (Container, error) {
	if err := checkFits(a); err != nil {
		return nil, err
	}

	frames, channels := a.Frames(), a.NumChannels()
	header, err := NewHeader(channels, a.SampleRate, frames).MarshalBinary()
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, HeaderSize+frames*channels*bytesPerSample)
	out = append(out, header...)
	for f := range frames {
		for c := range channels {
			out = binary.LittleEndian.AppendUint16(out, uint16(Quantize(a.Channels[c][f])))
		}
	}
	return out, nil
}

// EncodeFirstChannel reproduces the legacy single-channel encoder: the header
// declares the true channel count and data size, but only channel 0 is
// written, back to back, and the rest of the data region stays zero.
//
// Deprecated: multi-channel input produces a container whose samples do not
// match its header. Use Encode.
func EncodeFirstChannel(a *pcm.Audio) (Container, error) {
	if err := checkFits(a); err != nil {
		return nil, err
	}

	frames, channels := a.Frames(), a.NumChannels()
	header, err := NewHeader(channels, a.SampleRate, frames).MarshalBinary()
	if err != nil {
		return nil, err
	}

	out := make([]byte, HeaderSize+frames*channels*bytesPerSample)
	copy(out, header)
	for f, s := range a.Channels[0] {
		binary.LittleEndian.PutUint16(out[HeaderSize+f*bytesPerSample:], uint16(Quantize(s)))
	}
	return out, nil
}
