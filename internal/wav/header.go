package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unsafe"
)

const (
	HeaderSize    = 44
	BitsPerSample = 16

	bytesPerSample = BitsPerSample / 8
	formatPCM      = 1
	fmtChunkSize   = 16
	// ChunkSize counts everything after the RIFF tag and the size field.
	riffOverhead = HeaderSize - 8
)

var (
	tagRIFF = [4]byte{'R', 'I', 'F', 'F'}
	tagWAVE = [4]byte{'W', 'A', 'V', 'E'}
	tagFmt  = [4]byte{'f', 'm', 't', ' '}
	tagData = [4]byte{'d', 'a', 't', 'a'}
)

// Header is the on-disk WAV header. Field order and widths are the wire
// layout; encoding/binary writes it field by field in little-endian order.
type Header struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	DataSize      uint32
}

// The struct has no padding, so its in-memory offsets are the wire offsets.
// Each expression below fails to compile if a field moves.
var (
	_ = [1]struct{}{}[unsafe.Sizeof(Header{})-HeaderSize]
	_ = [1]struct{}{}[unsafe.Offsetof(Header{}.ChunkSize)-4]
	_ = [1]struct{}{}[unsafe.Offsetof(Header{}.Format)-8]
	_ = [1]struct{}{}[unsafe.Offsetof(Header{}.Subchunk1ID)-12]
	_ = [1]struct{}{}[unsafe.Offsetof(Header{}.Subchunk1Size)-16]
	_ = [1]struct{}{}[unsafe.Offsetof(Header{}.AudioFormat)-20]
	_ = [1]struct{}{}[unsafe.Offsetof(Header{}.NumChannels)-22]
	_ = [1]struct{}{}[unsafe.Offsetof(Header{}.SampleRate)-24]
	_ = [1]struct{}{}[unsafe.Offsetof(Header{}.ByteRate)-28]
	_ = [1]struct{}{}[unsafe.Offsetof(Header{}.BlockAlign)-32]
	_ = [1]struct{}{}[unsafe.Offsetof(Header{}.BitsPerSample)-34]
	_ = [1]struct{}{}[unsafe.Offsetof(Header{}.Subchunk2ID)-36]
	_ = [1]struct{}{}[unsafe.Offsetof(Header{}.DataSize)-40]
)

// NewHeader builds the canonical header for frames of 16-bit PCM with the
// given channel count and sample rate. Callers are expected to have checked
// the ranges; see Encode.
func NewHeader(channels, sampleRate, frames int) Header {
	blockAlign := uint32(channels) * bytesPerSample
	dataSize := uint32(frames) * blockAlign
	return Header{
		ChunkID:       tagRIFF,
		ChunkSize:     riffOverhead + dataSize,
		Format:        tagWAVE,
		Subchunk1ID:   tagFmt,
		Subchunk1Size: fmtChunkSize,
		AudioFormat:   formatPCM,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * blockAlign,
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: BitsPerSample,
		Subchunk2ID:   tagData,
		DataSize:      dataSize,
	}
}

// MarshalBinary returns the 44 header bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	return buf.Bytes(), nil
}

// Frames returns the number of sample frames declared by the header.
func (h Header) Frames() int {
	if h.BlockAlign == 0 {
		return 0
	}
	return int(h.DataSize) / int(h.BlockAlign)
}

// Duration returns the playback length declared by the header.
func (h Header) Duration() time.Duration {
	if h.SampleRate == 0 {
		return 0
	}
	return time.Duration(h.Frames()) * time.Second / time.Duration(h.SampleRate)
}

var (
	ErrShortHeader      = errors.New("WAV data too short for a header")
	ErrNotCanonical     = errors.New("not a canonical 16-bit PCM WAV header")
	ErrDataSizeMismatch = errors.New("WAV data size does not match payload length")
)

// ParseHeader reads and validates the canonical header at the start of data.
// The declared data size must match the bytes that follow the header.
func ParseHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, fmt.Errorf("%w: got %d bytes", ErrShortHeader, len(data))
	}
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("failed to read WAV header: %w", err)
	}

	switch {
	case h.ChunkID != tagRIFF:
		return h, fmt.Errorf("%w: missing RIFF tag", ErrNotCanonical)
	case h.Format != tagWAVE:
		return h, fmt.Errorf("%w: missing WAVE tag", ErrNotCanonical)
	case h.Subchunk1ID != tagFmt || h.Subchunk1Size != fmtChunkSize:
		return h, fmt.Errorf("%w: unexpected fmt chunk", ErrNotCanonical)
	case h.Subchunk2ID != tagData:
		return h, fmt.Errorf("%w: missing data tag", ErrNotCanonical)
	case h.AudioFormat != formatPCM:
		return h, fmt.Errorf("%w: audio format %d", ErrNotCanonical, h.AudioFormat)
	case h.BitsPerSample != BitsPerSample:
		return h, fmt.Errorf("%w: %d bits per sample", ErrNotCanonical, h.BitsPerSample)
	case h.NumChannels == 0:
		return h, fmt.Errorf("%w: zero channels", ErrNotCanonical)
	case uint32(h.BlockAlign) != uint32(h.NumChannels)*bytesPerSample:
		return h, fmt.Errorf("%w: block align %d", ErrNotCanonical, h.BlockAlign)
	case h.ByteRate != h.SampleRate*uint32(h.BlockAlign):
		return h, fmt.Errorf("%w: byte rate %d", ErrNotCanonical, h.ByteRate)
	case h.ChunkSize != riffOverhead+h.DataSize:
		return h, fmt.Errorf("%w: chunk size %d", ErrNotCanonical, h.ChunkSize)
	}

	if int64(h.DataSize) != int64(len(data)-HeaderSize) {
		return h, fmt.Errorf("%w: header says %d, have %d", ErrDataSizeMismatch, h.DataSize, len(data)-HeaderSize)
	}
	return h, nil
}
