package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jonas747/ogg"
)

var (
	ErrEmptyInput  = errors.New("captured audio is empty")
	ErrNotOpus     = errors.New("first Ogg packet is not an OpusHead header")
	ErrBadOpusHead = errors.New("malformed OpusHead header")
)

// StreamInfo describes an Ogg/Opus stream as declared by its OpusHead packet.
type StreamInfo struct {
	Version         uint8
	Channels        int
	PreSkip         uint16
	InputSampleRate uint32
	MappingFamily   uint8
}

const opusHeadMinSize = 19

var opusHeadMagic = []byte("OpusHead")

// Probe validates that blob is an Ogg stream whose first packet is an
// OpusHead identification header, and returns the stream layout.
func Probe(blob []byte) (StreamInfo, error) {
	if len(blob) == 0 {
		return StreamInfo{}, ErrEmptyInput
	}

	decoder := ogg.NewPacketDecoder(ogg.NewDecoder(bytes.NewReader(blob)))
	packet, _, err := decoder.Decode()
	if err != nil {
		return StreamInfo{}, fmt.Errorf("failed to read Ogg identification packet: %w", err)
	}
	return parseOpusHead(packet)
}

func parseOpusHead(packet []byte) (StreamInfo, error) {
	if !bytes.HasPrefix(packet, opusHeadMagic) {
		return StreamInfo{}, ErrNotOpus
	}
	if len(packet) < opusHeadMinSize {
		return StreamInfo{}, fmt.Errorf("%w: %d bytes", ErrBadOpusHead, len(packet))
	}

	info := StreamInfo{
		Version:         packet[8],
		Channels:        int(packet[9]),
		PreSkip:         binary.LittleEndian.Uint16(packet[10:12]),
		InputSampleRate: binary.LittleEndian.Uint32(packet[12:16]),
		MappingFamily:   packet[18],
	}
	// Only the major version (upper nibble) breaks compatibility.
	if info.Version>>4 != 0 {
		return StreamInfo{}, fmt.Errorf("%w: unsupported version %d", ErrBadOpusHead, info.Version)
	}
	if info.Channels == 0 {
		return StreamInfo{}, fmt.Errorf("%w: zero channels", ErrBadOpusHead)
	}
	return info, nil
}
