// Package decodetest builds small Ogg/Opus byte streams for tests.
package decodetest

import (
	"encoding/binary"
)

const (
	pageContinued = 1 << iota
	pageBOS
	pageEOS
)

var crcTable = func() (t [256]uint32) {
	for i := range t {
		r := uint32(i) << 24
		for range 8 {
			if r&0x80000000 != 0 {
				r = r<<1 ^ 0x04c11db7
			} else {
				r <<= 1
			}
		}
		t[i] = r
	}
	return t
}()

func checksum(b []byte) uint32 {
	var c uint32
	for _, x := range b {
		c = c<<8 ^ crcTable[byte(c>>24)^x]
	}
	return c
}

// Page encodes a single Ogg page carrying one packet. The packet must be
// shorter than 255*255 bytes.
func Page(headerType byte, serial, sequence uint32, granule int64, packet []byte) []byte {
	lacing := make([]byte, 0, len(packet)/255+1)
	for n := len(packet); ; n -= 255 {
		if n < 255 {
			lacing = append(lacing, byte(n))
			break
		}
		lacing = append(lacing, 255)
	}

	page := make([]byte, 0, 27+len(lacing)+len(packet))
	page = append(page, "OggS"...)
	page = append(page, 0, headerType)
	page = binary.LittleEndian.AppendUint64(page, uint64(granule))
	page = binary.LittleEndian.AppendUint32(page, serial)
	page = binary.LittleEndian.AppendUint32(page, sequence)
	page = binary.LittleEndian.AppendUint32(page, 0)
	page = append(page, byte(len(lacing)))
	page = append(page, lacing...)
	page = append(page, packet...)

	binary.LittleEndian.PutUint32(page[22:26], checksum(page))
	return page
}

// OpusHead returns an identification header packet.
func OpusHead(channels int, inputSampleRate uint32) []byte {
	head := make([]byte, 0, 19)
	head = append(head, "OpusHead"...)
	head = append(head, 1, byte(channels))
	head = binary.LittleEndian.AppendUint16(head, 312)
	head = binary.LittleEndian.AppendUint32(head, inputSampleRate)
	head = binary.LittleEndian.AppendUint16(head, 0)
	head = append(head, 0)
	return head
}

// OpusTags returns a comment header packet with an empty comment list.
func OpusTags() []byte {
	tags := []byte("OpusTags")
	tags = binary.LittleEndian.AppendUint32(tags, uint32(len("readaloud")))
	tags = append(tags, "readaloud"...)
	tags = binary.LittleEndian.AppendUint32(tags, 0)
	return tags
}

// SilentFrame is a 20 ms mono CELT frame of digital silence.
var SilentFrame = []byte{0xF8, 0xFF, 0xFE}

// Stream returns a complete Ogg/Opus stream with the two header pages
// followed by one page per audio packet.
func Stream(channels int, packets ...[]byte) []byte {
	const serial = 0x5EED
	var out []byte
	out = append(out, Page(pageBOS, serial, 0, 0, OpusHead(channels, 48000))...)
	out = append(out, Page(0, serial, 1, 0, OpusTags())...)
	for i, p := range packets {
		headerType := byte(0)
		if i == len(packets)-1 {
			headerType = pageEOS
		}
		out = append(out, Page(headerType, serial, uint32(i+2), int64(960*(i+1)), p)...)
	}
	return out
}
