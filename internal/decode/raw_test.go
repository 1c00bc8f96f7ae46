package decode

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func float32Bytes(samples ...float32) []byte {
	var out []byte
	for _, s := range samples {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(s))
	}
	return out
}

func TestFloatsToAudio(t *testing.T) {
	raw := float32Bytes(0.5, -0.5, 1, -1)

	got, err := floatsToAudio(raw, 2, OpusSampleRate)
	if err != nil {
		t.Fatalf("floatsToAudio returned error: %v", err)
	}
	want := [][]float32{{0.5, 1}, {-0.5, -1}}
	if diff := cmp.Diff(want, got.Channels); diff != "" {
		t.Errorf("channels mismatch (-want +got):\n%s", diff)
	}
}

func TestFloatsToAudioFailure(t *testing.T) {
	if _, err := floatsToAudio([]byte{1, 2, 3}, 1, OpusSampleRate); err == nil {
		t.Errorf("expected error for a partial float")
	}
	if _, err := floatsToAudio(float32Bytes(1, 2, 3), 2, OpusSampleRate); err == nil {
		t.Errorf("expected error for a partial frame")
	}
	if _, err := floatsToAudio(nil, 1, OpusSampleRate); !errors.Is(err, ErrNoFrames) {
		t.Errorf("expected ErrNoFrames, got %v", err)
	}
}
