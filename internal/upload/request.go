// Package upload hands finished recordings to the transcription service.
package upload

import (
	"errors"
	"fmt"

	"github.com/glizzus/readaloud/internal/wav"
)

const DefaultFilename = "recording.wav"

var ErrEmptyAudio = errors.New("recording contains no audio")

// FilenameForQuestion names the recording for the zero-based question index.
func FilenameForQuestion(index int) string {
	return fmt.Sprintf("question_%d.wav", index+1)
}

// Request is one recording bound for the uploader. Its fields are read-only
// once constructed.
type Request struct {
	audio    wav.Container
	header   wav.Header
	filename string
	question string
	userID   string
}

// NewRequest validates container and copies it, so later changes by the
// caller never reach the uploader. An empty filename selects DefaultFilename.
func NewRequest(container wav.Container, filename, question, userID string) (*Request, error) {
	header, err := wav.ParseHeader(container)
	if err != nil {
		return nil, fmt.Errorf("invalid recording: %w", err)
	}
	if header.DataSize == 0 {
		return nil, ErrEmptyAudio
	}
	if filename == "" {
		filename = DefaultFilename
	}

	return &Request{
		audio:    append(wav.Container(nil), container...),
		header:   header,
		filename: filename,
		question: question,
		userID:   userID,
	}, nil
}

func (r *Request) Filename() string {
	return r.filename
}

func (r *Request) Question() string {
	return r.question
}

func (r *Request) UserID() string {
	return r.userID
}

func (r *Request) Header() wav.Header {
	return r.header
}

// Size returns the length of the WAV payload in bytes.
func (r *Request) Size() int {
	return len(r.audio)
}

// Audio returns a copy of the WAV payload.
func (r *Request) Audio() wav.Container {
	return append(wav.Container(nil), r.audio...)
}
