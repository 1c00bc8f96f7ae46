package pipeline

import (
	"errors"
	"fmt"

	"github.com/glizzus/readaloud/internal/decode"
	"github.com/glizzus/readaloud/internal/mic"
	"github.com/glizzus/readaloud/internal/recorder"
	"github.com/glizzus/readaloud/internal/upload"
	"github.com/glizzus/readaloud/internal/wav"
)

const (
	StatusIdle             = "Ready to begin"
	StatusRequesting       = "Requesting microphone access..."
	StatusReady            = "Ready to begin - Microphone access granted"
	StatusRecording        = "Recording... Speak clearly."
	StatusProcessing       = "Processing..."
	StatusEncoded          = "Recording ready to upload."
	StatusUploading        = "Uploading response..."
	StatusUploaded         = "Response uploaded."
	StatusDiscarded        = "Recording discarded."
	StatusClosed           = "Microphone released."
	StatusTooShort         = "Recording was too short. Please try again."
	StatusConversionFailed = "Error converting to WAV. Please try again."
	StatusEncoderDefect    = "Internal error while encoding audio."
)

// StatusForError renders err as the short message shown to the user.
func StatusForError(err error) string {
	var (
		denied    *mic.PermissionDeniedError
		decodeErr *decode.Error
		invariant *wav.InvariantError
		uploadErr *upload.Error
	)

	switch {
	case errors.As(err, &denied):
		return fmt.Sprintf("Error: %s. Please check microphone permissions", denied.Error())
	case errors.Is(err, recorder.ErrEmptyRecording):
		return StatusTooShort
	case errors.As(err, &decodeErr):
		return StatusConversionFailed
	case errors.As(err, &invariant):
		return StatusEncoderDefect
	case errors.As(err, &uploadErr):
		return "Error: " + uploadErr.Error()
	default:
		return "Error: " + err.Error()
	}
}
