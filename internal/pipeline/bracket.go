package pipeline

import (
	"fmt"
	"time"

	"github.com/glizzus/readaloud/internal/upload"
	"github.com/glizzus/readaloud/internal/wav"
)

type BracketState int

const (
	BracketRecording BracketState = iota
	BracketProcessing
	BracketEncoded
	BracketUploading
	BracketUploaded
	BracketUploadFailed
	BracketFailed
	BracketDiscarded
)

func (s BracketState) String() string {
	switch s {
	case BracketRecording:
		return "recording"
	case BracketProcessing:
		return "processing"
	case BracketEncoded:
		return "encoded"
	case BracketUploading:
		return "uploading"
	case BracketUploaded:
		return "uploaded"
	case BracketUploadFailed:
		return "upload failed"
	case BracketFailed:
		return "failed"
	case BracketDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("BracketState(%d)", int(s))
	}
}

func (s BracketState) terminal() bool {
	return s == BracketUploaded || s == BracketFailed || s == BracketDiscarded
}

// busy reports whether a new bracket must wait for this one.
func (s BracketState) busy() bool {
	return s == BracketRecording || s == BracketProcessing || s == BracketUploading
}

// Task describes what the user is asked to read. An empty Filename uploads
// as upload.DefaultFilename.
type Task struct {
	QuestionIndex int
	Question      string
	Filename      string
}

type bracket struct {
	id           string
	task         Task
	state        BracketState
	captureBytes int
	duration     time.Duration
	wavBytes     int
	container    wav.Container
	result       *upload.Result
	err          error
}

// BracketInfo is a snapshot of the current bracket.
type BracketInfo struct {
	ID            string
	Task          Task
	State         BracketState
	CaptureBytes  int
	Duration      time.Duration
	WAVBytes      int
	Transcription string
	Err           error
}

func (b *bracket) info() BracketInfo {
	info := BracketInfo{
		ID:           b.id,
		Task:         b.task,
		State:        b.state,
		CaptureBytes: b.captureBytes,
		Duration:     b.duration,
		WAVBytes:     b.wavBytes,
		Err:          b.err,
	}
	if b.result != nil {
		info.Transcription = b.result.Transcription
	}
	return info
}
