package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/glizzus/readaloud/internal/upload"
	"github.com/glizzus/readaloud/internal/wav"
)

// Submission is one upload received by a TranscriptionServer.
type Submission struct {
	Filename    string
	ContentType string
	Header      wav.Header
	Audio       []byte
	Question    string
	UserID      string
}

// TranscriptionServer stands in for the transcription service. It validates
// every WAV it receives and answers with the question text as the
// transcription.
type TranscriptionServer struct {
	*httptest.Server

	mu          sync.Mutex
	submissions []Submission
	failNext    int
}

func NewTranscriptionServer(t *testing.T) *TranscriptionServer {
	t.Helper()
	s := &TranscriptionServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// FailNext makes the next n uploads fail with 500.
func (s *TranscriptionServer) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

func (s *TranscriptionServer) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.submissions...)
}

func (s *TranscriptionServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.failNext > 0 {
		s.failNext--
		s.mu.Unlock()
		http.Error(w, "transcriber unavailable", http.StatusInternalServerError)
		return
	}
	s.mu.Unlock()

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, fileHeader, err := r.FormFile(upload.FieldAudio)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	header, err := wav.ParseHeader(audio)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	sub := Submission{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Header:      header,
		Audio:       audio,
		Question:    r.FormValue(upload.FieldQuestion),
		UserID:      r.FormValue(upload.FieldUserID),
	}
	s.mu.Lock()
	s.submissions = append(s.submissions, sub)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transcription": sub.Question,
		"durationMs":    header.Duration().Milliseconds(),
	})
}
