// Package assessment walks a user through the spoken-reading questions, one
// recording per question.
package assessment

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/glizzus/readaloud/internal/pipeline"
	"github.com/glizzus/readaloud/internal/repository"
	"github.com/glizzus/readaloud/internal/upload"
)

// DefaultQuestions are the sentences read aloud, in order.
var DefaultQuestions = []string{
	"I like to play outside with my friends.",
	"My favorite subject in school is science.",
	"The sun is shining, and the sky is blue.",
	"I enjoy reading books about adventure.",
	"Today, I had breakfast with my family.",
}

const (
	StatusNextQuestion = "Next question ready."
	StatusCompleted    = "All questions completed!"
)

var (
	ErrNoQuestions = errors.New("assessment needs at least one question")
	ErrCompleted   = errors.New("all questions have been answered")
)

type Assessment struct {
	pipeline  *pipeline.Pipeline
	questions []string
	repo      repository.ResponseRepository

	mu          sync.Mutex
	index       int
	responses   []repository.Response
	afterUpload string
}

// New starts at the first question. A nil repo keeps responses in memory.
func New(p *pipeline.Pipeline, questions []string, repo repository.ResponseRepository) (*Assessment, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if repo == nil {
		repo = repository.NewMemoryResponseRepository()
	}
	return &Assessment{
		pipeline:  p,
		questions: append([]string(nil), questions...),
		repo:      repo,
	}, nil
}

// Current returns the question being asked. ok is false once every question
// has been answered.
func (a *Assessment) Current() (index int, question string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.index >= len(a.questions) {
		return a.index, "", false
	}
	return a.index, a.questions[a.index], true
}

func (a *Assessment) Len() int {
	return len(a.questions)
}

func (a *Assessment) Completed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.index >= len(a.questions)
}

// Status is the pipeline status, except that a successful upload reports
// the next step of the assessment.
func (a *Assessment) Status() string {
	status := a.pipeline.Status()
	if status != pipeline.StatusUploaded {
		return status
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.afterUpload == "" {
		return status
	}
	return a.afterUpload
}

func (a *Assessment) Responses() []repository.Response {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]repository.Response(nil), a.responses...)
}

// Record starts recording an answer to the current question.
func (a *Assessment) Record() (string, error) {
	index, question, ok := a.Current()
	if !ok {
		return "", ErrCompleted
	}
	return a.pipeline.Start(pipeline.Task{
		QuestionIndex: index,
		Question:      question,
		Filename:      upload.FilenameForQuestion(index),
	})
}

// Retake throws away the current answer so it can be recorded again.
func (a *Assessment) Retake() error {
	return a.pipeline.Discard()
}

// Stop ends the recording and prepares it for Upload.
func (a *Assessment) Stop() (pipeline.BracketInfo, error) {
	return a.pipeline.Stop()
}

// Submit stops the recording and uploads it. On success the answer is saved
// and the assessment moves to the next question.
func (a *Assessment) Submit(ctx context.Context) (*upload.Result, error) {
	if _, err := a.Stop(); err != nil {
		return nil, err
	}
	return a.Upload(ctx)
}

// Upload sends the stopped recording, or retries a failed upload.
func (a *Assessment) Upload(ctx context.Context) (*upload.Result, error) {
	result, err := a.pipeline.Upload(ctx)
	if err != nil {
		return nil, err
	}

	info, _ := a.pipeline.Bracket()
	response := repository.Response{
		BracketID:     info.ID,
		UserID:        a.pipeline.UserID(),
		QuestionIndex: info.Task.QuestionIndex,
		Question:      info.Task.Question,
		Transcription: result.Transcription,
		WAVBytes:      info.WAVBytes,
	}
	if err := a.repo.Save(ctx, response); err != nil {
		slog.Error(
			"failed to save response",
			slog.String("bracketID", info.ID),
			slog.Int("questionIndex", info.Task.QuestionIndex),
			slog.Any("error", err),
		)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.responses = append(a.responses, response)
	if info.Task.QuestionIndex == a.index {
		a.index++
	}
	if a.index < len(a.questions) {
		a.afterUpload = StatusNextQuestion
	} else {
		a.afterUpload = StatusCompleted
	}
	return result, nil
}
