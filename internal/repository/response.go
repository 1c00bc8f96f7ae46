package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Response is one accepted answer to an assessment question.
type Response struct {
	BracketID     string
	UserID        string
	QuestionIndex int
	Question      string
	Transcription string
	WAVBytes      int
	RecordedAt    time.Time
}

var ErrInvalidResponse = errors.New("response needs a bracket ID and a user ID")

func (r Response) validate() error {
	if r.BracketID == "" || r.UserID == "" || r.QuestionIndex < 0 {
		return ErrInvalidResponse
	}
	return nil
}

type ResponseRepository interface {
	Save(ctx context.Context, response Response) error
	// ListLatest returns the most recent response per question for userID,
	// ordered by question index.
	ListLatest(ctx context.Context, userID string) ([]Response, error)
}

type PostgresResponseRepository struct {
	db *pgxpool.Pool
}

func NewPostgresResponseRepository(db *pgxpool.Pool) *PostgresResponseRepository {
	return &PostgresResponseRepository{db: db}
}

func responseToRowParams(r Response) []any {
	return []any{
		r.BracketID,
		r.UserID,
		r.QuestionIndex,
		r.Question,
		r.Transcription,
		r.WAVBytes,
		r.RecordedAt,
	}
}

func (r *PostgresResponseRepository) Save(ctx context.Context, response Response) error {
	if err := response.validate(); err != nil {
		return err
	}
	if response.RecordedAt.IsZero() {
		response.RecordedAt = time.Now().UTC()
	}

	const query = `
	INSERT INTO assessment_responses (bracket_id, user_id, question_index, question, transcription, wav_bytes, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (bracket_id) DO UPDATE SET
		transcription = EXCLUDED.transcription,
		wav_bytes = EXCLUDED.wav_bytes,
		recorded_at = EXCLUDED.recorded_at
	`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", slog.Any("error", err))
		}
	}()

	if _, err := tx.Exec(ctx, query, responseToRowParams(response)...); err != nil {
		return fmt.Errorf("failed to save response: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresResponseRepository) ListLatest(ctx context.Context, userID string) ([]Response, error) {
	const query = `
	SELECT DISTINCT ON (question_index)
		bracket_id, user_id, question_index, question, transcription, wav_bytes, recorded_at
	FROM assessment_responses
	WHERE user_id = $1
	ORDER BY question_index, recorded_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}

	responses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Response, error) {
		var resp Response
		err := row.Scan(
			&resp.BracketID,
			&resp.UserID,
			&resp.QuestionIndex,
			&resp.Question,
			&resp.Transcription,
			&resp.WAVBytes,
			&resp.RecordedAt,
		)
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan responses: %w", err)
	}
	return responses, nil
}

var _ ResponseRepository = (*PostgresResponseRepository)(nil)

// MemoryResponseRepository is used when no database is configured.
type MemoryResponseRepository struct {
	mu        sync.Mutex
	responses map[string]Response
	now       func() time.Time
}

func NewMemoryResponseRepository() *MemoryResponseRepository {
	return &MemoryResponseRepository{
		responses: make(map[string]Response),
		now:       time.Now,
	}
}

func (r *MemoryResponseRepository) Save(ctx context.Context, response Response) error {
	if err := response.validate(); err != nil {
		return err
	}
	if response.RecordedAt.IsZero() {
		response.RecordedAt = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[response.BracketID] = response
	return nil
}

func (r *MemoryResponseRepository) ListLatest(ctx context.Context, userID string) ([]Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	latest := make(map[int]Response)
	for _, resp := range r.responses {
		if resp.UserID != userID {
			continue
		}
		if prev, ok := latest[resp.QuestionIndex]; !ok || resp.RecordedAt.After(prev.RecordedAt) {
			latest[resp.QuestionIndex] = resp
		}
	}

	out := make([]Response, 0, len(latest))
	for _, resp := range latest {
		out = append(out, resp)
	}
	slices.SortFunc(out, func(a, b Response) int {
		return a.QuestionIndex - b.QuestionIndex
	})
	return out, nil
}

var _ ResponseRepository = (*MemoryResponseRepository)(nil)
