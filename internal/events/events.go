// Package events reports what happened to each recording bracket.
package events

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/glizzus/readaloud/internal/config"
	"github.com/redis/go-redis/v9"
)

type BracketEvent struct {
	BracketID     string
	UserID        string
	QuestionIndex int
	Outcome       string
	Status        string
	CaptureBytes  int
	WAVBytes      int
	Transcription string
	Error         string
	At            time.Time
}

func (e BracketEvent) values() map[string]any {
	return map[string]any{
		"bracketID":     e.BracketID,
		"userID":        e.UserID,
		"questionIndex": strconv.Itoa(e.QuestionIndex),
		"outcome":       e.Outcome,
		"status":        e.Status,
		"captureBytes":  strconv.Itoa(e.CaptureBytes),
		"wavBytes":      strconv.Itoa(e.WAVBytes),
		"transcription": e.Transcription,
		"error":         e.Error,
		"at":            e.At.Format(time.RFC3339Nano),
	}
}

type Publisher interface {
	Publish(ctx context.Context, events ...BracketEvent) error
}

// LogPublisher writes events to the default slog logger.
type LogPublisher struct{}

func (p *LogPublisher) Publish(ctx context.Context, events ...BracketEvent) error {
	for _, e := range events {
		slog.InfoContext(
			ctx,
			"bracket finished",
			slog.String("bracketID", e.BracketID),
			slog.String("userID", e.UserID),
			slog.Int("questionIndex", e.QuestionIndex),
			slog.String("outcome", e.Outcome),
			slog.Int("wavBytes", e.WAVBytes),
			slog.String("error", e.Error),
		)
	}
	return nil
}

var _ Publisher = (*LogPublisher)(nil)

// RedisPublisher appends events to a Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream}
}

// NewRedisClientFromConfig connects and pings the server before returning.
func NewRedisClientFromConfig(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func NewRedisPublisherFromConfig(ctx context.Context, cfg *config.RedisConfig) (*RedisPublisher, error) {
	client, err := NewRedisClientFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisPublisher(client, cfg.Stream), nil
}

func (p *RedisPublisher) Publish(ctx context.Context, events ...BracketEvent) error {
	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range events {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: p.stream,
				Values: e.values(),
			})
		}
		return nil
	})
	return err
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

var _ Publisher = (*RedisPublisher)(nil)

// MemoryPublisher keeps events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []BracketEvent
}

func (p *MemoryPublisher) Publish(ctx context.Context, events ...BracketEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *MemoryPublisher) Events() []BracketEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]BracketEvent(nil), p.events...)
}

var _ Publisher = (*MemoryPublisher)(nil)
