package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConsumer reads bracket events from a stream as part of a consumer
// group. Every event returned by Read has been acknowledged.
type RedisConsumer struct {
	client *redis.Client
	stream string
	group  string
	name   string
}

// NewRedisConsumer creates the group, and the stream if missing. An existing
// group is reused.
func NewRedisConsumer(ctx context.Context, client *redis.Client, stream, group, name string) (*RedisConsumer, error) {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group %s: %w", group, err)
	}
	return &RedisConsumer{client: client, stream: stream, group: group, name: name}, nil
}

// MalformedEventError lists stream entries that could not be parsed. They
// are left unacknowledged in the group's pending list.
type MalformedEventError struct {
	IDs []string
	Err error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("%d malformed events (first %s): %v", len(e.IDs), e.IDs[0], e.Err)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

var _ error = (*MalformedEventError)(nil)

// Read waits up to block for new events. It returns no events and no error
// when nothing arrived in time. Well-formed events are returned and
// acknowledged even when others in the batch are malformed; those are
// reported through a *MalformedEventError.
func (c *RedisConsumer) Read(ctx context.Context, count int64, block time.Duration) ([]BracketEvent, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var (
		out       []BracketEvent
		ids       []string
		malformed *MalformedEventError
	)
	for _, s := range streams {
		for _, msg := range s.Messages {
			e, err := parseEvent(msg.Values)
			if err != nil {
				if malformed == nil {
					malformed = &MalformedEventError{Err: err}
				}
				malformed.IDs = append(malformed.IDs, msg.ID)
				continue
			}
			ids = append(ids, msg.ID)
			out = append(out, e)
		}
	}
	if len(ids) > 0 {
		if err := c.client.XAck(ctx, c.stream, c.group, ids...).Err(); err != nil {
			return nil, err
		}
	}
	if malformed != nil {
		return out, malformed
	}
	return out, nil
}

func parseEvent(values map[string]any) (BracketEvent, error) {
	str := func(key string) string {
		s, _ := values[key].(string)
		return s
	}
	num := func(key string) (int, error) {
		s := str(key)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("field %s: %w", key, err)
		}
		return n, nil
	}

	e := BracketEvent{
		BracketID:     str("bracketID"),
		UserID:        str("userID"),
		Outcome:       str("outcome"),
		Status:        str("status"),
		Transcription: str("transcription"),
		Error:         str("error"),
	}
	var err error
	if e.QuestionIndex, err = num("questionIndex"); err != nil {
		return BracketEvent{}, err
	}
	if e.CaptureBytes, err = num("captureBytes"); err != nil {
		return BracketEvent{}, err
	}
	if e.WAVBytes, err = num("wavBytes"); err != nil {
		return BracketEvent{}, err
	}
	if at := str("at"); at != "" {
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return BracketEvent{}, fmt.Errorf("field at: %w", err)
		}
	}
	return e, nil
}
