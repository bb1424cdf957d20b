package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Bus publishes run lifecycle events to Redis Streams. Each run gets its
// own stream plus a copy on the firehose stream shared by all runs.
type Bus struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// New creates a Redis-backed event bus.
func New(redisURL string, logger *zap.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Bus{rdb: rdb, logger: logger}, nil
}

// Event is one run lifecycle notification.
type Event struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"`
	Agent     string    `json:"agent,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventRunStarted   = "run_started"
	EventAgentMessage = "agent_message"
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"
)

const (
	streamPrefix = "adele:runs:"
	streamAll    = "adele:runs:all"
)

// Publish sends an event to the run's stream and the firehose.
func (b *Bus) Publish(ctx context.Context, ev *Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	for _, stream := range []string{streamPrefix + ev.RunID, streamAll} {
		_, err = b.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			Values: map[string]interface{}{
				"data": string(data),
			},
		}).Result()
		if err != nil {
			return fmt.Errorf("publish to %s: %w", stream, err)
		}
	}

	b.logger.Debug("published event",
		zap.String("run", ev.RunID),
		zap.String("type", ev.Type),
		zap.String("agent", ev.Agent))
	return nil
}

// Subscribe listens for events on one run's stream.
// Returns a channel that emits events. Cancel the context to stop.
func (b *Bus) Subscribe(ctx context.Context, runID string) <-chan *Event {
	ch := make(chan *Event, 16)
	stream := streamPrefix + runID

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   10,
				Block:   time.Second * 2,
			}).Result()

			if err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					return
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev Event
					if json.Unmarshal([]byte(data), &ev) == nil {
						ch <- &ev
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (b *Bus) Close() error {
	return b.rdb.Close()
}
