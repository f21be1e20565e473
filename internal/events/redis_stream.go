package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStreamSink appends lifecycle events to a Redis stream for downstream
// consumers. The stream is a feed, never read back by the ticket engine.
type RedisStreamSink struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewRedisStreamSink builds a sink. maxLen <= 0 leaves the stream untrimmed.
func NewRedisStreamSink(client redis.Cmdable, stream string, maxLen int64) *RedisStreamSink {
	return &RedisStreamSink{client: client, stream: stream, maxLen: maxLen}
}

// Register subscribes the sink to every lifecycle event.
func (s *RedisStreamSink) Register(d Dispatcher) {
	SubscribeAll(d, s.Handle)
}

// Handle appends one event.
func (s *RedisStreamSink) Handle(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: []interface{}{
			"event_id", event.ID,
			"event", string(event.Type),
			"channel_id", event.ChannelID.String(),
			"actor_id", event.ActorID.String(),
			"creator_id", event.State.Creator.String(),
			"claimant_id", event.State.Claimant.String(),
			"occurred_at", event.Timestamp.UTC().Format(time.RFC3339Nano),
			"payload", string(payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
