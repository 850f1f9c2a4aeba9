package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Producer struct {
	r      redis.UniversalClient
	stream string
	maxLen int64
}

func NewProducer(r redis.UniversalClient, stream string, maxLen int64) *Producer {
	return &Producer{r: r, stream: stream, maxLen: maxLen}
}

// Publish encodes the job as JSON and appends it to the stream. Once
// XADD returns nil the message is in the stream; callers rely on that
// before acknowledging or deleting anything of their own.
func (p *Producer) Publish(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	err = p.r.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Values: map[string]any{
			"payload": string(raw),
			"attempt": 0,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.stream, err)
	}
	return nil
}
