package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Rahul2570089/mp4-2-mp3/internal/config"
)

// Handler processes one decoded Job. A nil return acknowledges the
// message. An error wrapped with backoff.Permanent routes the message
// straight to the dead-letter stream; any other error schedules a retry
// until the attempt budget is spent, then dead-letters it.
type Handler func(ctx context.Context, job Job) error

// streamClient is the part of the redis client API the consumer uses;
// redis.UniversalClient satisfies it.
type streamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// readRetryDelay spaces out XREADGROUP retries while Redis is unreachable.
const readRetryDelay = time.Second

type Consumer struct {
	rc      streamClient
	cfg     config.WorkerConfig
	handler Handler
}

func NewConsumer(rc streamClient, cfg config.WorkerConfig, h Handler) *Consumer {
	if cfg.Consumer == "" {
		host, _ := os.Hostname()
		cfg.Consumer = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Consumer{rc: rc, cfg: cfg, handler: h}
}

func (c *Consumer) EnsureGroup(ctx context.Context) error {
	// Without MkStream, Redis would error out if you try to create a group before any messages exist in the stream.
	err := c.rc.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	// Redis returns BUSYGROUP if the group already exists therefore we check for other errors
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("failed to ensure Redis group: %w", err)
	}

	log.Printf("[%s] starting consumer group=%s workers=%d",
		c.cfg.Stream, c.cfg.Group, c.cfg.Workers,
	)

	go c.claimLoop(ctx)

	errCh := make(chan error, c.cfg.Workers)
	for i := 0; i < c.cfg.Workers; i++ {
		id := i
		go func() {
			err := c.loop(ctx)
			if err != nil {
				log.Printf("[%s] worker #%d stopped with error: %v", c.cfg.Stream, id, err)
			}
			errCh <- err
		}()
	}

	select {
	case <-ctx.Done():
		log.Printf("[%s] context canceled, stopping all workers", c.cfg.Stream)
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker loop exited with error: %w", err)
		}
		return nil
	}
}

// claimMinIdle is how long a pending message must sit untouched before we
// take it over, so we don't steal messages still being processed by slow
// workers.
func (c *Consumer) claimMinIdle() time.Duration {
	minIdle := 30 * time.Second
	if c.cfg.BlockTimeout > 0 {
		if t := c.cfg.BlockTimeout * 6; t > minIdle {
			minIdle = t
		}
	}
	return minIdle
}

// claimLoop adopts stranded pending messages at startup and keeps scanning
// while the consumer runs, so a message stranded mid-run (a peer crashed, a
// requeue XAdd failed) is redelivered without waiting for a restart.
func (c *Consumer) claimLoop(ctx context.Context) {
	c.autoClaim(ctx)

	t := time.NewTicker(c.claimMinIdle())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.autoClaim(ctx)
		}
	}
}

// autoClaim scans the consumer group for messages that were delivered but
// never acknowledged — a worker crashed or was killed before XACK. XAUTOCLAIM
// moves them into this consumer's PEL, and since XREADGROUP with ">" never
// revisits a consumer's own pending entries, every claimed message is handled
// right here. This is what makes crash-before-ack safe.
func (c *Consumer) autoClaim(ctx context.Context) {
	next := "0-0"
	for {
		msgs, start, err := c.rc.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.cfg.Stream,
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			MinIdle:  c.claimMinIdle(),
			Start:    next,
			Count:    100,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[%s] autoclaim failed: %v", c.cfg.Stream, err)
			}
			return
		}
		for _, m := range msgs {
			c.handle(ctx, m)
		}
		if len(msgs) == 0 || start == "0-0" {
			return
		}
		next = start
	}
}

func (c *Consumer) loop(ctx context.Context) error {
	for {
		// XREADGROUP marks delivered messages as pending (PEL) for this
		// consumer; they stay pending until we XACK. If this process dies
		// before the ack, a claim loop somewhere picks them up.
		streams, err := c.rc.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, ">"},
			Count:    1,
			Block:    c.cfg.BlockTimeout,
		}).Result()
		if err != nil && err != redis.Nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[%s] read failed: %v", c.cfg.Stream, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readRetryDelay):
			}
			continue
		}
		for _, s := range streams {
			for _, m := range s.Messages {
				c.handle(ctx, m)
			}
		}
	}
}

// handle runs the handler for one message and settles it. A message is
// acknowledged only after a durable outcome exists for it: the handler
// succeeded, a retry copy was XADDed, or a dead-letter copy was XADDed.
// Crashing anywhere before that leaves the message pending for redelivery.
func (c *Consumer) handle(ctx context.Context, m redis.XMessage) {
	raw, ok := m.Values["payload"].(string)
	if !ok {
		c.deadLetter(ctx, m.ID, "", 0, "message has no payload")
		return
	}

	job, err := decodeJob(raw)
	if err != nil {
		c.deadLetter(ctx, m.ID, raw, 0, fmt.Sprintf("undecodable payload: %v", err))
		return
	}
	attempt := toInt(m.Values["attempt"])

	err = c.handler(ctx, job)
	if err == nil {
		c.ack(ctx, m.ID)
		return
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		c.deadLetter(ctx, m.ID, raw, attempt, err.Error())
		return
	}
	if attempt+1 >= c.cfg.MaxAttempts {
		c.deadLetter(ctx, m.ID, raw, attempt, fmt.Sprintf("attempts exhausted: %v", err))
		return
	}

	log.Printf("[%s] message %s failed (attempt %d): %v", c.cfg.Stream, m.ID, attempt, err)

	// simple exponential backoff requeue
	delay := c.cfg.BackoffBase << attempt
	time.AfterFunc(delay, func() {
		c.requeue(raw, attempt+1, m.ID)
	})
}

func (c *Consumer) requeue(raw string, attempt int, msgID string) {
	ctx := context.Background()
	err := c.rc.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream,
		MaxLen: c.cfg.MaxLen,
		Values: map[string]any{
			"payload": raw,
			"attempt": attempt,
		},
	}).Err()
	if err != nil {
		// Leave the original pending; autoClaim will redeliver it.
		log.Printf("[%s] requeue of %s failed: %v", c.cfg.Stream, msgID, err)
		sentry.CaptureException(err)
		return
	}
	c.ack(ctx, msgID)
}

func (c *Consumer) deadLetter(ctx context.Context, msgID, raw string, attempt int, reason string) {
	err := c.rc.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream + ":dead",
		Values: map[string]any{
			"payload": raw,
			"attempt": attempt,
			"reason":  reason,
		},
	}).Err()
	if err != nil {
		// Leave the original pending rather than dropping it.
		log.Printf("[%s] dead-letter of %s failed: %v", c.cfg.Stream, msgID, err)
		sentry.CaptureException(err)
		return
	}

	log.Printf("[%s] message %s dead-lettered: %s", c.cfg.Stream, msgID, reason)
	sentry.CaptureMessage(fmt.Sprintf("%s: message dead-lettered: %s", c.cfg.Stream, reason))
	c.ack(ctx, msgID)
}

func (c *Consumer) ack(ctx context.Context, msgID string) {
	if err := c.rc.XAck(ctx, c.cfg.Stream, c.cfg.Group, msgID).Err(); err != nil {
		// Worst case the message is redelivered and the handler's
		// replay tolerance absorbs it.
		log.Printf("[%s] ack of %s failed: %v", c.cfg.Stream, msgID, err)
	}
}

func decodeJob(raw string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case string:
		var x int
		fmt.Sscanf(t, "%d", &x)
		return x
	default:
		return 0
	}
}
