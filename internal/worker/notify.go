package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"

	"github.com/Rahul2570089/mp4-2-mp3/internal/blobstore"
	"github.com/Rahul2570089/mp4-2-mp3/internal/queue"
)

type Deliverer interface {
	Deliver(ctx context.Context, owner string, ref blobstore.ID) error
}

// Notify consumes notification jobs and tells the owner their mp3 is
// ready. Delivery failures are retryable: the message is redelivered,
// and a duplicate email is an accepted cost of at-least-once.
type Notify struct {
	deliverer Deliverer
}

func NewNotify(d Deliverer) *Notify {
	return &Notify{deliverer: d}
}

func (w *Notify) Process(ctx context.Context, job queue.Job) error {
	if job.DerivedBlobID == nil {
		return backoff.Permanent(errors.New("notification job has no derived blob id"))
	}
	if err := w.deliverer.Deliver(ctx, job.Owner, *job.DerivedBlobID); err != nil {
		return fmt.Errorf("deliver to %s: %w", job.Owner, err)
	}
	return nil
}
