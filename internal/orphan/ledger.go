// Package orphan records blobs that a compensating delete failed to
// remove. An entry here means durable storage holds bytes nothing
// references anymore; an operator (or a cron against Keys) cleans them
// up out of band. Recording is best effort and never surfaces to the
// caller that hit the original failure.
package orphan

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Rahul2570089/mp4-2-mp3/internal/blobstore"
	"github.com/Rahul2570089/mp4-2-mp3/internal/cache"
)

const retention = 7 * 24 * time.Hour

type Ledger struct {
	cache *cache.Cache
}

func NewLedger(c *cache.Cache) *Ledger {
	return &Ledger{cache: c}
}

func (l *Ledger) Record(ctx context.Context, id blobstore.ID, reason string) {
	log.Printf("[orphan] blob %s orphaned: %s", id, reason)
	sentry.CaptureMessage("orphaned blob " + string(id) + ": " + reason)

	if err := l.cache.Store(ctx, string(id), retention, reason); err != nil {
		log.Printf("[orphan] failed to record %s: %v", id, err)
	}
}

// List returns the IDs currently in the ledger.
func (l *Ledger) List(ctx context.Context) ([]blobstore.ID, error) {
	keys, err := l.cache.Keys(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]blobstore.ID, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, blobstore.ID(k))
	}
	return ids, nil
}
