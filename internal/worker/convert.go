package worker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cenkalti/backoff/v5"

	"github.com/Rahul2570089/mp4-2-mp3/internal/blobstore"
	"github.com/Rahul2570089/mp4-2-mp3/internal/extractor"
	"github.com/Rahul2570089/mp4-2-mp3/internal/queue"
)

type BlobStore interface {
	Get(ctx context.Context, id blobstore.ID) ([]byte, string, error)
	Put(ctx context.Context, data []byte, contentType string) (blobstore.ID, error)
	Delete(ctx context.Context, id blobstore.ID) error
}

type Publisher interface {
	Publish(ctx context.Context, job queue.Job) error
}

type OrphanLedger interface {
	Record(ctx context.Context, id blobstore.ID, reason string)
}

type Extractor interface {
	Extract(ctx context.Context, video []byte) ([]byte, error)
}

// Convert consumes conversion jobs: fetch the source video, extract its
// audio track, store the mp3, announce it on the notification stream,
// then drop the source.
type Convert struct {
	store     BlobStore
	extractor Extractor
	notifyQ   Publisher
	orphans   OrphanLedger
}

func NewConvert(store BlobStore, ex Extractor, notifyQ Publisher, orphans OrphanLedger) *Convert {
	return &Convert{
		store:     store,
		extractor: ex,
		notifyQ:   notifyQ,
		orphans:   orphans,
	}
}

// Process handles one conversion job. Returning nil acknowledges the
// message; any durable effect happens before the corresponding announce,
// so a crash at any point is recovered by redelivery.
func (w *Convert) Process(ctx context.Context, job queue.Job) error {
	src, _, err := w.store.Get(ctx, job.SourceBlobID)
	if errors.Is(err, blobstore.ErrNotFound) {
		// The source is gone: a previous delivery of this job already
		// ran to completion and deleted it. Nothing left to do.
		log.Printf("[convert] source %s already processed, skipping", job.SourceBlobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}

	audio, err := w.extractor.Extract(ctx, src)
	if err != nil {
		if errors.Is(err, extractor.ErrTransform) {
			// Retrying the same payload cannot succeed.
			return backoff.Permanent(err)
		}
		return err
	}

	derivedID, err := w.store.Put(ctx, audio, "audio/mpeg")
	if err != nil {
		return fmt.Errorf("store audio: %w", err)
	}

	next := queue.Job{
		SourceBlobID:  job.SourceBlobID,
		DerivedBlobID: &derivedID,
		Owner:         job.Owner,
	}
	if err := w.notifyQ.Publish(ctx, next); err != nil {
		// The audio exists but nothing announces it; delete it so the
		// redelivered job starts clean.
		if delErr := w.store.Delete(ctx, derivedID); delErr != nil {
			w.orphans.Record(ctx, derivedID, "compensating delete after failed publish: "+delErr.Error())
		}
		return fmt.Errorf("publish notification: %w", err)
	}

	// The notification is durably queued; failing the whole job over a
	// source cleanup error would only produce duplicate notifications.
	if err := w.store.Delete(ctx, job.SourceBlobID); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		w.orphans.Record(ctx, job.SourceBlobID, "source cleanup failed: "+err.Error())
	}

	return nil
}
