package use_case

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Rahul2570089/mp4-2-mp3/internal/blobstore"
	"github.com/Rahul2570089/mp4-2-mp3/internal/queue"
)

// ErrUnsupportedMedia rejects payloads that are not video.
var ErrUnsupportedMedia = errors.New("unsupported media type")

type BlobStore interface {
	Put(ctx context.Context, data []byte, contentType string) (blobstore.ID, error)
	Get(ctx context.Context, id blobstore.ID) ([]byte, string, error)
	Delete(ctx context.Context, id blobstore.ID) error
}

type Publisher interface {
	Publish(ctx context.Context, job queue.Job) error
}

type OrphanLedger interface {
	Record(ctx context.Context, id blobstore.ID, reason string)
}

type useCase struct {
	blobs    BlobStore
	convertQ Publisher
	orphans  OrphanLedger
}

func New(blobs BlobStore, convertQ Publisher, orphans OrphanLedger) *useCase {
	return &useCase{
		blobs:    blobs,
		convertQ: convertQ,
		orphans:  orphans,
	}
}

// Upload ingests one video: store the payload, then announce a conversion
// job for it. When Upload returns without error, a job referencing a
// durably stored blob is on the conversion stream.
func (c *useCase) Upload(ctx context.Context, file io.Reader, owner string) (blobstore.ID, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "video/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, mime.String())
	}

	return c.storeAndPublish(ctx, data, mime.String(), owner)
}

// storeAndPublish is the write-then-announce step: put the blob, publish
// the job pointing at it, and compensate with a delete if the publish
// fails so no unreferenced blob is left behind. If the compensating
// delete itself fails, the blob is recorded as an orphan and the caller
// still sees the original publish error.
func (c *useCase) storeAndPublish(ctx context.Context, data []byte, contentType, owner string) (blobstore.ID, error) {
	id, err := c.blobs.Put(ctx, data, contentType)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}

	job := queue.Job{SourceBlobID: id, Owner: owner}
	if err := c.convertQ.Publish(ctx, job); err != nil {
		if delErr := c.blobs.Delete(ctx, id); delErr != nil {
			c.orphans.Record(ctx, id, "compensating delete after failed publish: "+delErr.Error())
		}
		return "", fmt.Errorf("publish conversion job: %w", err)
	}

	return id, nil
}

// Download serves a derived blob back by ID. blobstore.ErrNotFound passes
// through so the transport can answer 404 rather than 500.
func (c *useCase) Download(ctx context.Context, id blobstore.ID) ([]byte, string, error) {
	data, contentType, err := c.blobs.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return data, contentType, nil
}
