package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rahul2570089/mp4-2-mp3/internal/blobstore"
	"github.com/Rahul2570089/mp4-2-mp3/internal/queue"
)

type flakyDeliverer struct {
	failures  int
	delivered []string
}

func (d *flakyDeliverer) Deliver(_ context.Context, owner string, _ blobstore.ID) error {
	if d.failures > 0 {
		d.failures--
		return errors.New("smtp connection refused")
	}
	d.delivered = append(d.delivered, owner)
	return nil
}

func TestNotifyDeliversToOwner(t *testing.T) {
	derived := blobstore.ID("mp3-blob")
	d := &flakyDeliverer{}
	w := NewNotify(d)

	err := w.Process(context.Background(), queue.Job{DerivedBlobID: &derived, Owner: "user@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user@example.com"}, d.delivered)
}

func TestNotifyFailureIsRetryable(t *testing.T) {
	derived := blobstore.ID("mp3-blob")
	d := &flakyDeliverer{failures: 1}
	w := NewNotify(d)
	job := queue.Job{DerivedBlobID: &derived, Owner: "user@example.com"}

	err := w.Process(context.Background(), job)
	require.Error(t, err)
	var perm *backoff.PermanentError
	assert.False(t, errors.As(err, &perm))
	assert.Empty(t, d.delivered, "nothing delivered on the failed attempt")

	// Redelivery after the failed attempt.
	require.NoError(t, w.Process(context.Background(), job))
	assert.Equal(t, []string{"user@example.com"}, d.delivered, "exactly one delivery observed")
}

func TestNotifyRejectsJobWithoutDerivedBlob(t *testing.T) {
	w := NewNotify(&flakyDeliverer{})

	err := w.Process(context.Background(), queue.Job{Owner: "user@example.com"})
	require.Error(t, err)
	var perm *backoff.PermanentError
	assert.True(t, errors.As(err, &perm), "a malformed job can never succeed, it must dead-letter")
}
