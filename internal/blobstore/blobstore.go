package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ID identifies a stored blob. IDs are derived from the blob's content,
// so writing the same bytes twice lands on the same key.
type ID string

var ErrNotFound = errors.New("blob not found")

// Store is the contract shared by the S3 adapter and the in-memory
// implementation used in tests.
type Store interface {
	// Put writes the payload and returns its content-derived ID.
	Put(ctx context.Context, data []byte, contentType string) (ID, error)
	// Get returns the payload and its content type, or ErrNotFound.
	Get(ctx context.Context, id ID) ([]byte, string, error)
	// Delete removes the payload. Deleting an unknown ID is not an error
	// for the S3 adapter; the in-memory store reports ErrNotFound.
	Delete(ctx context.Context, id ID) error
}

// NewID hashes the payload into a stable blob ID.
func NewID(data []byte) ID {
	sum := sha256.Sum256(data)
	return ID(base64.RawURLEncoding.EncodeToString(sum[:]))
}
