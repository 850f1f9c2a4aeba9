package queue

import "github.com/Rahul2570089/mp4-2-mp3/internal/blobstore"

// Job is what we push to Redis Streams. No bytes here—workers fetch
// payloads from the blob store by ID.
//
// A queued Job is never mutated; a stage that advances the pipeline
// publishes a fresh Job value to the next stream. Unknown JSON fields
// are ignored on decode, so added fields stay forward compatible.
type Job struct {
	SourceBlobID  blobstore.ID  `json:"source_blob_id"`
	DerivedBlobID *blobstore.ID `json:"derived_blob_id,omitempty"` // set once the audio exists
	Owner         string        `json:"owner"`
}
