package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rahul2570089/mp4-2-mp3/internal/blobstore"
	"github.com/Rahul2570089/mp4-2-mp3/internal/config"
)

func TestDecodeJob(t *testing.T) {
	job, err := decodeJob(`{"source_blob_id":"abc","owner":"user@example.com"}`)
	require.NoError(t, err)
	assert.Equal(t, blobstore.ID("abc"), job.SourceBlobID)
	assert.Nil(t, job.DerivedBlobID)
	assert.Equal(t, "user@example.com", job.Owner)
}

func TestDecodeJobIgnoresUnknownFields(t *testing.T) {
	job, err := decodeJob(`{"source_blob_id":"abc","owner":"user@example.com","added_later":42}`)
	require.NoError(t, err)
	assert.Equal(t, blobstore.ID("abc"), job.SourceBlobID)
}

func TestDecodeJobRejectsGarbage(t *testing.T) {
	_, err := decodeJob(`not json`)
	assert.Error(t, err)
}

func TestJobOmitsUnsetDerivedID(t *testing.T) {
	raw, err := json.Marshal(Job{SourceBlobID: "abc", Owner: "user@example.com"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "derived_blob_id")
}

func TestToInt(t *testing.T) {
	assert.Equal(t, 3, toInt(3))
	assert.Equal(t, 3, toInt(int64(3)))
	assert.Equal(t, 3, toInt("3"))
	assert.Equal(t, 0, toInt(nil))
	assert.Equal(t, 0, toInt("nope"))
}

// fakeStreams implements streamClient in memory so the consumer's settle
// logic can be exercised without a broker.
type fakeStreams struct {
	mu      sync.Mutex
	added   map[string][]map[string]any
	addErrs map[string]error
	acked   []string
	claims  [][]redis.XMessage
	readErr error
	reads   int
}

func newFakeStreams() *fakeStreams {
	return &fakeStreams{
		added:   map[string][]map[string]any{},
		addErrs: map[string]error{},
	}
}

func (f *fakeStreams) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeStreams) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	if err := f.addErrs[a.Stream]; err != nil {
		cmd.SetErr(err)
		return cmd
	}
	values, _ := a.Values.(map[string]any)
	f.added[a.Stream] = append(f.added[a.Stream], values)
	cmd.SetVal(fmt.Sprintf("%d-1", len(f.added[a.Stream])))
	return cmd
}

func (f *fakeStreams) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(ids)))
	return cmd
}

func (f *fakeStreams) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	cmd := redis.NewXStreamSliceCmd(ctx)
	if f.readErr != nil {
		cmd.SetErr(f.readErr)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (f *fakeStreams) XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewXAutoClaimCmd(ctx)
	if len(f.claims) == 0 {
		cmd.SetVal(nil, "0-0")
		return cmd
	}
	batch := f.claims[0]
	f.claims = f.claims[1:]
	cmd.SetVal(batch, "0-0")
	return cmd
}

func (f *fakeStreams) addedTo(stream string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.added[stream]...)
}

func (f *fakeStreams) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

func (f *fakeStreams) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

const testPayload = `{"source_blob_id":"abc","owner":"user@example.com"}`

func testConsumer(f *fakeStreams, h Handler) *Consumer {
	return NewConsumer(f, config.WorkerConfig{
		Stream:      "conversion",
		Group:       "converters",
		Consumer:    "test-consumer",
		Workers:     1,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	}, h)
}

func streamMessage(id, payload string, attempt int) redis.XMessage {
	return redis.XMessage{ID: id, Values: map[string]any{
		"payload": payload,
		"attempt": fmt.Sprintf("%d", attempt),
	}}
}

func TestHandleAcksOnSuccess(t *testing.T) {
	f := newFakeStreams()
	c := testConsumer(f, func(ctx context.Context, job Job) error { return nil })

	c.handle(context.Background(), streamMessage("1-1", testPayload, 0))

	assert.Equal(t, []string{"1-1"}, f.ackedIDs())
	assert.Empty(t, f.addedTo("conversion:dead"))
}

func TestHandlePermanentErrorDeadLetters(t *testing.T) {
	f := newFakeStreams()
	c := testConsumer(f, func(ctx context.Context, job Job) error {
		return backoff.Permanent(errors.New("corrupt container"))
	})

	c.handle(context.Background(), streamMessage("1-1", testPayload, 0))

	dead := f.addedTo("conversion:dead")
	require.Len(t, dead, 1)
	assert.Equal(t, testPayload, dead[0]["payload"])
	assert.Contains(t, dead[0]["reason"], "corrupt container")
	assert.Equal(t, []string{"1-1"}, f.ackedIDs())
	assert.Empty(t, f.addedTo("conversion"), "no retry copy for a permanent failure")
}

func TestHandleExhaustedAttemptsDeadLetter(t *testing.T) {
	f := newFakeStreams()
	c := testConsumer(f, func(ctx context.Context, job Job) error {
		return errors.New("smtp timeout")
	})

	c.handle(context.Background(), streamMessage("2-1", testPayload, 2))

	dead := f.addedTo("conversion:dead")
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0]["reason"], "attempts exhausted")
	assert.Equal(t, []string{"2-1"}, f.ackedIDs())
}

func TestHandleRetriesWithIncrementedAttempt(t *testing.T) {
	f := newFakeStreams()
	c := testConsumer(f, func(ctx context.Context, job Job) error {
		return errors.New("smtp timeout")
	})

	c.handle(context.Background(), streamMessage("3-1", testPayload, 0))

	require.Eventually(t, func() bool {
		return len(f.addedTo("conversion")) == 1 && len(f.ackedIDs()) == 1
	}, time.Second, 5*time.Millisecond, "retry copy should be appended, then the original acked")

	retry := f.addedTo("conversion")[0]
	assert.Equal(t, testPayload, retry["payload"])
	assert.Equal(t, 1, retry["attempt"])
	assert.Empty(t, f.addedTo("conversion:dead"))
}

func TestRequeueFailureLeavesMessagePending(t *testing.T) {
	f := newFakeStreams()
	f.addErrs["conversion"] = errors.New("redis down")
	c := testConsumer(f, nil)

	c.requeue(testPayload, 1, "4-1")

	assert.Empty(t, f.ackedIDs(), "a retry copy that never landed must keep the original pending")
}

func TestDeadLetterFailureLeavesMessagePending(t *testing.T) {
	f := newFakeStreams()
	f.addErrs["conversion:dead"] = errors.New("redis down")
	c := testConsumer(f, func(ctx context.Context, job Job) error {
		return backoff.Permanent(errors.New("corrupt container"))
	})

	c.handle(context.Background(), streamMessage("5-1", testPayload, 0))

	assert.Empty(t, f.ackedIDs())
}

func TestHandleUndecodablePayloadDeadLetters(t *testing.T) {
	f := newFakeStreams()
	c := testConsumer(f, func(ctx context.Context, job Job) error {
		t.Fatal("handler must not run for an undecodable payload")
		return nil
	})

	c.handle(context.Background(), streamMessage("6-1", "not json", 0))

	require.Len(t, f.addedTo("conversion:dead"), 1)
	assert.Equal(t, []string{"6-1"}, f.ackedIDs())
}

func TestAutoClaimProcessesClaimedMessages(t *testing.T) {
	f := newFakeStreams()
	f.claims = [][]redis.XMessage{{streamMessage("7-1", testPayload, 0)}}

	var (
		mu   sync.Mutex
		jobs []Job
	)
	c := testConsumer(f, func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		jobs = append(jobs, job)
		return nil
	})

	c.autoClaim(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, jobs, 1, "a claimed pending message must be run, not just adopted")
	assert.Equal(t, blobstore.ID("abc"), jobs[0].SourceBlobID)
	assert.Equal(t, []string{"7-1"}, f.ackedIDs())
}

func TestLoopBacksOffOnReadError(t *testing.T) {
	f := newFakeStreams()
	f.readErr = errors.New("connection refused")
	c := testConsumer(f, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.loop(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.LessOrEqual(t, f.readCount(), 2, "a broken broker connection must not be retried in a hot loop")
}
