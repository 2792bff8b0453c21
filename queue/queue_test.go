package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewScrapeJob_DeduplicatesURLs(t *testing.T) {
	job := NewScrapeJob([]string{
		"https://a.com/x",
		"https://b.com/y",
		" https://a.com/x ",
		"not a url",
		"/relative/path",
		"ftp://c.com/z",
		"https://b.com/y",
		"http://c.com/z",
	})

	assert.NotEmpty(t, job.CorrelationID)
	assert.Equal(t, []string{"https://a.com/x", "https://b.com/y", "http://c.com/z"}, job.URLs)

	other := NewScrapeJob(nil)
	assert.NotEqual(t, job.CorrelationID, other.CorrelationID)
	assert.Empty(t, other.URLs)
}

func TestScrapeJob_WireFormat(t *testing.T) {
	job := &ScrapeJob{CorrelationID: "abc", URLs: []string{"https://a.com"}}
	data, err := job.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"correlationId":"abc","urls":["https://a.com"]}`, string(data))

	empty, err := (&ScrapeJob{CorrelationID: "abc"}).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"correlationId":"abc","urls":[]}`, string(empty))

	decoded, err := DecodeScrapeJob(data)
	require.NoError(t, err)
	assert.Equal(t, job, decoded)
}

func TestDecodeScrapeJob_Invalid(t *testing.T) {
	_, err := DecodeScrapeJob([]byte("{"))
	assert.ErrorIs(t, err, ErrInvalidJob)

	_, err = DecodeScrapeJob([]byte(`{"urls":["https://a.com"]}`))
	assert.ErrorIs(t, err, ErrInvalidJob)
}

func TestProducer_Enqueue(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, "scraping_queue", zap.NewNop())

	job := NewScrapeJob([]string{"https://a.com"})
	require.NoError(t, p.Enqueue(context.Background(), job))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "scraping_queue", pub.msgs[0].topic)
	assert.Equal(t, job.CorrelationID, string(pub.msgs[0].key))

	var got ScrapeJob
	require.NoError(t, json.Unmarshal(pub.msgs[0].value, &got))
	assert.Equal(t, job.URLs, got.URLs)

	pub.err = errors.New("broker down")
	assert.ErrorIs(t, p.Enqueue(context.Background(), job), pub.err)
}

func TestConsumer_NextAndAck(t *testing.T) {
	reader := newFakeReader(
		[]byte(`{"correlationId":"job-1","urls":["https://a.com"]}`),
		[]byte(`garbage`),
	)
	c := NewConsumer(reader)
	ctx := context.Background()

	d, err := c.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, d.DecodeErr)
	assert.Equal(t, "job-1", d.Job.CorrelationID)
	assert.Empty(t, reader.commits())
	require.NoError(t, d.Ack(ctx))
	assert.Equal(t, []int64{0}, reader.commits())

	d, err = c.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, d.Job)
	assert.ErrorIs(t, d.DecodeErr, ErrInvalidJob)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.Next(cctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEventPublisher(t *testing.T) {
	pub := &fakePublisher{}
	ep := NewEventPublisher(pub, "scrape_events", zap.NewNop())
	require.NoError(t, ep.Publish(context.Background(), JobEvent{CorrelationID: "job-1", Chunks: 4}))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "scrape_events", pub.msgs[0].topic)
	var ev JobEvent
	require.NoError(t, json.Unmarshal(pub.msgs[0].value, &ev))
	assert.Equal(t, 4, ev.Chunks)
}

func TestEventWatcher_RunAndLookup(t *testing.T) {
	ev, _ := json.Marshal(JobEvent{CorrelationID: "job-1", Chunks: 2})
	reader := newFakeReader([]byte("nope"), ev)
	w := NewEventWatcher(reader, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := w.Lookup("job-1")
		return ok
	}, time.Second, 5*time.Millisecond)

	got, _ := w.Lookup("job-1")
	assert.Equal(t, 2, got.Chunks)
	_, ok := w.Lookup("job-2")
	assert.False(t, ok)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []int64{0, 1}, reader.commits())
	assert.True(t, reader.closed)
}

func TestEventWatcher_ExpiresAfterTTL(t *testing.T) {
	w := NewEventWatcher(newFakeReader(), time.Minute, zap.NewNop())
	now := time.Now()
	w.now = func() time.Time { return now }

	w.Record(JobEvent{CorrelationID: "old"})
	_, ok := w.Lookup("old")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = w.Lookup("old")
	assert.False(t, ok)

	w.Record(JobEvent{CorrelationID: "new"})
	w.mu.RLock()
	defer w.mu.RUnlock()
	assert.NotContains(t, w.events, "old")
	assert.Contains(t, w.events, "new")
}
