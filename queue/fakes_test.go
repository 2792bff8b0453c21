package queue

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

type published struct {
	topic string
	key   []byte
	value []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) PublishWithKey(_ context.Context, topic string, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{topic: topic, key: key, value: value})
	return nil
}

type fakeReader struct {
	ch        chan kafka.Message
	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...[]byte) *fakeReader {
	r := &fakeReader{ch: make(chan kafka.Message, len(msgs)+8)}
	for i, m := range msgs {
		r.ch <- kafka.Message{Offset: int64(i), Value: m}
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.ch:
		return m, nil
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}
