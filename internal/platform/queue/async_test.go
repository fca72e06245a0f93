// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedPublisher blocks every write until release is closed.
type gatedPublisher struct {
	release chan struct{}

	mu        sync.Mutex
	keys      []string
	deadlines []bool
	closed    bool
	err       error
}

func newGatedPublisher() *gatedPublisher {
	return &gatedPublisher{release: make(chan struct{})}
}

func (p *gatedPublisher) Publish(ctx context.Context, key string, _ any) error {
	<-p.release

	p.mu.Lock()
	defer p.mu.Unlock()
	_, hasDeadline := ctx.Deadline()
	p.keys = append(p.keys, key)
	p.deadlines = append(p.deadlines, hasDeadline)
	return p.err
}

func (p *gatedPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *gatedPublisher) written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAsyncPublisher_DoesNotWaitForDelivery(t *testing.T) {
	next := newGatedPublisher()
	publisher := NewAsyncPublisher(next, 4, time.Second, discardLogger())

	started := time.Now()
	require.NoError(t, publisher.Publish(context.Background(), "user-1", "event"))
	assert.Less(t, time.Since(started), 100*time.Millisecond)
	assert.Empty(t, next.written())

	close(next.release)
	require.NoError(t, publisher.Close())

	assert.Equal(t, []string{"user-1"}, next.written())
	assert.Equal(t, []bool{true}, next.deadlines)
	assert.True(t, next.closed)
}

func TestAsyncPublisher_BufferFull(t *testing.T) {
	next := newGatedPublisher()
	publisher := NewAsyncPublisher(next, 1, time.Second, discardLogger())

	// The first event is taken by the drain goroutine, the second fills the buffer.
	require.NoError(t, publisher.Publish(context.Background(), "a", nil))
	assert.Eventually(t, func() bool { return len(publisher.events) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, publisher.Publish(context.Background(), "b", nil))

	err := publisher.Publish(context.Background(), "c", nil)
	assert.ErrorIs(t, err, ErrBufferFull)

	close(next.release)
	require.NoError(t, publisher.Close())
	assert.Equal(t, []string{"a", "b"}, next.written())
}

func TestAsyncPublisher_CancelledCallerStillDelivers(t *testing.T) {
	next := newGatedPublisher()
	close(next.release)
	publisher := NewAsyncPublisher(next, 4, time.Second, discardLogger())

	context, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, publisher.Publish(context, "user-1", nil))

	require.NoError(t, publisher.Close())
	assert.Equal(t, []string{"user-1"}, next.written())
}

func TestAsyncPublisher_Close(t *testing.T) {
	next := newGatedPublisher()
	next.err = errors.New("broker down")
	close(next.release)
	publisher := NewAsyncPublisher(next, 4, time.Second, discardLogger())

	// Delivery failures are logged, not returned.
	require.NoError(t, publisher.Publish(context.Background(), "k", nil))
	require.NoError(t, publisher.Close())
	require.NoError(t, publisher.Close())

	assert.ErrorIs(t, publisher.Publish(context.Background(), "k", nil), ErrClosed)
}
