// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// # Async Publisher

var (
	// ErrBufferFull is returned when the hand-off buffer has no free slot.
	ErrBufferFull = errors.New("queue: publish buffer full")

	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("queue: publisher closed")
)

type pendingEvent struct {
	key   string
	event any
}

/*
AsyncPublisher hands events to a buffered channel drained by one goroutine,
so Publish never waits on the broker.

Each drained event gets its own deadline detached from the caller. Failures
are logged. Close stops intake, waits for the buffer to drain, then closes the
wrapped publisher.
*/
type AsyncPublisher struct {
	next    Publisher
	events  chan pendingEvent
	timeout time.Duration
	logger  *slog.Logger

	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

/*
NewAsyncPublisher starts the drain goroutine.

Parameters:
  - next: The publisher that performs the actual write
  - buffer: Number of events that may wait for delivery
  - timeout: Deadline for each delivery attempt
  - logger: Receives delivery failures
*/
func NewAsyncPublisher(next Publisher, buffer int, timeout time.Duration, logger *slog.Logger) *AsyncPublisher {
	publisher := &AsyncPublisher{
		next:    next,
		events:  make(chan pendingEvent, buffer),
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go publisher.drain()
	return publisher
}

// Publish enqueues the event without blocking. The context only scopes the
// call; delivery runs under its own deadline.
func (publisher *AsyncPublisher) Publish(_ context.Context, key string, event any) error {
	publisher.mu.RLock()
	defer publisher.mu.RUnlock()

	if publisher.closed {
		return ErrClosed
	}

	select {
	case publisher.events <- pendingEvent{key: key, event: event}:
		return nil
	default:
		return ErrBufferFull
	}
}

func (publisher *AsyncPublisher) drain() {
	defer close(publisher.done)

	for pending := range publisher.events {
		context, cancel := context.WithTimeout(context.Background(), publisher.timeout)
		if err := publisher.next.Publish(context, pending.key, pending.event); err != nil {
			publisher.logger.Warn("event_publish_failed",
				slog.String("key", pending.key),
				slog.Any("error", err),
			)
		}
		cancel()
	}
}

// Close is safe to call more than once.
func (publisher *AsyncPublisher) Close() error {
	publisher.closeOnce.Do(func() {
		publisher.mu.Lock()
		publisher.closed = true
		close(publisher.events)
		publisher.mu.Unlock()

		<-publisher.done
		publisher.closeErr = publisher.next.Close()
	})
	return publisher.closeErr
}
