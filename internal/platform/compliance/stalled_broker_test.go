// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package compliance_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/helios/internal/platform/compliance"
	"github.com/taibuivan/helios/internal/platform/queue"
)

// stalledBroker accepts TCP connections and never answers.
func stalledBroker(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		_ = listener.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			_ = conn.Close()
		}
	})
	return listener.Addr().String()
}

func TestEventLogger_StalledBrokerDoesNotBlockCaller(t *testing.T) {
	producer := queue.NewProducer(queue.ProducerConfig{Brokers: []string{stalledBroker(t)}, Topic: "auth.compliance"})
	publisher := queue.NewAsyncPublisher(producer, 16, 200*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = publisher.Close() })

	logger := compliance.NewEventLogger(publisher)

	context, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	started := time.Now()
	logger.LogAuthEvent(context, compliance.EventUserLogin, "user-1", map[string]any{"method": "email"})
	logger.LogSecurityEvent(context, compliance.SecurityFailedLogin, compliance.SeverityLow, nil)
	elapsed := time.Since(started)

	assert.Less(t, elapsed, 50*time.Millisecond)
	assert.NoError(t, context.Err())
}
