// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package queue publishes domain events to Kafka.

Each producer is bound to one topic. When no brokers are configured the server
falls back to [LogPublisher], which writes the event to the structured log so
local development needs no broker. Request paths publish through
[AsyncPublisher] so a slow broker never holds up a response.
*/
package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// Publisher sends a keyed JSON event to a single topic.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
	Close() error
}

// messageWriter is the subset of [*kafka.Writer] the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// # Kafka Producer

// ProducerConfig describes how to reach the cluster.
type ProducerConfig struct {
	Brokers  []string
	Topic    string
	Username string
	Password string
	TLS      bool
}

// Producer writes events to one Kafka topic.
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer builds a synchronous producer. SASL/PLAIN is enabled when a
// username is set. Request paths should reach it through [AsyncPublisher].
func NewProducer(cfg ProducerConfig) *Producer {
	transport := &kafka.Transport{}
	if cfg.Username != "" {
		transport.SASL = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
	}
	if cfg.TLS {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Transport:    transport,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
		},
		topic: cfg.Topic,
	}
}

// Publish encodes event as JSON and writes it under key. Events for the same
// key land on the same partition and therefore keep their order.
func (producer *Producer) Publish(ctx context.Context, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: encode event for %s: %w", producer.topic, err)
	}

	err = producer.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("queue: publish to %s: %w", producer.topic, err)
	}
	return nil
}

// Close flushes pending writes and releases connections.
func (producer *Producer) Close() error {
	return producer.writer.Close()
}

// # Log Publisher

// LogPublisher writes events to the structured log instead of a broker.
type LogPublisher struct {
	logger *slog.Logger
	topic  string
}

// NewLogPublisher returns a publisher that only logs.
func NewLogPublisher(logger *slog.Logger, topic string) *LogPublisher {
	return &LogPublisher{logger: logger, topic: topic}
}

func (publisher *LogPublisher) Publish(ctx context.Context, key string, event any) error {
	publisher.logger.InfoContext(ctx, "event_published",
		slog.String("topic", publisher.topic),
		slog.String("key", key),
		slog.Any("event", event),
	)
	return nil
}

func (publisher *LogPublisher) Close() error { return nil }
