package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ppiankov/civicner/internal/logger"
	"github.com/ppiankov/civicner/internal/model"
)

// messageWriter is the part of *kafka.Writer the sink uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each record as a JSON message keyed by record id
type KafkaSink struct {
	writer messageWriter
	topic  string
	log    *slog.Logger
}

// NewKafkaSink creates a sink writing to topic. Records with the same id
// always land on the same partition.
func NewKafkaSink(brokers []string, topic string, log *slog.Logger) *KafkaSink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaSink(w, topic, log)
}

func newKafkaSink(w messageWriter, topic string, log *slog.Logger) *KafkaSink {
	return &KafkaSink{writer: w, topic: topic, log: logger.OrDiscard(log)}
}

// Write publishes all records in one batch
func (s *KafkaSink) Write(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	now := []byte(time.Now().UTC().Format(time.RFC3339))
	msgs := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		value, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", rec.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(rec.ID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "content-type", Value: []byte("application/json")},
				{Key: "produced_at", Value: now},
			},
		})
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	s.log.Info("published records", slog.String("topic", s.topic), slog.Int("count", len(msgs)))
	return nil
}

// Close flushes and closes the writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
