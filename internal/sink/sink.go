// Package sink delivers enriched records to files, Elasticsearch and Kafka.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/civicner/internal/model"
	"github.com/ppiankov/civicner/internal/pipeline"
)

// Sink receives the records of a run
type Sink interface {
	Write(ctx context.Context, records []model.Record) error
	Close() error
}

// Multi fans records out to every sink. A failing sink does not stop the others.
type Multi []Sink

// Write writes to all sinks and joins their errors
func (m Multi) Write(ctx context.Context, records []model.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all sinks and joins their errors
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// FromConfig builds the file sink plus any remote sinks the config enables
func FromConfig(cfg *model.Config, base string, log *slog.Logger) (Multi, error) {
	sinks := Multi{NewFileSink(pipeline.NewRenderer(0), cfg.Output.Dir, base, cfg.Output.Formats)}

	if cfg.Sinks.ElasticsearchAddr != "" {
		es, err := NewElasticsearchSink(cfg.Sinks.ElasticsearchAddr, cfg.Sinks.ElasticsearchIndex, log)
		if err != nil {
			return nil, fmt.Errorf("elasticsearch sink: %w", err)
		}
		sinks = append(sinks, es)
	}

	if len(cfg.Sinks.KafkaBrokers) > 0 {
		sinks = append(sinks, NewKafkaSink(cfg.Sinks.KafkaBrokers, cfg.Sinks.KafkaTopic, log))
	}

	return sinks, nil
}
