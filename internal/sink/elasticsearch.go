package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/ppiankov/civicner/internal/logger"
	"github.com/ppiankov/civicner/internal/model"
)

// ElasticsearchSink indexes one document per record, keyed by record id,
// so re-running over the same posts overwrites instead of duplicating
type ElasticsearchSink struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

// NewElasticsearchSink creates a sink for a single node address
func NewElasticsearchSink(addr, index string, log *slog.Logger) (*ElasticsearchSink, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &ElasticsearchSink{es: es, index: index, log: logger.OrDiscard(log)}, nil
}

// Write indexes the records, stopping at the first failure
func (s *ElasticsearchSink) Write(ctx context.Context, records []model.Record) error {
	for i, rec := range records {
		if err := s.indexRecord(ctx, rec); err != nil {
			return fmt.Errorf("record %d (%s): %w", i, rec.ID, err)
		}
	}
	s.log.Info("indexed records", slog.String("index", s.index), slog.Int("count", len(records)))
	return nil
}

func (s *ElasticsearchSink) indexRecord(ctx context.Context, rec model.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: rec.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, s.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index doc failed: %s %s", res.Status(), strings.TrimSpace(string(body)))
	}
	return nil
}

// Close is a no-op; the client holds no persistent resources
func (s *ElasticsearchSink) Close() error {
	return nil
}
