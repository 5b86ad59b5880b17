package sink

import (
	"context"

	"github.com/ppiankov/civicner/internal/model"
	"github.com/ppiankov/civicner/internal/pipeline"
)

// FileSink writes <dir>/<base>.json and <dir>/<base>.csv
type FileSink struct {
	renderer *pipeline.Renderer
	dir      string
	base     string
	formats  []string
	paths    []string
}

// NewFileSink creates a file sink for the given formats
func NewFileSink(r *pipeline.Renderer, dir, base string, formats []string) *FileSink {
	return &FileSink{renderer: r, dir: dir, base: base, formats: formats}
}

// Write renders the records. Nothing is written for an empty run.
func (s *FileSink) Write(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	paths, err := s.renderer.WriteFiles(s.dir, s.base, s.formats, records)
	s.paths = append(s.paths, paths...)
	return err
}

// Paths lists the files written so far
func (s *FileSink) Paths() []string {
	return s.paths
}

// Close is a no-op
func (s *FileSink) Close() error {
	return nil
}
