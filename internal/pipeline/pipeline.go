package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ppiankov/civicner/internal/cache"
	"github.com/ppiankov/civicner/internal/extract"
	"github.com/ppiankov/civicner/internal/logger"
	"github.com/ppiankov/civicner/internal/model"
	"github.com/ppiankov/civicner/internal/util"
	"github.com/ppiankov/civicner/internal/worker"
)

// Enricher is the extraction surface the pipeline needs
type Enricher interface {
	Extract(text string) model.EnrichmentResult
}

// Pipeline turns posts into enriched records
type Pipeline struct {
	extractor Enricher
	links     *LinkFiller // nil when missing link metadata is not fetched
	log       *slog.Logger
}

// NewPipeline creates a pipeline around an extractor. links may be nil.
func NewPipeline(extractor Enricher, links *LinkFiller, log *slog.Logger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		links:     links,
		log:       logger.OrDiscard(log),
	}
}

// NewFromConfig builds the pipeline and, when links.fetch_missing is set,
// the link metadata stack behind it
func NewFromConfig(cfg *model.Config, extractor *extract.Extractor, log *slog.Logger) *Pipeline {
	log = logger.OrDiscard(log)
	if !cfg.Links.FetchMissing {
		return NewPipeline(extractor, nil, log)
	}
	return NewPipeline(extractor, NewLinkFiller(NewLinkProcessor(cfg, log), log), log)
}

// NewLinkProcessor wires fetcher, cache, robots checker and a shared per-host
// limiter into a batch processor that resolves link metadata
func NewLinkProcessor(cfg *model.Config, log *slog.Logger) *worker.BatchProcessor {
	log = logger.OrDiscard(log)
	fetcher := NewFetcherFromConfig(cfg.HTTP)
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}
	var robots *util.RobotsChecker
	if cfg.Links.RespectRobots {
		robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, fetcher.Client(), cfg.HTTP.Timeout, log)
	}

	resolver := NewLinkResolver(fetcher, c, robots, limiter, log)
	return worker.NewBatchProcessor(resolver, cfg.Concurrency.Workers, 0, 0).WithLimiter(limiter)
}

// Enrich fills missing link metadata (when configured) and enriches every
// post. It stops early when ctx ends, returning the records built so far.
func (p *Pipeline) Enrich(ctx context.Context, posts []model.Post) ([]model.Record, error) {
	if p.links != nil {
		posts = append([]model.Post(nil), posts...)
		if n := p.links.Fill(ctx, posts); n > 0 {
			p.log.Info("filled link metadata", "posts", n)
		}
	}

	records := make([]model.Record, 0, len(posts))
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		records = append(records, p.EnrichPost(post))
	}
	p.log.Debug("enriched posts", "count", len(records))
	return records, nil
}

// EnrichPost analyses the post text and its link text separately and merges
// them, the post text taking precedence on role conflicts
func (p *Pipeline) EnrichPost(post model.Post) model.Record {
	text := p.extractor.Extract(post.Text)
	link := p.extractor.Extract(post.LinkText())
	all := extract.Merge(text, link)

	id := post.URI
	if id == "" {
		id = uuid.NewString()
	}
	return model.NewRecord(id, post, text, link, all)
}
