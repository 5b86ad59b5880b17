package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/civicner/internal/model"
)

// LinkResolver fetches the title and description of a linked page
type LinkResolver interface {
	Resolve(ctx context.Context, rawURL string) (*model.LinkMeta, error)
}

// LinkJob resolves one URL
type LinkJob struct {
	Index    int
	URL      string
	Resolver LinkResolver
	Limiter  *Limiter
}

// Execute waits for the host's rate limit and resolves the link
func (j *LinkJob) Execute(ctx context.Context) *LinkResult {
	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.URL); err != nil {
			return &LinkResult{Index: j.Index, URL: j.URL, Error: err}
		}
	}
	meta, err := j.Resolver.Resolve(ctx, j.URL)
	return &LinkResult{Index: j.Index, URL: j.URL, Meta: meta, Error: err}
}

// LinkResult is the outcome of a LinkJob
type LinkResult struct {
	Index int
	URL   string
	Meta  *model.LinkMeta
	Error error
}

// BatchProcessor resolves many links concurrently with per-host rate limits
type BatchProcessor struct {
	resolver    LinkResolver
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a batch processor. A non-positive rps disables
// rate limiting.
func NewBatchProcessor(resolver LinkResolver, concurrency int, rps float64, burst int) *BatchProcessor {
	var limiter *Limiter
	if rps > 0 {
		limiter = NewLimiter(rps, burst)
	}
	return &BatchProcessor{
		resolver:    resolver,
		concurrency: concurrency,
		limiter:     limiter,
	}
}

// WithLimiter shares an existing limiter, e.g. one tuned by robots.txt crawl delays
func (b *BatchProcessor) WithLimiter(l *Limiter) *BatchProcessor {
	b.limiter = l
	return b
}

// ProcessURLs resolves urls and returns one result per input, in input order
func (b *BatchProcessor) ProcessURLs(ctx context.Context, urls []string) []*LinkResult {
	if len(urls) == 0 {
		return []*LinkResult{}
	}

	pool := NewPool[*LinkResult](ctx, b.concurrency)
	pool.Start()

	go func() {
		defer pool.Close()
		for i, u := range urls {
			job := &LinkJob{Index: i, URL: u, Resolver: b.resolver, Limiter: b.limiter}
			if !pool.Submit(job) {
				return
			}
		}
	}()

	out := make([]*LinkResult, len(urls))
	for r := range pool.Results() {
		out[r.Index] = r
	}

	// Jobs never run because the context ended
	for i, r := range out {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &LinkResult{Index: i, URL: urls[i], Error: err}
		}
	}

	return out
}

// ProcessFile reads URLs from a file and resolves them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*LinkResult, error) {
	urls, err := ReadURLsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read URLs: %w", err)
	}

	return b.ProcessURLs(ctx, urls), nil
}

// ReadURLsFromFile reads URLs from a file (one per line)
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return urls, nil
}
