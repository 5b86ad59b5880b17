package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ppiankov/civicner/internal/cache"
	"github.com/ppiankov/civicner/internal/logger"
	"github.com/ppiankov/civicner/internal/model"
	"github.com/ppiankov/civicner/internal/util"
	"github.com/ppiankov/civicner/internal/worker"
)

// ErrDisallowed is returned when robots.txt forbids fetching a link
var ErrDisallowed = errors.New("disallowed by robots.txt")

// LinkResolver reads title and description metadata from linked pages
type LinkResolver struct {
	fetcher *Fetcher
	cache   cache.Cache         // nil disables caching
	robots  *util.RobotsChecker // nil skips robots.txt
	limiter *worker.Limiter     // receives Crawl-delay hints
	log     *slog.Logger
}

// NewLinkResolver wires a resolver. Any of c, robots and limiter may be nil.
func NewLinkResolver(f *Fetcher, c cache.Cache, robots *util.RobotsChecker, limiter *worker.Limiter, log *slog.Logger) *LinkResolver {
	return &LinkResolver{
		fetcher: f,
		cache:   c,
		robots:  robots,
		limiter: limiter,
		log:     logger.OrDiscard(log),
	}
}

// Resolve returns the page metadata for rawURL, from cache when possible
func (r *LinkResolver) Resolve(ctx context.Context, rawURL string) (*model.LinkMeta, error) {
	key := cache.CacheKey("link", rawURL)
	if r.cache != nil {
		var meta model.LinkMeta
		if cache.GetJSON(r.cache, key, &meta) {
			r.log.Debug("link cache hit", "url", rawURL)
			return &meta, nil
		}
	}

	if r.robots != nil {
		verdict, err := r.robots.Check(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots: %w", err)
		}
		if r.limiter != nil {
			r.limiter.ApplyCrawlDelay(rawURL, verdict.CrawlDelay)
		}
		if !verdict.Allowed {
			return nil, ErrDisallowed
		}
	}

	result, err := r.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	title, description, err := parseLinkMeta(result.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	if title == "" {
		title = result.Subject
	}

	meta := &model.LinkMeta{
		URL:         rawURL,
		FinalURL:    result.FinalURL,
		Title:       title,
		Description: description,
		FetchMeta:   result.Meta,
		FetchedAt:   time.Now().UTC(),
	}

	if r.cache != nil {
		if err := cache.SetJSON(r.cache, key, meta, 0); err != nil {
			r.log.Warn("link cache write failed", "url", rawURL, "error", err)
		}
	}
	return meta, nil
}

// parseLinkMeta prefers Open Graph values over <title> and meta description
func parseLinkMeta(htmlContent string) (title, description string, err error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", "", err
	}

	var docTitle, metaDesc, ogTitle, ogDesc string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if docTitle == "" {
					docTitle = textContent(n)
				}
			case "meta":
				name, property, content := "", "", ""
				for _, attr := range n.Attr {
					switch strings.ToLower(attr.Key) {
					case "name":
						name = strings.ToLower(attr.Val)
					case "property":
						property = strings.ToLower(attr.Val)
					case "content":
						content = collapseSpace(attr.Val)
					}
				}
				switch {
				case name == "description" && metaDesc == "":
					metaDesc = content
				case property == "og:title" && ogTitle == "":
					ogTitle = content
				case property == "og:description" && ogDesc == "":
					ogDesc = content
				}
			case "svg", "script", "style", "body":
				// Metadata lives in <head>
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return firstNonEmpty(ogTitle, docTitle), firstNonEmpty(ogDesc, metaDesc), nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return collapseSpace(b.String())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// LinkFiller completes missing link titles and descriptions on posts
type LinkFiller struct {
	processor *worker.BatchProcessor
	log       *slog.Logger
}

// NewLinkFiller creates a filler that resolves links through processor
func NewLinkFiller(processor *worker.BatchProcessor, log *slog.Logger) *LinkFiller {
	return &LinkFiller{processor: processor, log: logger.OrDiscard(log)}
}

// Fill resolves each distinct link whose title or description is missing and
// fills only the empty fields. It returns the number of posts changed.
func (f *LinkFiller) Fill(ctx context.Context, posts []model.Post) int {
	var urls []string
	seen := make(map[string]bool)
	for _, p := range posts {
		if needsMeta(p) && !seen[p.LinkURL] {
			seen[p.LinkURL] = true
			urls = append(urls, p.LinkURL)
		}
	}
	if len(urls) == 0 {
		return 0
	}

	f.log.Info("resolving link metadata", "links", len(urls))
	metas := make(map[string]*model.LinkMeta, len(urls))
	for _, res := range f.processor.ProcessURLs(ctx, urls) {
		if res.Error != nil {
			f.log.Debug("link metadata unavailable", "url", res.URL, "error", res.Error)
			continue
		}
		metas[res.URL] = res.Meta
	}

	changed := 0
	for i := range posts {
		p := &posts[i]
		meta := metas[p.LinkURL]
		if !needsMeta(*p) || meta == nil {
			continue
		}
		before := *p
		if p.LinkTitle == "" {
			p.LinkTitle = meta.Title
		}
		if p.LinkDescription == "" {
			p.LinkDescription = meta.Description
		}
		if *p != before {
			changed++
		}
	}
	return changed
}

func needsMeta(p model.Post) bool {
	return p.HasLink() && (p.LinkTitle == "" || p.LinkDescription == "")
}
