package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/civicner/internal/cache"
	"github.com/ppiankov/civicner/internal/model"
	"github.com/ppiankov/civicner/internal/util"
	"github.com/ppiankov/civicner/internal/worker"
)

const storyPage = `<!doctype html>
<html><head>
<title>  Leeds   council budget | Example News </title>
<meta name="description" content="Councillor Jane Doe presents the budget.">
<meta property="og:title" content="Leeds council budget">
</head><body><title>ignored</title></body></html>`

// linkSite serves robots.txt, a story page and a blocked page
type linkSite struct {
	pages  atomic.Int32
	robots atomic.Int32
}

func (s *linkSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/robots.txt":
		s.robots.Add(1)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\nCrawl-delay: 2\n"))
	case "/story", "/private/story":
		s.pages.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(storyPage))
	case "/plain/leeds-flood-warning":
		s.pages.Add(1)
		_, _ = w.Write([]byte("<html><body>no metadata</body></html>"))
	default:
		http.NotFound(w, r)
	}
}

func newTestResolver(t *testing.T, site *linkSite) (*LinkResolver, *worker.Limiter, string) {
	t.Helper()
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)

	fetcher := NewFetcher(5*time.Second, "civicner-test/1.0", 1<<20, false, "", "", "")
	limiter := worker.NewLimiter(100, 10)
	robots := util.NewRobotsChecker("civicner-test/1.0", srv.Client(), 5*time.Second, nil)
	r := NewLinkResolver(fetcher, cache.NewMemoryCache(time.Minute, time.Minute), robots, limiter, nil)
	return r, limiter, srv.URL
}

func TestParseLinkMeta(t *testing.T) {
	title, desc, err := parseLinkMeta(storyPage)
	require.NoError(t, err)
	require.Equal(t, "Leeds council budget", title)
	require.Equal(t, "Councillor Jane Doe presents the budget.", desc)

	title, desc, err = parseLinkMeta(`<title>Only
	a title</title>`)
	require.NoError(t, err)
	require.Equal(t, "Only a title", title)
	require.Empty(t, desc)

	title, desc, err = parseLinkMeta(`<meta property="og:description" content="OG wins"><meta name="description" content="plain">`)
	require.NoError(t, err)
	require.Empty(t, title)
	require.Equal(t, "OG wins", desc)
}

func TestLinkResolverCachesResults(t *testing.T) {
	site := &linkSite{}
	r, _, base := newTestResolver(t, site)
	ctx := context.Background()

	meta, err := r.Resolve(ctx, base+"/story")
	require.NoError(t, err)
	require.Equal(t, "Leeds council budget", meta.Title)
	require.Equal(t, "Councillor Jane Doe presents the budget.", meta.Description)
	require.Equal(t, http.StatusOK, meta.FetchMeta.StatusCode)

	again, err := r.Resolve(ctx, base+"/story")
	require.NoError(t, err)
	require.Equal(t, meta.Title, again.Title)
	require.Equal(t, int32(1), site.pages.Load())
	require.Equal(t, int32(1), site.robots.Load())
}

func TestLinkResolverRespectsRobots(t *testing.T) {
	site := &linkSite{}
	r, limiter, base := newTestResolver(t, site)

	_, err := r.Resolve(context.Background(), base+"/private/story")
	require.ErrorIs(t, err, ErrDisallowed)
	require.Zero(t, site.pages.Load())

	// Crawl-delay: 2 leaves one request every two seconds
	require.True(t, limiter.Allow(base+"/story"))
	require.False(t, limiter.Allow(base+"/story"))
}

func TestLinkResolverFallsBackToURLSubject(t *testing.T) {
	r, _, base := newTestResolver(t, &linkSite{})

	meta, err := r.Resolve(context.Background(), base+"/plain/leeds-flood-warning")
	require.NoError(t, err)
	require.Equal(t, "leeds flood warning", meta.Title)
	require.Empty(t, meta.Description)
}

func TestLinkResolverNotFound(t *testing.T) {
	r, _, base := newTestResolver(t, &linkSite{})

	_, err := r.Resolve(context.Background(), base+"/missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status: 404")
}

func TestLinkFillerFillsOnlyMissingFields(t *testing.T) {
	site := &linkSite{}
	r, limiter, base := newTestResolver(t, site)
	filler := NewLinkFiller(worker.NewBatchProcessor(r, 2, 0, 0).WithLimiter(limiter), nil)

	posts := []model.Post{
		{URI: "a", LinkURL: base + "/story"},
		{URI: "b", LinkURL: base + "/story", LinkTitle: "Kept title"},
		{URI: "c", LinkURL: base + "/story", LinkTitle: "Full", LinkDescription: "Full"},
		{URI: "d", Text: "no link"},
		{URI: "e", LinkURL: base + "/missing"},
	}

	changed := filler.Fill(context.Background(), posts)
	require.Equal(t, 2, changed)

	require.Equal(t, "Leeds council budget", posts[0].LinkTitle)
	require.Equal(t, "Councillor Jane Doe presents the budget.", posts[0].LinkDescription)
	require.Equal(t, "Kept title", posts[1].LinkTitle)
	require.Equal(t, "Councillor Jane Doe presents the budget.", posts[1].LinkDescription)
	require.Equal(t, "Full", posts[2].LinkTitle)
	require.Empty(t, posts[3].LinkTitle)
	require.Empty(t, posts[4].LinkTitle)

	// Duplicate URLs are fetched once
	require.Equal(t, int32(1), site.pages.Load())
}
