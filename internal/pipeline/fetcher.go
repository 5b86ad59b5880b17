package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/ppiankov/civicner/internal/model"
	"github.com/ppiankov/civicner/internal/util"
)

const fetchAttempts = 3

// fetchSleepFunc is swapped out in tests
var fetchSleepFunc = time.Sleep

// Fetcher fetches linked pages
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

// NewFetcher creates a Fetcher. Proxy settings follow util.NewProxyFunc.
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, insecure bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	return NewFetcherFromConfig(model.HTTPConfig{
		Timeout:      timeout,
		UserAgent:    userAgent,
		MaxBodyBytes: maxBytes,
		InsecureTLS:  insecure,
		HTTPProxy:    httpProxy,
		HTTPSProxy:   httpsProxy,
		NoProxy:      noProxy,
	})
}

// NewFetcherFromConfig creates a Fetcher from the shared HTTP settings
func NewFetcherFromConfig(cfg model.HTTPConfig) *Fetcher {
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = model.DefaultConfig().HTTP.MaxBodyBytes
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: util.NewTransport(cfg),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
	}
}

// Client exposes the underlying HTTP client so robots.txt lookups share its transport
func (f *Fetcher) Client() *http.Client {
	return f.httpClient
}

// FetchResult contains the fetched HTML and metadata
type FetchResult struct {
	HTML     string
	Meta     model.FetchMeta
	Subject  string // Readable fallback title derived from the final URL
	FinalURL string
}

// Fetch retrieves a page once
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	meta := model.FetchMeta{
		StatusCode:   resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         resp.Header.Get("ETag"),
		Headers:      make(map[string]string),
	}
	for _, key := range []string{"Content-Length", "Server", "Cache-Control"} {
		if val := resp.Header.Get(key); val != "" {
			meta.Headers[key] = val
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	// Decode to UTF-8 using the Content-Type charset or <meta charset>
	var body io.Reader = io.LimitReader(resp.Body, f.maxBytes)
	if decoded, err := charset.NewReader(body, meta.ContentType); err == nil {
		body = decoded
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := resp.Request.URL.String()
	return &FetchResult{
		HTML:     string(data),
		Meta:     meta,
		Subject:  subjectFromURL(finalURL),
		FinalURL: finalURL,
	}, nil
}

// FetchWithRetry retries transport failures, 429 and 5xx responses with
// exponential backoff. Other errors are returned as-is after the first attempt.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isRetryableFetchError(err) || attempt == fetchAttempts {
			break
		}
		fetchSleepFunc(time.Second << (attempt - 1))
	}
	return nil, lastErr
}

// isRetryableFetchError reports whether another attempt could succeed
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "fetch: ") {
		return true
	}
	if rest, ok := strings.CutPrefix(msg, "unexpected status: "); ok {
		return strings.HasPrefix(rest, "429") || strings.HasPrefix(rest, "5")
	}
	return false
}

// subjectFromURL turns the last path segment into words, falling back to the host
func subjectFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return strings.TrimPrefix(parsed.Host, "www.")
	}

	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]
	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}
	last = strings.NewReplacer("_", " ", "-", " ").Replace(last)

	return strings.Join(strings.Fields(last), " ")
}
