package util

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/civicner/internal/logger"
)

const (
	// robotsTTL is how long a host's robots.txt is trusted
	robotsTTL = 24 * time.Hour
	// unreachableTTL bounds how long an unreachable robots.txt counts as allow-all
	unreachableTTL = 10 * time.Minute
)

// Verdict is the robots.txt answer for one URL
type Verdict struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// RobotsChecker decides whether a linked page may be fetched. Policies are
// cached per scheme and host, and concurrent lookups for one host share a
// single robots.txt request.
type RobotsChecker struct {
	policies   *gocache.Cache
	group      singleflight.Group
	httpClient *http.Client
	userAgent  string
	agentToken string
	log        *slog.Logger
}

// NewRobotsChecker creates a checker. A nil client gets a plain client with
// the given timeout.
func NewRobotsChecker(userAgent string, client *http.Client, timeout time.Duration, log *slog.Logger) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &RobotsChecker{
		policies:   gocache.New(robotsTTL, time.Hour),
		httpClient: client,
		userAgent:  userAgent,
		agentToken: ProductToken(userAgent),
		log:        logger.OrDiscard(log),
	}
}

// Check returns whether rawURL may be fetched and the crawl delay the host
// asks for. A robots.txt that cannot be fetched allows everything.
func (r *RobotsChecker) Check(ctx context.Context, rawURL string) (Verdict, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Verdict{}, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Verdict{}, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	data := r.policy(ctx, parsed.Scheme+"://"+strings.ToLower(parsed.Host))

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	v := Verdict{Allowed: data.TestAgent(path, r.agentToken)}
	if g := data.FindGroup(r.agentToken); g != nil {
		v.CrawlDelay = g.CrawlDelay
	}
	return v, nil
}

func (r *RobotsChecker) policy(ctx context.Context, origin string) *robotstxt.RobotsData {
	if cached, ok := r.policies.Get(origin); ok {
		return cached.(*robotstxt.RobotsData)
	}

	v, _, _ := r.group.Do(origin, func() (any, error) {
		data, err := r.fetch(ctx, origin+"/robots.txt")
		if err != nil {
			r.log.Debug("robots.txt unavailable, allowing", "origin", origin, "error", err)
			data, _ = robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
			r.policies.Set(origin, data, unreachableTTL)
			return data, nil
		}
		r.policies.Set(origin, data, gocache.DefaultExpiration)
		return data, nil
	})
	return v.(*robotstxt.RobotsData)
}

func (r *RobotsChecker) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 4xx means allow-all and 5xx disallow-all
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}

// Forget drops the cached policy for the origin of rawURL
func (r *RobotsChecker) Forget(rawURL string) {
	if parsed, err := url.Parse(rawURL); err == nil {
		r.policies.Delete(parsed.Scheme + "://" + strings.ToLower(parsed.Host))
	}
}

// ProductToken reduces "civicner/0.1 (+url)" to "civicner", the token
// robots.txt groups are matched against
func ProductToken(ua string) string {
	fields := strings.Fields(ua)
	if len(fields) == 0 {
		return ""
	}
	token, _, _ := strings.Cut(fields[0], "/")
	return token
}
