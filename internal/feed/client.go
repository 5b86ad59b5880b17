// Package feed reads a Bluesky account's posts over the public XRPC API.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ppiankov/civicner/internal/logger"
	"github.com/ppiankov/civicner/internal/model"
	"github.com/ppiankov/civicner/internal/worker"
)

const (
	// MaxPageSize is the largest page getAuthorFeed serves
	MaxPageSize = 100

	profileURLPrefix = "bsky.app/profile/"
	postURLFormat    = "https://bsky.app/profile/%s/post/%s"
)

// Options configures a Client
type Options struct {
	ServiceURL string // PDS for login and authenticated reads
	PublicURL  string // AppView for anonymous reads
	UserAgent  string
	PageSize   int
	HTTPClient *http.Client
	Limiter    *worker.Limiter
	Logger     *slog.Logger
}

// Client is a minimal XRPC client for reading an author's feed
type Client struct {
	httpClient *http.Client
	serviceURL string
	publicURL  string
	userAgent  string
	pageSize   int
	limiter    *worker.Limiter
	log        *slog.Logger

	mu      sync.RWMutex
	session *session
}

// NewClient builds a client; zero options fall back to sensible defaults
func NewClient(opts Options) *Client {
	cfg := model.DefaultConfig()
	if opts.ServiceURL == "" {
		opts.ServiceURL = cfg.Feed.ServiceURL
	}
	if opts.PublicURL == "" {
		opts.PublicURL = cfg.Feed.PublicURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = cfg.HTTP.UserAgent
	}
	if opts.PageSize <= 0 || opts.PageSize > MaxPageSize {
		opts.PageSize = MaxPageSize
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: cfg.HTTP.Timeout}
	}
	if opts.Limiter == nil {
		opts.Limiter = worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	}
	return &Client{
		httpClient: opts.HTTPClient,
		serviceURL: strings.TrimRight(opts.ServiceURL, "/"),
		publicURL:  strings.TrimRight(opts.PublicURL, "/"),
		userAgent:  opts.UserAgent,
		pageSize:   opts.PageSize,
		limiter:    opts.Limiter,
		log:        logger.OrDiscard(opts.Logger),
	}
}

// Login creates a session. On failure the client stays anonymous and keeps
// working against the public AppView.
func (c *Client) Login(ctx context.Context, identifier, password string) error {
	body, err := json.Marshal(sessionRequest{Identifier: identifier, Password: password})
	if err != nil {
		return fmt.Errorf("encode session request: %w", err)
	}

	var s session
	if err := c.call(ctx, http.MethodPost, c.serviceURL, "com.atproto.server.createSession", nil, body, "", &s); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()
	c.log.Info("authenticated", slog.String("handle", s.Handle))
	return nil
}

// Authenticated reports whether a session is active
func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil
}

// Profile looks up an actor by handle or DID
func (c *Client) Profile(ctx context.Context, actor string) (*Profile, error) {
	var p Profile
	params := url.Values{"actor": {actor}}
	if err := c.query(ctx, "app.bsky.actor.getProfile", params, &p); err != nil {
		return nil, fmt.Errorf("get profile %s: %w", actor, err)
	}
	return &p, nil
}

// AuthorFeed fetches one page of an actor's posts
func (c *Client) AuthorFeed(ctx context.Context, actor string, limit int, cursor string) (*FeedPage, error) {
	params := url.Values{
		"actor": {actor},
		"limit": {strconv.Itoa(limit)},
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var page FeedPage
	if err := c.query(ctx, "app.bsky.feed.getAuthorFeed", params, &page); err != nil {
		return nil, fmt.Errorf("get author feed: %w", err)
	}
	return &page, nil
}

// FetchPosts pages through an actor's feed until it is exhausted or limit
// posts were read (limit <= 0 reads everything). Posts gathered before an
// error are returned together with that error.
func (c *Client) FetchPosts(ctx context.Context, actor string, limit int) ([]model.Post, error) {
	profile, err := c.Profile(ctx, actor)
	if err != nil {
		return nil, err
	}
	c.log.Info("found profile",
		slog.String("handle", profile.Handle),
		slog.String("display_name", profile.DisplayName),
		slog.Int("posts", profile.PostsCount))

	var posts []model.Post
	cursor := ""
	for page := 1; ; page++ {
		if limit > 0 && len(posts) >= limit {
			break
		}
		batch := c.pageSize
		if limit > 0 && limit-len(posts) < batch {
			batch = limit - len(posts)
		}

		if err := c.limiter.Wait(ctx, c.baseURL()); err != nil {
			return posts, err
		}
		resp, err := c.AuthorFeed(ctx, actor, batch, cursor)
		if err != nil {
			return posts, fmt.Errorf("page %d: %w", page, err)
		}
		if len(resp.Feed) == 0 {
			c.log.Debug("no more posts", slog.Int("page", page))
			break
		}

		for _, item := range resp.Feed {
			if limit > 0 && len(posts) >= limit {
				break
			}
			posts = append(posts, ToPost(item.Post))
		}
		c.log.Info("fetched page", slog.Int("page", page), slog.Int("batch", len(resp.Feed)), slog.Int("total", len(posts)))

		cursor = resp.Cursor
		if cursor == "" {
			c.log.Debug("reached end of feed")
			break
		}
	}
	return posts, nil
}

// ToPost flattens a post view into the pipeline's post record
func ToPost(v PostView) model.Post {
	p := model.Post{URI: v.URI}
	rkey := ""
	if i := strings.LastIndex(v.URI, "/"); i >= 0 {
		rkey = v.URI[i+1:]
	}
	if rkey != "" && v.Author.Handle != "" {
		p.BlueskyURL = fmt.Sprintf(postURLFormat, v.Author.Handle, rkey)
	}
	if v.Record != nil {
		p.Text = v.Record.Text
		p.CreatedAt = v.Record.CreatedAt
		if v.Record.Embed != nil && v.Record.Embed.External != nil {
			p.LinkURL = v.Record.Embed.External.URI
			p.LinkTitle = v.Record.Embed.External.Title
			p.LinkDescription = v.Record.Embed.External.Description
		}
	}
	return p
}

// HandleFromProfileURL accepts either a handle or a bsky.app profile URL
func HandleFromProfileURL(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, profileURLPrefix); i >= 0 {
		s = s[i+len(profileURLPrefix):]
		if j := strings.IndexByte(s, '/'); j >= 0 {
			s = s[:j]
		}
	}
	return strings.TrimPrefix(s, "@")
}

// ReadPostsFile loads posts saved by a previous scrape
func ReadPostsFile(path string) ([]model.Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read posts: %w", err)
	}
	var posts []model.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("parse posts %s: %w", path, err)
	}
	return posts, nil
}

func (c *Client) baseURL() string {
	if c.Authenticated() {
		return c.serviceURL
	}
	return c.publicURL
}

// query issues an XRPC GET, refreshing an expired session once
func (c *Client) query(ctx context.Context, method string, params url.Values, out any) error {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()

	if s == nil {
		return c.call(ctx, http.MethodGet, c.publicURL, method, params, nil, "", out)
	}

	err := c.call(ctx, http.MethodGet, c.serviceURL, method, params, nil, s.AccessJwt, out)
	var xerr *XRPCError
	if err == nil || !errors.As(err, &xerr) || !xerr.expired() {
		return err
	}

	if rerr := c.refresh(ctx, s); rerr != nil {
		return fmt.Errorf("%w (refresh failed: %v)", err, rerr)
	}
	c.mu.RLock()
	s = c.session
	c.mu.RUnlock()
	return c.call(ctx, http.MethodGet, c.serviceURL, method, params, nil, s.AccessJwt, out)
}

func (c *Client) refresh(ctx context.Context, old *session) error {
	var s session
	if err := c.call(ctx, http.MethodPost, c.serviceURL, "com.atproto.server.refreshSession", nil, nil, old.RefreshJwt, &s); err != nil {
		return err
	}
	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()
	c.log.Debug("session refreshed")
	return nil
}

func (c *Client) call(ctx context.Context, httpMethod, base, method string, params url.Values, body []byte, token string, out any) error {
	endpoint := base + "/xrpc/" + method
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		xerr := &XRPCError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, xerr); jsonErr != nil || xerr.Name == "" {
			xerr.Name = http.StatusText(resp.StatusCode)
		}
		return xerr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}
