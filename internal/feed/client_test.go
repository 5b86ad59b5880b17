package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/civicner/internal/model"
	"github.com/ppiankov/civicner/internal/worker"
)

// fakeAppView serves a fixed number of posts for one handle
type fakeAppView struct {
	handle    string
	total     int
	failPage  int // 1-based page that answers 500
	expireOne bool

	mu         sync.Mutex
	limits     []int
	authHeader []string
	refreshed  int
}

func (f *fakeAppView) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/xrpc/com.atproto.server.createSession":
		var req sessionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "app-password" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"accessJwt":"access-1","refreshJwt":"refresh-1","handle":"` + req.Identifier + `","did":"did:plc:me"}`))

	case "/xrpc/com.atproto.server.refreshSession":
		f.refreshed++
		_, _ = w.Write([]byte(`{"accessJwt":"access-2","refreshJwt":"refresh-2","handle":"me","did":"did:plc:me"}`))

	case "/xrpc/app.bsky.actor.getProfile":
		f.authHeader = append(f.authHeader, r.Header.Get("Authorization"))
		if f.expireOne && r.Header.Get("Authorization") == "Bearer access-1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"ExpiredToken","message":"Token has expired"}`))
			return
		}
		if r.URL.Query().Get("actor") != f.handle {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"InvalidRequest","message":"Profile not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(Profile{DID: "did:plc:target", Handle: f.handle, DisplayName: "Target", PostsCount: f.total})

	case "/xrpc/app.bsky.feed.getAuthorFeed":
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("cursor"))
		f.limits = append(f.limits, limit)
		if f.failPage == len(f.limits) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		page := FeedPage{}
		for i := offset; i < offset+limit && i < f.total; i++ {
			page.Feed = append(page.Feed, FeedItem{Post: PostView{
				URI:    fmt.Sprintf("at://did:plc:target/app.bsky.feed.post/rkey%d", i),
				Author: Author{Handle: f.handle},
				Record: &PostRecord{Text: fmt.Sprintf("post %d", i), CreatedAt: fmt.Sprintf("2024-05-%02dT10:00:00Z", i%28+1)},
			}})
		}
		if offset+limit < f.total {
			page.Cursor = strconv.Itoa(offset + limit)
		}
		_ = json.NewEncoder(w).Encode(page)

	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, f *fakeAppView) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		ServiceURL: srv.URL,
		PublicURL:  srv.URL + "/",
		HTTPClient: srv.Client(),
		Limiter:    worker.NewLimiter(1000, 10),
	})
}

func TestFetchPostsWithLimit(t *testing.T) {
	f := &fakeAppView{handle: "target.bsky.social", total: 250}
	c := newTestClient(t, f)

	posts, err := c.FetchPosts(context.Background(), "target.bsky.social", 150)
	require.NoError(t, err)
	require.Len(t, posts, 150)
	require.Equal(t, []int{100, 50}, f.limits)

	require.Equal(t, "at://did:plc:target/app.bsky.feed.post/rkey0", posts[0].URI)
	require.Equal(t, "https://bsky.app/profile/target.bsky.social/post/rkey0", posts[0].BlueskyURL)
	require.Equal(t, "post 0", posts[0].Text)
	require.Equal(t, "2024-05-01T10:00:00Z", posts[0].CreatedAt)
}

func TestFetchPostsAll(t *testing.T) {
	f := &fakeAppView{handle: "target.bsky.social", total: 250}
	c := newTestClient(t, f)

	posts, err := c.FetchPosts(context.Background(), "target.bsky.social", 0)
	require.NoError(t, err)
	require.Len(t, posts, 250)
	require.Equal(t, []int{100, 100, 100}, f.limits)
}

func TestFetchPostsKeepsPartialResults(t *testing.T) {
	f := &fakeAppView{handle: "target.bsky.social", total: 250, failPage: 2}
	c := newTestClient(t, f)

	posts, err := c.FetchPosts(context.Background(), "target.bsky.social", 0)
	require.Error(t, err)
	require.Len(t, posts, 100)

	var xerr *XRPCError
	require.ErrorAs(t, err, &xerr)
	require.Equal(t, http.StatusInternalServerError, xerr.Status)
}

func TestFetchPostsUnknownActor(t *testing.T) {
	c := newTestClient(t, &fakeAppView{handle: "target.bsky.social"})

	posts, err := c.FetchPosts(context.Background(), "nobody.bsky.social", 10)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, posts)
}

func TestFetchPostsCancelled(t *testing.T) {
	c := newTestClient(t, &fakeAppView{handle: "target.bsky.social", total: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchPosts(ctx, "target.bsky.social", 0)
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	f := &fakeAppView{handle: "target.bsky.social", total: 1}
	c := newTestClient(t, f)
	ctx := context.Background()

	require.Error(t, c.Login(ctx, "me.bsky.social", "wrong"))
	require.False(t, c.Authenticated())
	_, err := c.Profile(ctx, "target.bsky.social")
	require.NoError(t, err, "anonymous reads keep working after a failed login")

	require.NoError(t, c.Login(ctx, "me.bsky.social", "app-password"))
	require.True(t, c.Authenticated())
	_, err = c.Profile(ctx, "target.bsky.social")
	require.NoError(t, err)

	require.Equal(t, []string{"", "Bearer access-1"}, f.authHeader)
}

func TestExpiredTokenIsRefreshed(t *testing.T) {
	f := &fakeAppView{handle: "target.bsky.social", total: 1, expireOne: true}
	c := newTestClient(t, f)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "me.bsky.social", "app-password"))
	p, err := c.Profile(ctx, "target.bsky.social")
	require.NoError(t, err)
	require.Equal(t, "Target", p.DisplayName)
	require.Equal(t, 1, f.refreshed)
	require.Equal(t, []string{"Bearer access-1", "Bearer access-2"}, f.authHeader)
}

func TestToPost(t *testing.T) {
	v := PostView{
		URI:    "at://did:plc:abc/app.bsky.feed.post/3kxyz",
		Author: Author{Handle: "reporter.bsky.social"},
		Record: &PostRecord{
			Text:      "Council meeting tonight",
			CreatedAt: "2024-06-01T18:00:00Z",
			Embed: &Embed{Type: "app.bsky.embed.external", External: &External{
				URI: "https://example.org/story", Title: "Story", Description: "About Leeds",
			}},
		},
	}
	require.Equal(t, model.Post{
		URI:             v.URI,
		CreatedAt:       "2024-06-01T18:00:00Z",
		Text:            "Council meeting tonight",
		BlueskyURL:      "https://bsky.app/profile/reporter.bsky.social/post/3kxyz",
		LinkURL:         "https://example.org/story",
		LinkTitle:       "Story",
		LinkDescription: "About Leeds",
	}, ToPost(v))

	bare := ToPost(PostView{URI: "at://did:plc:abc/app.bsky.feed.post/3kxyz"})
	require.Empty(t, bare.BlueskyURL, "no handle, no web URL")
	require.Empty(t, bare.Text)
}

func TestHandleFromProfileURL(t *testing.T) {
	tests := map[string]string{
		"https://bsky.app/profile/reformexposed.bsky.social":          "reformexposed.bsky.social",
		"https://bsky.app/profile/reformexposed.bsky.social/post/3kx": "reformexposed.bsky.social",
		"reformexposed.bsky.social":                                   "reformexposed.bsky.social",
		"@reformexposed.bsky.social ":                                 "reformexposed.bsky.social",
	}
	for in, want := range tests {
		require.Equal(t, want, HandleFromProfileURL(in), in)
	}
}

func TestReadPostsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "posts.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"uri":"at://x/app.bsky.feed.post/1","text":"Hello Leeds","link_url":""}]`), 0o644))

	posts, err := ReadPostsFile(path)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, "Hello Leeds", posts[0].Text)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = ReadPostsFile(path)
	require.Error(t, err)

	_, err = ReadPostsFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestXRPCErrorIsNotFound(t *testing.T) {
	require.ErrorIs(t, &XRPCError{Status: 404}, ErrNotFound)
	require.ErrorIs(t, &XRPCError{Status: 400, Name: "ActorNotFound"}, ErrNotFound)
	require.NotErrorIs(t, &XRPCError{Status: 500, Name: "InternalServerError"}, ErrNotFound)
	require.Contains(t, (&XRPCError{Status: 400, Name: "InvalidRequest", Message: "bad"}).Error(), "InvalidRequest: bad")
}
