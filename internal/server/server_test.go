package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/civicner/internal/model"
)

type fakeExtractor struct{}

func (fakeExtractor) Extract(text string) model.EnrichmentResult {
	r := model.NewEnrichmentResult()
	if strings.Contains(text, "Leeds") {
		r.Locations.Add("Leeds")
	}
	if strings.Contains(text, "Councillor Jane Doe") {
		r.AddPerson("Jane Doe", model.RoleCouncillor)
	}
	if strings.Contains(text, "panic") {
		panic("boom")
	}
	return r
}

func (f fakeExtractor) ExtractLocationsOnly(text string) model.LocationSet {
	return f.Extract(text).Locations
}

func newTestServer(t *testing.T, maxText int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(fakeExtractor{}, model.ServerConfig{MaxTextBytes: maxText}, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, 0)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Content-Type"))
}

func TestExtractEndpoint(t *testing.T) {
	srv := newTestServer(t, 0)

	resp, body := post(t, srv.URL+"/v1/extract", `{"text":"Councillor Jane Doe visited Leeds"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []any{"Leeds"}, body["locations"])
	require.Equal(t, []any{map[string]any{"name": "Jane Doe", "role": "Councillor"}}, body["persons"])

	resp, body = post(t, srv.URL+"/v1/extract", `{"text":""}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []any{}, body["locations"])
	require.Equal(t, []any{}, body["persons"])
}

func TestLocationsEndpoint(t *testing.T) {
	srv := newTestServer(t, 0)

	resp, body := post(t, srv.URL+"/v1/locations", `{"text":"Councillor Jane Doe visited Leeds"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []any{"Leeds"}, body["locations"])
	require.NotContains(t, body, "persons")
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer(t, 16)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{"text":`, http.StatusBadRequest},
		{"missing text", `{"body":"Leeds"}`, http.StatusBadRequest},
		{"text too large", `{"text":"` + strings.Repeat("a", 17) + `"}`, http.StatusRequestEntityTooLarge},
		{"body too large", `{"text":"a","pad":"` + strings.Repeat("x", 2048) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, srv.URL+"/v1/extract", tt.body)
			require.Equal(t, tt.status, resp.StatusCode)
			require.NotEmpty(t, body["error"])
		})
	}
}

func TestRecoverer(t *testing.T) {
	srv := newTestServer(t, 0)
	resp, err := http.Post(srv.URL+"/v1/extract", "application/json", strings.NewReader(`{"text":"panic"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, 0)
	resp, err := http.Get(srv.URL + "/v1/extract")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := New(fakeExtractor{}, model.ServerConfig{BindAddr: addr}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunReportsListenError(t *testing.T) {
	s := New(fakeExtractor{}, model.ServerConfig{BindAddr: "256.0.0.1:bad"}, nil)
	require.Error(t, s.Run(context.Background()))
}
