package feed

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when the requested actor does not exist
var ErrNotFound = errors.New("actor not found")

// XRPCError is an error body returned by an XRPC endpoint
type XRPCError struct {
	Status  int    `json:"-"`
	Name    string `json:"error"`
	Message string `json:"message"`
}

func (e *XRPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("xrpc %d %s: %s", e.Status, e.Name, e.Message)
	}
	return fmt.Sprintf("xrpc %d %s", e.Status, e.Name)
}

// Is lets errors.Is(err, ErrNotFound) match missing profiles
func (e *XRPCError) Is(target error) bool {
	if target != ErrNotFound {
		return false
	}
	if e.Status == 404 || e.Name == "ActorNotFound" {
		return true
	}
	return e.Status == 400 && strings.Contains(strings.ToLower(e.Message), "not found")
}

// expired reports an access token that needs refreshing
func (e *XRPCError) expired() bool {
	return e.Name == "ExpiredToken"
}

type sessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type session struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	Handle     string `json:"handle"`
	DID        string `json:"did"`
}

// Profile is the subset of app.bsky.actor.getProfile used here
type Profile struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	PostsCount  int    `json:"postsCount"`
}

// FeedPage is one page of app.bsky.feed.getAuthorFeed
type FeedPage struct {
	Cursor string     `json:"cursor"`
	Feed   []FeedItem `json:"feed"`
}

// FeedItem wraps a post view
type FeedItem struct {
	Post PostView `json:"post"`
}

// PostView is a post as returned by the AppView
type PostView struct {
	URI    string      `json:"uri"`
	CID    string      `json:"cid"`
	Author Author      `json:"author"`
	Record *PostRecord `json:"record"`
}

// Author identifies a post author
type Author struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

// PostRecord is the app.bsky.feed.post record
type PostRecord struct {
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
	Embed     *Embed `json:"embed"`
}

// Embed is the record embed; only external link cards are used
type Embed struct {
	Type     string    `json:"$type"`
	External *External `json:"external"`
}

// External is a link card
type External struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
}
