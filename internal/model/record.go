package model

import "time"

// Post is one feed item as supplied by the feed source
type Post struct {
	URI             string `json:"uri"`
	CreatedAt       string `json:"created_at"` // As reported by the feed, not re-parsed
	Text            string `json:"text"`
	BlueskyURL      string `json:"bluesky_url"`
	LinkURL         string `json:"link_url"`
	LinkTitle       string `json:"link_title"`
	LinkDescription string `json:"link_description"`
}

// HasLink reports whether the post embeds an external link
func (p Post) HasLink() bool {
	return p.LinkURL != ""
}

// LinkText is the text blob analysed for the linked page
func (p Post) LinkText() string {
	switch {
	case p.LinkTitle == "":
		return p.LinkDescription
	case p.LinkDescription == "":
		return p.LinkTitle
	default:
		return p.LinkTitle + " " + p.LinkDescription
	}
}

// Record is the flat, sink-facing output for a single post
type Record struct {
	ID string `json:"id"`
	Post

	TextLocations []string        `json:"text_locations"`
	TextPersons   []PersonMention `json:"text_persons"`
	LinkLocations []string        `json:"link_locations"`
	LinkPersons   []PersonMention `json:"link_persons"`
	AllLocations  []string        `json:"all_locations"` // Deduplicated union
	AllPersons    []PersonMention `json:"all_persons"`   // Role-resolved union
}

// NewRecord flattens the per-source results and their merge into a record
func NewRecord(id string, post Post, text, link, all EnrichmentResult) Record {
	return Record{
		ID:            id,
		Post:          post,
		TextLocations: text.Locations.Sorted(),
		TextPersons:   text.Mentions(),
		LinkLocations: link.Locations.Sorted(),
		LinkPersons:   link.Mentions(),
		AllLocations:  all.Locations.Sorted(),
		AllPersons:    all.Mentions(),
	}
}

// LinkMeta is the metadata read from a linked page
type LinkMeta struct {
	URL         string    `json:"url"`
	FinalURL    string    `json:"final_url,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	FetchMeta   FetchMeta `json:"fetch_meta"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// FetchMeta contains HTTP metadata from fetching a page
type FetchMeta struct {
	StatusCode   int               `json:"status_code"`
	ContentType  string            `json:"content_type,omitempty"`
	LastModified string            `json:"last_modified,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// Digest contains an optional LLM-written narrative of a run.
// It never feeds back into the records.
type Digest struct {
	Enabled        bool     `json:"enabled"`
	Provider       string   `json:"provider,omitempty"`
	Model          string   `json:"model,omitempty"`
	StrictEvidence bool     `json:"strict_evidence"`
	SummaryMD      string   `json:"summary_md,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}
