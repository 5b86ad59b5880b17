package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/civicner/internal/model"
)

// ErrCitationLeak is returned in strict mode when a digest cites a URL that
// is not part of the run
var ErrCitationLeak = errors.New("citation leak")

const (
	maxPromptURLs  = 20
	maxPromptPosts = 15
	maxPromptTop   = 8
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Digest writes a narrative summary of a run's records
	Digest(ctx context.Context, req DigestRequest) (*DigestResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// DigestRequest contains the input for a run digest
type DigestRequest struct {
	Records []model.Record

	// AllowedURLs is the only set of URLs the digest may cite in strict mode
	AllowedURLs []string

	// Prompt overrides BuildPrompt when set
	Prompt string

	Model     string
	MaxTokens int
}

// DigestResponse contains the provider output
type DigestResponse struct {
	Summary    string
	CitedURLs  []string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	Model string

	// APIKey for OpenAI; ignored by ollama
	APIKey string

	// BaseURL for OpenAI-compatible endpoints
	BaseURL string

	Timeout int // seconds

	// StrictEvidence rejects digests citing URLs outside the run
	StrictEvidence bool

	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns the digest defaults: disabled, strict
func DefaultConfig() Config {
	return Config{
		Timeout:        30,
		StrictEvidence: true,
		MaxTokens:      1000,
	}
}

// AllowedURLs collects the post and link URLs of a run
func AllowedURLs(records []model.Record) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, rec := range records {
		for _, u := range []string{rec.BlueskyURL, rec.LinkURL} {
			if u != "" && !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}
	return urls
}

// BuildPrompt constructs the digest prompt for a run
func BuildPrompt(records []model.Record, allowedURLs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are summarising posts from a UK political news feed. Locations and person roles were extracted automatically and may be incomplete.

RULES:
1. You MUST ONLY cite URLs from this allowed list:
%s

2. DO NOT cite any other source or speculate beyond the posts below.
3. Report what the posts say and who and where they mention. Do not judge whether claims are true.
4. Refer to people by the role given (Councillor, MP, Candidate, Leader, Deputy Leader, Political Figure).

Run overview:
- Posts: %d
- Posts with links: %d
- Most mentioned locations: %s
- Most mentioned people: %s

Posts:
`, joinURLs(allowedURLs), len(records), countLinked(records), topLocations(records), topPersons(records))

	for i, rec := range records {
		if i >= maxPromptPosts {
			fmt.Fprintf(&b, "... and %d more posts\n", len(records)-maxPromptPosts)
			break
		}
		fmt.Fprintf(&b, "- [%s] %s %s\n", rec.CreatedAt, rec.BlueskyURL, oneLine(rec.Text, 240))
		if len(rec.AllLocations) > 0 {
			fmt.Fprintf(&b, "  locations: %s\n", strings.Join(rec.AllLocations, ", "))
		}
		if len(rec.AllPersons) > 0 {
			fmt.Fprintf(&b, "  people: %s\n", formatPersons(rec.AllPersons))
		}
	}

	b.WriteString("\nWrite a short Markdown digest (one paragraph plus up to five bullets) of the main places, people and themes.")
	return b.String()
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "(No URLs available)"
	}
	var b strings.Builder
	for i, u := range urls {
		if i >= maxPromptURLs {
			fmt.Fprintf(&b, "\n... and %d more URLs", len(urls)-maxPromptURLs)
			break
		}
		b.WriteString("\n- " + u)
	}
	return b.String()
}

func countLinked(records []model.Record) int {
	n := 0
	for _, rec := range records {
		if rec.HasLink() {
			n++
		}
	}
	return n
}

func topLocations(records []model.Record) string {
	counts := make(map[string]int)
	for _, rec := range records {
		for _, l := range rec.AllLocations {
			counts[l]++
		}
	}
	return topN(counts)
}

func topPersons(records []model.Record) string {
	counts := make(map[string]int)
	for _, rec := range records {
		for _, p := range rec.AllPersons {
			counts[fmt.Sprintf("%s (%s)", p.Name, p.Role)]++
		}
	}
	return topN(counts)
}

func topN(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > maxPromptTop {
		keys = keys[:maxPromptTop]
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s ×%d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}

func formatPersons(persons []model.PersonMention) string {
	parts := make([]string, len(persons))
	for i, p := range persons {
		parts[i] = fmt.Sprintf("%s (%s)", p.Name, p.Role)
	}
	return strings.Join(parts, ", ")
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
