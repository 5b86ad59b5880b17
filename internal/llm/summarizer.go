package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/civicner/internal/logger"
	"github.com/ppiankov/civicner/internal/model"
)

// Summarizer produces optional run digests. Digest failures never fail a run;
// they are reported as warnings on the returned digest.
type Summarizer struct {
	provider Provider
	config   Config
	log      *slog.Logger
}

// NewSummarizer creates a summarizer; a disabled config yields a no-op summarizer
func NewSummarizer(config Config, log *slog.Logger) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Summarizer{provider: provider, config: config, log: logger.OrDiscard(log)}, nil
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s.provider != nil
}

// ProviderName returns the configured provider, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// GenerateDigest summarises records. It returns nil when disabled.
func (s *Summarizer) GenerateDigest(ctx context.Context, records []model.Record) (*model.Digest, error) {
	if s.provider == nil {
		return nil, nil
	}
	log := logger.OrDiscard(s.log)

	digest := &model.Digest{
		Provider:       s.provider.Name(),
		Model:          s.config.Model,
		StrictEvidence: s.config.StrictEvidence,
	}

	if !s.provider.IsAvailable(ctx) {
		digest.Warnings = append(digest.Warnings, fmt.Sprintf("LLM provider %s is not available (check credentials or endpoint)", digest.Provider))
		log.Warn("llm provider not available", "provider", digest.Provider)
		return digest, nil
	}
	digest.Enabled = true

	allowed := AllowedURLs(records)
	resp, err := s.provider.Digest(ctx, DigestRequest{
		Records:     records,
		AllowedURLs: allowed,
		Model:       s.config.Model,
		MaxTokens:   s.config.MaxTokens,
	})
	if err != nil {
		digest.Warnings = append(digest.Warnings, fmt.Sprintf("Digest generation failed: %v", err))
		log.Warn("llm digest failed", "provider", digest.Provider, "error", err)
		return digest, nil
	}

	digest.SummaryMD = resp.Summary
	digest.Model = resp.Model
	if resp.TokensUsed > 0 {
		digest.Warnings = append(digest.Warnings, fmt.Sprintf("Tokens used: %d", resp.TokensUsed))
	}
	if s.config.StrictEvidence {
		digest.Warnings = append(digest.Warnings, fmt.Sprintf("Verified %d citations against %d run URLs", len(resp.CitedURLs), len(allowed)))
	}
	return digest, nil
}

// RenderMarkdown renders a digest as a standalone Markdown document
func RenderMarkdown(d *model.Digest) string {
	if d == nil || !d.Enabled {
		return ""
	}

	var b strings.Builder
	b.WriteString("# Run Digest\n\n")
	b.WriteString("> GENERATED CONTENT. Locations and roles in the records were determined independently of this text.\n\n")
	fmt.Fprintf(&b, "- **Provider**: %s\n", d.Provider)
	if d.Model != "" {
		fmt.Fprintf(&b, "- **Model**: %s\n", d.Model)
	}
	fmt.Fprintf(&b, "- **Strict Evidence Mode**: %t\n\n", d.StrictEvidence)

	if d.SummaryMD == "" {
		b.WriteString("_No digest generated._\n")
	} else {
		b.WriteString(d.SummaryMD)
		b.WriteString("\n")
	}

	if len(d.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range d.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}
