package llm

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/civicner/internal/model"
	"github.com/ppiankov/civicner/internal/util"
)

var urlPattern = regexp.MustCompile(`https?://[^\s)\]>"]+`)

// OpenAIProvider talks to OpenAI or any OpenAI-compatible endpoint
type OpenAIProvider struct {
	client *openai.Client
	config Config
	name   string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: util.NewTransport(model.HTTPConfig{
			HTTPProxy:  config.HTTPProxy,
			HTTPSProxy: config.HTTPSProxy,
			NoProxy:    config.NoProxy,
		}),
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		name:   "openai",
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return p.name
}

// IsAvailable lists models as a lightweight credentials check
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Digest generates a run digest with the Chat Completions API
func (p *OpenAIProvider) Digest(ctx context.Context, req DigestRequest) (*DigestResponse, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = BuildPrompt(req.Records, req.AllowedURLs)
	}

	modelName := firstNonEmpty(req.Model, p.config.Model, openai.GPT4oMini)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 1000
	}

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You write neutral digests of UK local politics posts and only cite the URLs you are given.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("%s API error: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from %s", p.name)
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	cited := extractURLs(summary)

	if p.config.StrictEvidence {
		allowed := make(map[string]bool, len(req.AllowedURLs))
		for _, u := range req.AllowedURLs {
			allowed[u] = true
		}
		for _, u := range cited {
			if !allowed[u] {
				return nil, fmt.Errorf("%w: disallowed URL %s", ErrCitationLeak, u)
			}
		}
	}

	return &DigestResponse{
		Summary:    summary,
		CitedURLs:  cited,
		Model:      modelName,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// extractURLs returns the distinct http(s) URLs in text, trailing punctuation trimmed
func extractURLs(text string) []string {
	seen := make(map[string]bool)
	var unique []string
	for _, u := range urlPattern.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:!?'")
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}
	return unique
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
