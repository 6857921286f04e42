package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "text-embedding-004"

// GeminiEmbedder calls the Gemini embeddings API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder fails with ErrMissingCredentials before any network use
// when apiKey is empty.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingCredentials
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

func (g *GeminiEmbedder) Model() string { return g.model }

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), nil)
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embeddings[0].Values, nil
}

var (
	rateLimitMarkers   = []string{"429", "RESOURCE_EXHAUSTED", "rate limit", "quota"}
	unavailableMarkers = []string{"401", "403", "UNAUTHENTICATED", "PERMISSION_DENIED", "API_KEY_INVALID", "API key not valid"}
)

// classifyGeminiError maps provider errors onto the package sentinels.
func classifyGeminiError(err error) error {
	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
	)
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	msg := err.Error()
	switch {
	case containsAny(msg, rateLimitMarkers):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case containsAny(msg, unavailableMarkers):
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return fmt.Errorf("gemini embed: %w", err)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
