// Package embedding acquires text embeddings from an external provider under
// bounded concurrency, rate limiting and retry with backoff.
package embedding

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrMissingCredentials is returned at construction when no API key is configured.
	ErrMissingCredentials = errors.New("embedding provider credentials are missing")
	// ErrRateLimited marks a provider response that may be retried after backing off.
	ErrRateLimited = errors.New("embedding provider rate limited")
	// ErrProviderUnavailable aborts a whole batch: the provider rejected the
	// credentials or could not be reached.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrEmptyEmbedding is returned when the provider answered without a vector.
	ErrEmptyEmbedding = errors.New("provider returned no embedding")
)

// Embedder produces one vector for one text.
type Embedder interface {
	Model() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider embeds a batch: vectors[i] belongs to texts[i] and is empty when
// that text could not be embedded. Only batch-level failures are returned.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NormalizeText applies NFKC and collapses whitespace.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// CacheKey is sha1(model|text).
func CacheKey(model, text string) string {
	sum := sha1.Sum([]byte(model + "|" + text))
	return hex.EncodeToString(sum[:])
}
