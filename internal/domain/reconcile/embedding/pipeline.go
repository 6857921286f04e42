package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/echo-reconcile/pkg/observability"
)

// Config bounds how the pipeline talks to the provider.
type Config struct {
	MaxInFlight       int
	BaseDelay         time.Duration
	MaxRetries        uint64
	ItemTimeout       time.Duration
	RequestsPerSecond float64 // 0 disables the limiter
	CacheTTL          time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxInFlight: 2,
		BaseDelay:   2 * time.Second,
		MaxRetries:  3,
		ItemTimeout: 60 * time.Second,
		CacheTTL:    time.Hour,
	}
}

func (c Config) Validate() error {
	switch {
	case c.MaxInFlight <= 0:
		return fmt.Errorf("embedding: max in-flight must be positive, got %d", c.MaxInFlight)
	case c.BaseDelay <= 0:
		return fmt.Errorf("embedding: base delay must be positive, got %s", c.BaseDelay)
	case c.ItemTimeout <= 0:
		return fmt.Errorf("embedding: item timeout must be positive, got %s", c.ItemTimeout)
	case c.RequestsPerSecond < 0:
		return fmt.Errorf("embedding: requests per second must not be negative")
	}
	return nil
}

// Pipeline implements Provider on top of a single-text Embedder.
type Pipeline struct {
	embedder Embedder
	cfg      Config
	cache    *cache.Cache
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewPipeline validates cfg and wires the cache and limiter.
func NewPipeline(embedder Embedder, cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if embedder == nil {
		return nil, ErrMissingCredentials
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{embedder: embedder, cfg: cfg, logger: logger}
	if cfg.CacheTTL > 0 {
		p.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	if cfg.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.MaxInFlight)
	}
	return p, nil
}

// Embed returns one vector per text. Blank texts, per-item failures, timeouts
// and exhausted retries leave an empty vector. ErrProviderUnavailable stops
// the batch and is returned along with whatever finished. Cancelling ctx stops
// new requests; unfinished items stay empty and no error is returned.
func (p *Pipeline) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	positions := make(map[string][]int, len(texts))
	var unique []string
	for i, raw := range texts {
		text := NormalizeText(raw)
		if text == "" {
			continue
		}
		if _, seen := positions[text]; !seen {
			unique = append(unique, text)
		}
		positions[text] = append(positions[text], i)
	}

	results := make([][]float32, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxInFlight)

	for k, text := range unique {
		if vec, ok := p.cached(text); ok {
			results[k] = vec
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			vec, err := p.embedOne(gctx, text)
			switch {
			case err == nil:
				observability.EmbeddingRequestsTotal.WithLabelValues("ok").Inc()
				results[k] = vec
				p.store(text, vec)
			case errors.Is(err, ErrProviderUnavailable):
				observability.EmbeddingRequestsTotal.WithLabelValues("unavailable").Inc()
				p.logger.Error("embedding provider unavailable", "error", err)
				return err
			default:
				observability.EmbeddingRequestsTotal.WithLabelValues("failed").Inc()
				p.logger.Warn("embedding failed, leaving text unmatched", "error", err, "text_len", len(text))
			}
			return nil
		})
	}
	err := g.Wait()

	for k, text := range unique {
		for _, i := range positions[text] {
			out[i] = results[k]
		}
	}
	for i := range out {
		if out[i] == nil {
			out[i] = []float32{}
		}
	}

	return out, err
}

func (p *Pipeline) embedOne(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ItemTimeout)
	defer cancel()

	backoff := retry.WithMaxRetries(p.cfg.MaxRetries, retry.NewExponential(p.cfg.BaseDelay))

	var vec []float32
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		v, err := p.embedder.Embed(ctx, text)
		if errors.Is(err, ErrRateLimited) {
			observability.EmbeddingRequestsTotal.WithLabelValues("rate_limited").Inc()
			p.logger.Info("embedding rate limited, backing off", "attempt", attempt)
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		if len(v) == 0 {
			return ErrEmptyEmbedding
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed after %d attempt(s): %w", attempt, err)
	}
	return vec, nil
}

func (p *Pipeline) cached(text string) ([]float32, bool) {
	if p.cache == nil {
		return nil, false
	}
	v, ok := p.cache.Get(CacheKey(p.embedder.Model(), text))
	if !ok {
		return nil, false
	}
	return slices.Clone(v.([]float32)), true
}

func (p *Pipeline) store(text string, vec []float32) {
	if p.cache == nil {
		return
	}
	p.cache.Set(CacheKey(p.embedder.Model(), text), slices.Clone(vec), cache.DefaultExpiration)
}
