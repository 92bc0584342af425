// Package llm talks to the generation and embedding endpoints. Two backends implement the
// same Client contract: an OpenAI-compatible HTTP API and the native Ollama API. The backend
// is picked once at startup by New.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/embedding"
	"github.com/hyperjump/shiryo/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Request is one generation call.
type Request struct {
	Prompt string
	// System is an optional instruction block sent ahead of Prompt.
	System string
	// Model overrides the client's default model.
	Model string
	// JSON asks the backend to constrain output to a JSON object.
	JSON bool
}

// Generator produces text for a prompt. Callers bound the call with ctx.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Client generates text and embeddings against one backend.
type Client interface {
	Generator
	embedding.Embedder
}

// Option configures a client.
type Option func(*base)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *base) {
		if c != nil {
			b.http = c
		}
	}
}

// New returns the client for the configured backend.
func New(cfg config.LLMConfig, emb config.EmbeddingConfig, opts ...Option) (Client, error) {
	b := newBase(cfg, emb, opts...)
	switch cfg.Backend {
	case config.LLMOpenAI, "":
		return &OpenAIClient{base: b, baseURL: openAIBaseURL(cfg.BaseURL)}, nil
	case config.LLMOllama:
		return &OllamaClient{base: b, baseURL: ollamaBaseURL(cfg.BaseURL)}, nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("llm http %d: %s", e.StatusCode, e.Body)
}

// classify marks connection failures and gateway errors as ErrUpstreamUnavailable.
// Context cancellation is returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var he *HTTPError
	if errors.As(err, &he) {
		switch he.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
		}
		return err
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	return err
}

func openAIBaseURL(u string) string {
	u = strings.TrimRight(u, "/")
	if !strings.HasSuffix(u, "/v1") {
		u += "/v1"
	}
	return u
}

func ollamaBaseURL(u string) string {
	return strings.TrimSuffix(strings.TrimRight(u, "/"), "/v1")
}

// limiter returns nil when no throttle is configured.
func limiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
