package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hyperjump/shiryo/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// base holds what both backends share: transport, auth, throttle and defaults.
type base struct {
	http        *http.Client
	apiKey      string
	model       string
	temperature float64
	limiter     *rate.Limiter
	emb         config.EmbeddingConfig
	logger      *zap.Logger
}

func newBase(cfg config.LLMConfig, emb config.EmbeddingConfig, opts ...Option) *base {
	b := &base{
		http:        &http.Client{Timeout: cfg.Timeout},
		apiKey:      cfg.APIKey,
		model:       cfg.Models.Chat,
		temperature: cfg.Temperature,
		limiter:     limiter(cfg.RequestsPerSecond),
		emb:         emb,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *base) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return b.model
}

// postJSON sends body to url and decodes the response into out.
func (b *base) postJSON(ctx context.Context, url string, body, out any) error {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return classify(err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return classify(readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classify(&HTTPError{StatusCode: resp.StatusCode, Body: string(raw)})
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Dimensions is unknown until the first response for remote models; the configured
// value is reported.
func (b *base) Dimensions() int {
	return b.emb.Dimensions
}

// Close releases idle connections.
func (b *base) Close() error {
	b.http.CloseIdleConnections()
	return nil
}
