package llm

import (
	"context"
	"fmt"

	"github.com/hyperjump/shiryo/internal/embedding"
	"github.com/hyperjump/shiryo/internal/models"
	"go.uber.org/zap"
)

// OllamaClient speaks the native Ollama API.
type OllamaClient struct {
	*base
	baseURL string
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Format  string        `json:"format,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Generate runs one non-streaming generation.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	body := ollamaGenerateRequest{
		Model:   c.modelFor(req),
		Prompt:  req.Prompt,
		System:  req.System,
		Options: ollamaOptions{Temperature: c.temperature},
	}
	if req.JSON {
		body.Format = "json"
	}
	var resp ollamaGenerateResponse
	if err := c.postJSON(ctx, c.baseURL+"/api/generate", body, &resp); err != nil {
		return "", fmt.Errorf("ollama generate failed: %w", err)
	}
	c.logger.Debug("ollama generate", zap.String("model", body.Model), zap.Int("chars", len(resp.Response)))
	return resp.Response, nil
}

// Embed returns the embedding of one text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in configured batch sizes with bounded concurrency.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedding.Batch(ctx, texts, c.emb.BatchSize, c.emb.Concurrency, c.embed)
}

func (c *OllamaClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp ollamaEmbedResponse
	if err := c.postJSON(ctx, c.baseURL+"/api/embed", ollamaEmbedRequest{Model: c.emb.Model, Input: texts}, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs: %w", len(resp.Embeddings), len(texts), models.ErrMalformedOutput)
	}
	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		out[i] = toFloat32(e)
	}
	return out, nil
}
