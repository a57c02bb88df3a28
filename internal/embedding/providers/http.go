package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	pkgerrors "github.com/corpusgraph/ingestor/internal/pkg/errors"
)

// httpEmbedRequest/httpEmbedResponse is the shared wire shape on-prem and
// local embedding services speak (mirrors Ollama's /api/embed and the
// on-prem service's OpenAI-compatible surface closely enough that one
// request/response pair covers both).
type httpEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type httpEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// OnPrem talks to a self-hosted embedding service over plain HTTP.
type OnPrem struct {
	httpClient *http.Client
	baseURL    string
	model      string
	dimensions int
}

func NewOnPrem(baseURL, model string, dimensions int, timeout time.Duration) *OnPrem {
	return &OnPrem{httpClient: &http.Client{Timeout: timeout}, baseURL: baseURL, model: model, dimensions: dimensions}
}

func (p *OnPrem) Name() string    { return "onprem" }
func (p *OnPrem) Model() string   { return p.model }
func (p *OnPrem) Dimensions() int { return p.dimensions }

func (p *OnPrem) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return postEmbed(ctx, p.httpClient, p.baseURL+"/v1/embeddings", p.model, texts)
}

// Local talks to an Ollama-style local embedding server.
type Local struct {
	httpClient *http.Client
	baseURL    string
	model      string
	dimensions int
}

func NewLocal(baseURL, model string, dimensions int, timeout time.Duration) *Local {
	return &Local{httpClient: &http.Client{Timeout: timeout}, baseURL: baseURL, model: model, dimensions: dimensions}
}

func (l *Local) Name() string    { return "local" }
func (l *Local) Model() string   { return l.model }
func (l *Local) Dimensions() int { return l.dimensions }

func (l *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return postEmbed(ctx, l.httpClient, l.baseURL+"/api/embed", l.model, texts)
}

func postEmbed(ctx context.Context, client *http.Client, url, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(httpEmbedRequest{Model: model, Input: texts})
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindEmbeddingProviderMissing, "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindEmbeddingProviderMissing, "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindEmbeddingTimeout, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.KindEmbeddingProviderMissing, "", fmt.Errorf("embedding service returned %d", resp.StatusCode))
	}
	var out httpEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, pkgerrors.New(pkgerrors.KindEmbeddingTimeout, "", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, pkgerrors.New(pkgerrors.KindEmbeddingProviderMissing, "", fmt.Errorf("embedding service returned %d embeddings for %d inputs", len(out.Embeddings), len(texts)))
	}
	return out.Embeddings, nil
}
