// Package providers implements the embedding.Provider collaborators named
// in §6.2: OpenAI's hosted embeddings endpoint, an on-prem HTTP service
// speaking the same wire shape, and a local Ollama-style HTTP embedder.
package providers

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	pkgerrors "github.com/corpusgraph/ingestor/internal/pkg/errors"
)

// OpenAI wraps the hosted embeddings API.
type OpenAI struct {
	client     openai.Client
	model      string
	dimensions int
}

func NewOpenAI(apiKey, baseURL, model string, dimensions int) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model, dimensions: dimensions}
}

func (o *OpenAI) Name() string     { return "openai" }
func (o *OpenAI) Model() string    { return o.model }
func (o *OpenAI) Dimensions() int  { return o.dimensions }

func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          o.model,
		Dimensions:     openai.Int(int64(o.dimensions)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindEmbeddingTimeout, "", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, pkgerrors.New(pkgerrors.KindEmbeddingProviderMissing, "", fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts)))
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	return out, nil
}
