// Package entities implements the Entity Extraction Coordinator (C8, §4.8)
// and its HTTP collaborator (§6.1): a named-entity and relation extraction
// service gated by explicit model load/unload RPCs so it never contends
// with the embedding provider for the same accelerator.
package entities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	pkgerrors "github.com/corpusgraph/ingestor/internal/pkg/errors"
)

// Classification is one label/confidence pair returned by /classify/batch.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ExtractedEntity is one entity returned by /extract/batch.
type ExtractedEntity struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Span       []int   `json:"span,omitempty"`
}

// ExtractedRelation is one binary relation returned by /extract/batch.
type ExtractedRelation struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"object"`
	Object     string  `json:"-"`
	Confidence float64 `json:"confidence"`
}

// extractedRelationWire is the type /extract/batch relations are decoded
// into; its json tags follow §6.1's documented body. ExtractedRelation's own
// json tags do not match that body (Predicate is tagged "object", Object is
// not serialised), so ExtractBatch copies each decoded relation into an
// ExtractedRelation field by field.
type extractedRelationWire struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// ExtractResult is one text's worth of extraction results.
type ExtractResult struct {
	Entities  []ExtractedEntity
	Relations []ExtractedRelation
}

// Preset names a domain's configured entity/relation type vocabulary
// (§6.1 GET /presets).
type Preset struct {
	EntityTypes   []string `json:"entity_types"`
	RelationTypes []string `json:"relation_types"`
	Enabled       *bool    `json:"enabled,omitempty"`
}

// ServiceConfig is the subset of GET /config this coordinator cares about.
type ServiceConfig struct {
	SkipEmbeddingTypes []string `json:"skip_embedding_types"`
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string `json:"status"`
	ModelName string `json:"model_name"`
	Device    string `json:"device"`
}

// Client is the HTTP collaborator described by §6.1. Every call times out
// independently and client-side chunks batches to at most MaxTextsPerCall
// texts, scaling its timeout with batch size so one large node doesn't
// starve the rest of the batch's budget.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	maxTextsPerCall int
	baseTimeout     time.Duration
	perTextTimeout  time.Duration
}

func NewClient(baseURL string, maxTextsPerCall int, baseTimeout, perTextTimeout time.Duration) *Client {
	return &Client{
		httpClient:      &http.Client{},
		baseURL:         baseURL,
		maxTextsPerCall: maxTextsPerCall,
		baseTimeout:     baseTimeout,
		perTextTimeout:  perTextTimeout,
	}
}

func (c *Client) timeoutFor(n int) time.Duration {
	return c.baseTimeout + time.Duration(n)*c.perTextTimeout
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.New(pkgerrors.KindEntityServiceUnavailable, "", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.New(pkgerrors.KindEntityServiceUnavailable, "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return pkgerrors.New(pkgerrors.KindEntityTimeout, "", err)
		}
		return pkgerrors.New(pkgerrors.KindEntityServiceUnavailable, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return pkgerrors.New(pkgerrors.KindEntityServiceUnavailable, "", fmt.Errorf("entity service returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return pkgerrors.New(pkgerrors.KindEntityServiceUnavailable, "", fmt.Errorf("entity service rejected request: %d", resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.New(pkgerrors.KindEntityTimeout, "", err)
	}
	return nil
}

// Health probes availability; the coordinator treats any error here as
// "service unreachable" and skips the entity phase entirely (§4.8 step 1).
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var out HealthStatus
	err := c.do(ctx, http.MethodGet, "/health", nil, &out, c.baseTimeout)
	return out, err
}

type loadModelResponse struct {
	Status   string `json:"status"`
	WasLoaded bool  `json:"was_loaded"`
}

func (c *Client) LoadModel(ctx context.Context) (wasLoaded bool, err error) {
	var out loadModelResponse
	if err := c.do(ctx, http.MethodPost, "/model/load", nil, &out, c.baseTimeout); err != nil {
		return false, err
	}
	return out.WasLoaded, nil
}

func (c *Client) UnloadModel(ctx context.Context) (wasLoaded bool, err error) {
	var out loadModelResponse
	if err := c.do(ctx, http.MethodPost, "/model/unload", nil, &out, c.baseTimeout); err != nil {
		return false, err
	}
	return out.WasLoaded, nil
}

type classifyResponse struct {
	Classifications [][]Classification `json:"classifications"`
}

// ClassifyBatch chunks texts to MaxTextsPerCall per HTTP call and
// concatenates results back into one per-text slice in input order.
func (c *Client) ClassifyBatch(ctx context.Context, texts []string) ([][]Classification, error) {
	var all [][]Classification
	for _, chunk := range chunkStrings(texts, c.maxTextsPerCall) {
		var out classifyResponse
		if err := c.do(ctx, http.MethodPost, "/classify/batch", chunk, &out, c.timeoutFor(len(chunk))); err != nil {
			return nil, err
		}
		all = append(all, out.Classifications...)
	}
	return all, nil
}

type extractRequest struct {
	Texts             []string `json:"texts"`
	EntityTypes       []string `json:"entity_types"`
	RelationTypes     []string `json:"relation_types"`
	IncludeConfidence bool     `json:"include_confidence"`
	IncludeSpans      bool     `json:"include_spans"`
	BatchSize         int      `json:"batch_size"`
}

type extractResponseEntry struct {
	Entities  []ExtractedEntity        `json:"entities"`
	Relations []extractedRelationWire  `json:"relations"`
}

type extractResponse struct {
	Results []extractResponseEntry `json:"results"`
}

// ExtractBatch sends one combo's worth of texts against the merged
// entity/relation type vocabulary (§4.8 step 6), chunking client-side.
func (c *Client) ExtractBatch(ctx context.Context, texts []string, entityTypes, relationTypes []string) ([]ExtractResult, error) {
	var all []ExtractResult
	for _, chunk := range chunkStrings(texts, c.maxTextsPerCall) {
		req := extractRequest{
			Texts:             chunk,
			EntityTypes:       entityTypes,
			RelationTypes:     relationTypes,
			IncludeConfidence: true,
			IncludeSpans:      true,
			BatchSize:         len(chunk),
		}
		var out extractResponse
		if err := c.do(ctx, http.MethodPost, "/extract/batch", req, &out, c.timeoutFor(len(chunk))); err != nil {
			return nil, err
		}
		for _, entry := range out.Results {
			rels := make([]ExtractedRelation, len(entry.Relations))
			for i, w := range entry.Relations {
				rels[i] = ExtractedRelation{Subject: w.Subject, Predicate: w.Predicate, Object: w.Object, Confidence: w.Confidence}
			}
			all = append(all, ExtractResult{Entities: entry.Entities, Relations: rels})
		}
	}
	return all, nil
}

func (c *Client) Presets(ctx context.Context) (map[string]Preset, error) {
	var out map[string]Preset
	err := c.do(ctx, http.MethodGet, "/presets", nil, &out, c.baseTimeout)
	return out, err
}

func (c *Client) Config(ctx context.Context) (ServiceConfig, error) {
	var out ServiceConfig
	err := c.do(ctx, http.MethodGet, "/config", nil, &out, c.baseTimeout)
	return out, err
}

func chunkStrings(texts []string, size int) [][]string {
	if size <= 0 {
		size = len(texts)
	}
	var out [][]string
	for i := 0; i < len(texts); i += size {
		end := i + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[i:end])
	}
	return out
}
