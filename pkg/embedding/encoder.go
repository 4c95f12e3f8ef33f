// Package embedding provides the text-embedding client used to index and
// search moderated messages. The encoder talks to an OpenAI-compatible
// /embeddings endpoint and enforces a fixed vector dimension so that every
// stored vector is comparable.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Encoder turns message text into fixed-dimension vectors.
type Encoder struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	client    *http.Client

	mu     sync.Mutex
	warmed bool
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Encoder) { e.client = hc }
}

// NewEncoder creates an embedding client. baseURL is the API base; the
// /embeddings path is appended. dimension is the expected vector length and
// every response is validated against it.
func NewEncoder(baseURL, apiKey, model string, dimension int, opts ...Option) *Encoder {
	e := &Encoder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimension returns the vector length the encoder enforces.
func (e *Encoder) Dimension() int { return e.dimension }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Warm issues a single throwaway embedding call so that the first real
// message does not pay model cold-start latency. It runs at most once per
// encoder; failures are returned but leave the encoder usable.
func (e *Encoder) Warm(ctx context.Context) error {
	e.mu.Lock()
	if e.warmed {
		e.mu.Unlock()
		return nil
	}
	e.warmed = true
	e.mu.Unlock()

	_, err := e.Encode(ctx, "warmup")
	if err != nil {
		return fmt.Errorf("embedding warmup: %w", err)
	}
	return nil
}

// Encode embeds a single text.
func (e *Encoder) Encode(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EncodeBatch embeds texts in order. The returned slice has one vector per
// input text; every vector has exactly Dimension elements.
func (e *Encoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Data) != len(texts) {
		return nil, fmt.Errorf("embedding endpoint returned %d vectors for %d inputs", len(decoded.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range decoded.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding endpoint returned out-of-range index %d", item.Index)
		}
		if len(item.Embedding) != e.dimension {
			return nil, &DimensionError{Want: e.dimension, Got: len(item.Embedding)}
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embedding endpoint returned no vector for input %d", i)
		}
	}
	return vectors, nil
}
