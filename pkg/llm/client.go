// Package llm is the JSON-in/JSON-out chat-completions client used by the
// moderation pipeline. Completions are expected to carry a ```json fenced
// block in the assistant content; Complete extracts and returns its payload.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sneakbots/sentinel/pkg/version"
)

// Message roles accepted by the completion endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System is a convenience constructor for a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User is a convenience constructor for a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Client talks to an OpenAI-compatible chat-completions endpoint.
// One client is created per worker and shares its HTTP connection pool
// across the worker's task pool.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (used by tests and for
// custom timeouts).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a completion client. baseURL is the API base, e.g.
// "https://api.mistral.ai/v1"; the /chat/completions path is appended.
func NewClient(baseURL, apiKey, model string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete posts the messages and returns the raw JSON payload extracted
// from the assistant's fenced block. Callers unmarshal into their own
// result types. Failure modes are signalled distinctly: *TransportError,
// *StatusError, *ProtocolError (which wraps ErrMissingFence for a missing
// fence).
func (c *Client) Complete(ctx context.Context, messages []Message) (json.RawMessage, error) {
	payload, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.Full())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &ProtocolError{Reason: "decoding response", Err: err}
	}
	if len(decoded.Choices) == 0 {
		return nil, &ProtocolError{Reason: "response has no choices"}
	}

	raw, err := ExtractFencedJSON(decoded.Choices[0].Message.Content)
	if err != nil {
		return nil, &ProtocolError{Reason: "extracting fenced block", Err: err}
	}
	return raw, nil
}
