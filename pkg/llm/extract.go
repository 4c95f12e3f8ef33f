package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	fenceOpen  = "```json"
	fenceClose = "```"
)

// ExtractFencedJSON pulls the payload out of the first ```json fenced block
// in content and validates that it parses. Leading and trailing prose around
// the fence is tolerated; the payload inside must be valid JSON.
func ExtractFencedJSON(content string) (json.RawMessage, error) {
	start := strings.Index(content, fenceOpen)
	if start < 0 {
		return nil, ErrMissingFence
	}
	rest := content[start+len(fenceOpen):]

	end := strings.Index(rest, fenceClose)
	if end < 0 {
		return nil, ErrMissingFence
	}
	payload := strings.TrimSpace(rest[:end])

	if !json.Valid([]byte(payload)) {
		return nil, fmt.Errorf("fenced block is not valid json")
	}
	return json.RawMessage(payload), nil
}
