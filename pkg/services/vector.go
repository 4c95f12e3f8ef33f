package services

import (
	"strconv"
	"strings"
)

// formatVector converts []float32 to a string like "[0.1,0.2,0.3]" suitable
// for pgvector's text input format.
func formatVector(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
