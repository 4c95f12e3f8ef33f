package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/sneakbots/sentinel/pkg/llm"
	"github.com/sneakbots/sentinel/pkg/models"
)

// Completer is the chat-completion dependency shared by the validator and
// the pipeline.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (json.RawMessage, error)
}

// Validator screens messages for prompt injection before they reach the
// scoring prompts.
type Validator struct {
	llm         Completer
	maxAttempts int
	logger      *slog.Logger
}

// NewValidator creates a validator. maxAttempts < 1 is treated as 1.
func NewValidator(completer Completer, maxAttempts int, logger *slog.Logger) *Validator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{llm: completer, maxAttempts: maxAttempts, logger: logger}
}

type maliciousVerdict struct {
	Malicious int `json:"malicious"`
}

// Classify returns the malicious verdict for text. Transient completion
// failures and malformed verdicts are retried up to the attempt budget;
// when the budget is spent the result is MaliciousUnknown and the caller
// decides how to proceed.
func (v *Validator) Classify(ctx context.Context, text string) models.MaliciousState {
	messages := []llm.Message{
		llm.System(securitySystemPrompt),
		llm.User(text),
	}

	for attempt := 1; attempt <= v.maxAttempts; attempt++ {
		raw, err := v.llm.Complete(ctx, messages)
		if err != nil {
			if ctx.Err() != nil || !llm.IsRetryable(err) {
				v.logger.Warn("Prompt validation failed", "error", err)
				return models.MaliciousUnknown
			}
			v.logger.Warn("Prompt validation attempt failed",
				"attempt", attempt,
				"max_attempts", v.maxAttempts,
				"error", err)
			continue
		}

		var verdict maliciousVerdict
		if err := json.Unmarshal(raw, &verdict); err != nil {
			v.logger.Warn("Prompt validation returned malformed verdict",
				"attempt", attempt,
				"error", err)
			continue
		}

		switch verdict.Malicious {
		case 0:
			return models.NotMalicious
		case 1:
			return models.Malicious
		default:
			v.logger.Warn("Prompt validation returned out-of-range verdict",
				"attempt", attempt,
				"malicious", verdict.Malicious)
		}
	}
	return models.MaliciousUnknown
}
