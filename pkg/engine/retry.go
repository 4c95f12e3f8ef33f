package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sneakbots/sentinel/pkg/models"
)

// ErrRetriesExhausted is returned when the retry budget is spent without a
// usable evaluation. The message is dropped.
var ErrRetriesExhausted = errors.New("evaluation retries exhausted")

// PermanentError marks an error as deterministic: retrying the same input
// would reproduce it, so the wrapper surfaces it immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the retry wrapper will not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// EvaluateFunc is a single evaluation attempt. A nil evaluation with a nil
// error is an empty result, which is itself retryable.
type EvaluateFunc func(ctx context.Context) (*models.MessageEvaluation, error)

// Retrier wraps evaluation attempts with exponential backoff: the delay
// after failed attempt k is base * 2^(k-1).
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// NewRetrier creates a retrier. maxAttempts < 1 is treated as 1.
func NewRetrier(maxAttempts int, baseDelay time.Duration, logger *slog.Logger) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{maxAttempts: maxAttempts, baseDelay: baseDelay, logger: logger}
}

// Run executes fn until it yields a non-empty evaluation, a permanent error
// occurs, or the attempt budget is spent. After the budget the message is
// dropped: Run logs at ERROR level and returns ErrRetriesExhausted wrapping
// the last error, if any.
func (r *Retrier) Run(ctx context.Context, fn EvaluateFunc) (*models.MessageEvaluation, error) {
	delays := backoff.NewExponentialBackOff()
	delays.InitialInterval = r.baseDelay
	delays.RandomizationFactor = 0
	delays.Multiplier = 2
	delays.MaxInterval = r.baseDelay << uint(r.maxAttempts)
	delays.MaxElapsedTime = 0
	delays.Reset()

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		eval, err := fn(ctx)
		if err == nil && eval != nil {
			return eval, nil
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}

		if err != nil {
			lastErr = err
			r.logger.Warn("Evaluation attempt failed",
				"attempt", attempt,
				"max_attempts", r.maxAttempts,
				"error", err)
		} else {
			r.logger.Warn("Empty evaluation",
				"attempt", attempt,
				"max_attempts", r.maxAttempts)
		}

		select {
		case <-time.After(delays.NextBackOff()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.logger.Error("Max retries reached, dropping message",
		"attempts", r.maxAttempts,
		"error", lastErr)
	if lastErr != nil {
		return nil, errors.Join(ErrRetriesExhausted, lastErr)
	}
	return nil, ErrRetriesExhausted
}
