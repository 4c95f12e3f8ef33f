package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sneakbots/sentinel/pkg/llm"
	"github.com/sneakbots/sentinel/pkg/models"
	"github.com/sneakbots/sentinel/pkg/services"
)

// PolicyLoader resolves a moderator's guideline into a Policy, deriving the
// topic list from the guideline body on first need. Derivation is
// first-writer-wins: whatever list lands in the store is the list every
// worker uses from then on.
type PolicyLoader struct {
	moderators *services.ModeratorService
	guidelines *services.GuidelineService
	llm        Completer
	logger     *slog.Logger
}

// NewPolicyLoader creates a policy loader.
func NewPolicyLoader(moderators *services.ModeratorService, guidelines *services.GuidelineService, completer Completer, logger *slog.Logger) *PolicyLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyLoader{
		moderators: moderators,
		guidelines: guidelines,
		llm:        completer,
		logger:     logger,
	}
}

// Load fetches the moderator's policy, deriving and persisting topics when
// the guideline has none yet.
func (l *PolicyLoader) Load(ctx context.Context, moderatorID uuid.UUID) (*models.Policy, error) {
	mod, err := l.moderators.GetModerator(ctx, moderatorID)
	if err != nil {
		return nil, fmt.Errorf("load moderator: %w", err)
	}
	guideline, err := l.guidelines.GetGuideline(ctx, mod.GuidelineID)
	if err != nil {
		return nil, fmt.Errorf("load guideline: %w", err)
	}

	topics := guideline.Topics
	if len(topics) == 0 {
		derived, err := l.deriveTopics(ctx, guideline.Body)
		if err != nil {
			return nil, err
		}
		// SetTopics returns the committed list, which may belong to a
		// concurrent deriver.
		topics, err = l.guidelines.SetTopics(ctx, guideline.ID, derived)
		if err != nil {
			return nil, fmt.Errorf("persist derived topics: %w", err)
		}
		l.logger.Info("Derived guideline topics",
			"guideline_id", guideline.ID,
			"topics", topics)
	}

	return &models.Policy{Guidelines: guideline.Body, Topics: topics}, nil
}

func (l *PolicyLoader) deriveTopics(ctx context.Context, body string) ([]string, error) {
	raw, err := l.llm.Complete(ctx, []llm.Message{
		llm.System(topicsSystemPrompt),
		llm.User(body),
	})
	if err != nil {
		return nil, fmt.Errorf("derive topics: %w", err)
	}

	var topics []string
	if err := json.Unmarshal(raw, &topics); err != nil {
		return nil, fmt.Errorf("parse derived topics: %w", err)
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("topic derivation returned no topics")
	}
	return topics, nil
}
