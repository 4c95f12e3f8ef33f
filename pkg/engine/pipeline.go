package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sneakbots/sentinel/pkg/actions"
	"github.com/sneakbots/sentinel/pkg/llm"
	"github.com/sneakbots/sentinel/pkg/models"
)

// Encoder embeds message text for similarity lookups.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// SimilarityStore queries prior evaluations within an L2 radius.
type SimilarityStore interface {
	Nearest(ctx context.Context, vector []float32, topics []string, maxDistance float64) ([]models.TopicScore, error)
}

// Pipeline evaluates one message at a time: screen, embed, score (similars
// first, LLM for the remainder), final verdict, action construction.
type Pipeline struct {
	validator *Validator
	llm       Completer
	encoder   Encoder
	similars  SimilarityStore
	registry  *actions.Registry

	distanceThreshold float64
	logger            *slog.Logger
}

// NewPipeline assembles the evaluation pipeline. A negative distance
// threshold behaves as zero.
func NewPipeline(validator *Validator, completer Completer, encoder Encoder, similars SimilarityStore, registry *actions.Registry, distanceThreshold float64, logger *slog.Logger) *Pipeline {
	if distanceThreshold < 0 {
		distanceThreshold = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		validator:         validator,
		llm:               completer,
		encoder:           encoder,
		similars:          similars,
		registry:          registry,
		distanceThreshold: distanceThreshold,
		logger:            logger,
	}
}

type finalVerdict struct {
	EvaluationScore float64            `json:"evaluation_score"`
	Action          *actions.RawAction `json:"action"`
}

// Evaluate runs one attempt for the message. A MALICIOUS screen result
// returns (nil, nil): nothing to persist, nothing to dispatch. Deterministic
// failures (disallowed or unknown action types) come back wrapped as
// permanent so the retry wrapper surfaces them immediately.
func (p *Pipeline) Evaluate(ctx context.Context, msgCtx *models.MessageContext, policy *models.Policy, allowed []models.ActionDefinition) (*models.MessageEvaluation, error) {
	if state := p.validator.Classify(ctx, msgCtx.Content); state == models.Malicious {
		p.logger.Warn("Message screened as malicious, dropping",
			"deployment_id", msgCtx.DeploymentID,
			"platform", msgCtx.Platform)
		return nil, nil
	}

	embedding, err := p.encoder.Encode(ctx, msgCtx.Content)
	if err != nil {
		return nil, fmt.Errorf("embed message: %w", err)
	}

	topicScores, err := p.resolveTopicScores(ctx, msgCtx, policy, embedding)
	if err != nil {
		return nil, err
	}

	verdict, err := p.finalVerdict(ctx, msgCtx, policy, topicScores, allowed)
	if err != nil {
		return nil, err
	}

	eval := &models.MessageEvaluation{
		EvaluationScore: models.ClampScore(verdict.EvaluationScore),
		TopicScores:     orderedTopicScores(policy.Topics, topicScores),
		Embedding:       embedding,
	}

	if verdict.Action != nil {
		action, err := p.registry.Build(msgCtx.Platform, *verdict.Action, allowed)
		if err != nil {
			return nil, Permanent(fmt.Errorf("construct action: %w", err))
		}
		eval.Action = action
	}
	return eval, nil
}

// resolveTopicScores computes per-topic scores with cache-aware resolution:
// neighbor averages where the similarity corpus covers a topic, LLM scoring
// for the remainder only.
func (p *Pipeline) resolveTopicScores(ctx context.Context, msgCtx *models.MessageContext, policy *models.Policy, embedding []float32) (map[string]float64, error) {
	neighbors, err := p.similars.Nearest(ctx, embedding, policy.Topics, p.distanceThreshold)
	if err != nil {
		return nil, fmt.Errorf("query similar evaluations: %w", err)
	}

	if len(neighbors) == 0 {
		return p.fetchTopicScores(ctx, msgCtx, policy.Guidelines, policy.Topics)
	}

	scores := averageByTopic(neighbors)

	var remaining []string
	for _, topic := range policy.Topics {
		if _, ok := scores[topic]; !ok {
			remaining = append(remaining, topic)
		}
	}
	if len(remaining) > 0 {
		fetched, err := p.fetchTopicScores(ctx, msgCtx, policy.Guidelines, remaining)
		if err != nil {
			return nil, err
		}
		for topic, score := range fetched {
			scores[topic] = score
		}
	}
	return scores, nil
}

// fetchTopicScores asks the LLM for scores covering exactly topics.
func (p *Pipeline) fetchTopicScores(ctx context.Context, msgCtx *models.MessageContext, guidelines string, topics []string) (map[string]float64, error) {
	sysPrompt, err := buildScoreSystemPrompt(guidelines, topics)
	if err != nil {
		return nil, err
	}
	userJSON, err := json.Marshal(msgCtx.PromptContext())
	if err != nil {
		return nil, fmt.Errorf("marshal prompt context: %w", err)
	}

	raw, err := p.llm.Complete(ctx, []llm.Message{
		llm.System(sysPrompt),
		llm.User(string(userJSON)),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch topic scores: %w", err)
	}

	var parsed map[string]float64
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse topic scores: %w", err)
	}

	scores := make(map[string]float64, len(topics))
	for _, topic := range topics {
		score, ok := parsed[topic]
		if !ok {
			return nil, fmt.Errorf("topic scores missing topic %q", topic)
		}
		scores[topic] = models.ClampScore(score)
	}
	return scores, nil
}

// finalVerdict assembles the verdict prompt and parses the result.
func (p *Pipeline) finalVerdict(ctx context.Context, msgCtx *models.MessageContext, policy *models.Policy, topicScores map[string]float64, allowed []models.ActionDefinition) (*finalVerdict, error) {
	prompt, err := buildFinalPrompt(
		policy.Guidelines, policy.Topics, topicScores,
		msgCtx.Content, actions.Schemas(allowed), msgCtx.PromptContext())
	if err != nil {
		return nil, err
	}

	raw, err := p.llm.Complete(ctx, []llm.Message{
		llm.System(finalSystemPrompt),
		llm.User(prompt),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch final verdict: %w", err)
	}

	var verdict finalVerdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return nil, fmt.Errorf("parse final verdict: %w", err)
	}
	return &verdict, nil
}

// averageByTopic computes the count-weighted mean score per topic,
// processing neighbors in input order.
func averageByTopic(neighbors []models.TopicScore) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, n := range neighbors {
		sums[n.Topic] += n.Score
		counts[n.Topic]++
	}

	scores := make(map[string]float64, len(sums))
	for topic, sum := range sums {
		scores[topic] = sum / float64(counts[topic])
	}
	return scores
}

// orderedTopicScores lays the score map out in policy topic order.
func orderedTopicScores(topics []string, scores map[string]float64) []models.TopicScore {
	out := make([]models.TopicScore, 0, len(scores))
	for _, topic := range topics {
		if score, ok := scores[topic]; ok {
			out = append(out, models.TopicScore{Topic: topic, Score: score})
		}
	}
	return out
}
