package models

// Policy is a moderator's guideline text plus its derived topic list.
// The topic order mirrors the persisted guideline order and is preserved
// through scoring and persistence.
type Policy struct {
	Guidelines string   `json:"guidelines"`
	Topics     []string `json:"topics"`
}

// TopicScore is a single (topic, score) pair. Used both for similarity
// neighbors and for assembled per-topic results.
type TopicScore struct {
	Topic string  `json:"topic"`
	Score float64 `json:"score"`
}

// MessageEvaluation is the pipeline's verdict for one message: the overall
// score, the per-topic scores in policy order, the embedding of the content,
// and an optional action to dispatch.
type MessageEvaluation struct {
	EvaluationScore float64      `json:"evaluation_score"`
	TopicScores     []TopicScore `json:"topic_scores"`
	Embedding       []float32    `json:"-"`
	Action          *Action      `json:"action,omitempty"`
}

// ClampScore bounds a parsed score to [0, 1].
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
