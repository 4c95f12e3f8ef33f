package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sneakbots/sentinel/pkg/models"
)

// Stream yields incoming messages from a platform. Next blocks until a
// message arrives, the stream closes (io.EOF), or ctx is cancelled.
type Stream interface {
	Next(ctx context.Context) (*models.MessageContext, error)
	Close() error
}

// Dispatcher persists an action log and executes auto-approved actions.
type Dispatcher interface {
	Dispatch(ctx context.Context, action *models.Action, msgCtx *models.MessageContext) (bool, error)
}

// MessageWriter persists a message with its evaluations atomically.
type MessageWriter interface {
	InsertMessageWithEvaluations(ctx context.Context, msgCtx *models.MessageContext, eval *models.MessageEvaluation) (uuid.UUID, error)
}

// StateStore drives the deployment state machine.
type StateStore interface {
	TransitionState(ctx context.Context, id uuid.UUID, from, to models.DeploymentState) error
	ForceOffline(ctx context.Context, id uuid.UUID) error
}

// PolicyStore resolves a moderator's guideline and topics.
type PolicyStore interface {
	Load(ctx context.Context, moderatorID uuid.UUID) (*models.Policy, error)
}

// Moderator owns the moderation lifecycle of a single deployment: state
// transitions, the stream loop, the task pool, and persistence of results.
// There is exactly one Moderator per deployment at a time.
type Moderator struct {
	deploymentID uuid.UUID
	moderatorID  uuid.UUID
	allowed      []models.ActionDefinition

	pipeline   *Pipeline
	retrier    *Retrier
	policies   PolicyStore
	stream     Stream
	dispatcher Dispatcher
	writer     MessageWriter
	states     StateStore
	pool       *TaskPool
	logger     *slog.Logger
}

// ModeratorDeps bundles the collaborators a Moderator needs.
type ModeratorDeps struct {
	Pipeline   *Pipeline
	Retrier    *Retrier
	Policies   PolicyStore
	Stream     Stream
	Dispatcher Dispatcher
	Writer     MessageWriter
	States     StateStore
	Pool       *TaskPool
	Logger     *slog.Logger
}

// NewModerator creates the per-deployment moderator.
func NewModerator(deploymentID, moderatorID uuid.UUID, allowed []models.ActionDefinition, deps ModeratorDeps) *Moderator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Moderator{
		deploymentID: deploymentID,
		moderatorID:  moderatorID,
		allowed:      allowed,
		pipeline:     deps.Pipeline,
		retrier:      deps.Retrier,
		policies:     deps.Policies,
		stream:       deps.Stream,
		dispatcher:   deps.Dispatcher,
		writer:       deps.Writer,
		states:       deps.States,
		pool:         deps.Pool,
		logger:       logger.With("deployment_id", deploymentID),
	}
}

// Run moderates the deployment until ctx is cancelled or the stream ends.
// On entry the deployment moves OFFLINE→PENDING→ONLINE; on any exit path
// it lands back in OFFLINE.
func (m *Moderator) Run(ctx context.Context) error {
	if err := m.states.TransitionState(ctx, m.deploymentID, models.DeploymentOffline, models.DeploymentPending); err != nil {
		return fmt.Errorf("mark deployment pending: %w", err)
	}
	defer func() {
		// Shutdown uses a fresh context; ctx is usually cancelled by now.
		offCtx := context.WithoutCancel(ctx)
		if err := m.states.ForceOffline(offCtx, m.deploymentID); err != nil {
			m.logger.Error("Failed to mark deployment offline", "error", err)
		}
	}()

	policy, err := m.policies.Load(ctx, m.moderatorID)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	m.logger.Info("Policy loaded", "topics", policy.Topics)

	m.pool.Start(ctx)
	defer m.pool.Stop()
	defer m.stream.Close()

	if err := m.states.TransitionState(ctx, m.deploymentID, models.DeploymentPending, models.DeploymentOnline); err != nil {
		return fmt.Errorf("mark deployment online: %w", err)
	}
	m.logger.Info("Moderation started", "task_pool_size", m.pool.Size())

	for {
		msgCtx, err := m.stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				m.logger.Info("Stream closed, shutting down")
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}

		if err := m.pool.Submit(m.handleMessage(policy, msgCtx)); err != nil {
			if errors.Is(err, ErrPoolClosed) {
				return nil
			}
			return fmt.Errorf("submit message: %w", err)
		}
	}
}

// handleMessage builds the unit of work for one message: retry-wrapped
// evaluation, transactional persistence, then dispatch.
func (m *Moderator) handleMessage(policy *models.Policy, msgCtx *models.MessageContext) Task {
	return func(ctx context.Context) {
		eval, err := m.retrier.Run(ctx, func(ctx context.Context) (*models.MessageEvaluation, error) {
			return m.pipeline.Evaluate(ctx, msgCtx, policy, m.allowed)
		})
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				m.logger.Error("Evaluation failed, message dropped", "error", err)
			}
			return
		}

		messageID, err := m.writer.InsertMessageWithEvaluations(ctx, msgCtx, eval)
		if err != nil {
			m.logger.Error("Failed to persist evaluation", "error", err)
			return
		}
		m.logger.Info("Evaluation persisted",
			"message_id", messageID,
			"evaluation_score", eval.EvaluationScore,
			"topics", len(eval.TopicScores))

		if eval.Action == nil {
			return
		}
		executed, err := m.dispatcher.Dispatch(ctx, eval.Action, msgCtx)
		if err != nil {
			m.logger.Error("Action dispatch failed",
				"action_type", eval.Action.Type,
				"error", err)
			return
		}
		m.logger.Info("Action dispatched",
			"action_type", eval.Action.Type,
			"executed", executed)
	}
}
