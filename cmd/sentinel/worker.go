package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sneakbots/sentinel/pkg/actions"
	"github.com/sneakbots/sentinel/pkg/cache"
	"github.com/sneakbots/sentinel/pkg/config"
	"github.com/sneakbots/sentinel/pkg/database"
	"github.com/sneakbots/sentinel/pkg/discord"
	"github.com/sneakbots/sentinel/pkg/embedding"
	"github.com/sneakbots/sentinel/pkg/engine"
	"github.com/sneakbots/sentinel/pkg/llm"
	"github.com/sneakbots/sentinel/pkg/models"
	"github.com/sneakbots/sentinel/pkg/services"
)

// runWorker moderates a single deployment. The validated start event
// arrives as JSON on stdin; the process exits when the controller sends
// SIGTERM or the moderation loop ends.
func runWorker(cfg *config.Config) {
	payload, err := io.ReadAll(os.Stdin)
	if err != nil {
		slog.Error("Failed to read start event", "error", err)
		os.Exit(1)
	}
	ev, err := models.DecodeDeploymentEvent(payload)
	if err != nil {
		slog.Error("Invalid start event", "error", err)
		os.Exit(1)
	}
	if ev.Type != models.DeploymentEventStart {
		slog.Error("Worker requires a start event", "type", ev.Type)
		os.Exit(1)
	}

	logger := slog.Default().With("deployment_id", ev.DeploymentID)
	logger.Info("Starting deployment worker", "moderator_id", ev.ModeratorID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	llmClient := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	encoder := embedding.NewEncoder(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimension)
	if err := encoder.Warm(ctx); err != nil {
		logger.Error("Failed to warm embedding encoder", "error", err)
		os.Exit(1)
	}

	var policies engine.PolicyStore = engine.NewPolicyLoader(
		services.NewModeratorService(db.Pool()),
		services.NewGuidelineService(db.Pool()),
		llmClient,
		logger,
	)
	var policyCache *cache.PolicyCache
	if cfg.Redis.Enabled() {
		policyCache = cache.NewPolicyCache(cfg.Redis.Addr, cfg.Redis.PolicyTTL, logger)
		defer policyCache.Close()
		policies = cache.NewCachedPolicyLoader(policyCache, policies)
		logger.Info("Policy cache enabled", "addr", cfg.Redis.Addr)
	}

	session, err := discord.NewSession(cfg.Discord.BotToken)
	if err != nil {
		logger.Error("Failed to create discord session", "error", err)
		os.Exit(1)
	}
	stream := discord.NewStream(session, ev.ModeratorID, ev.DeploymentID, ev.Conf, logger)
	if err := stream.Open(); err != nil {
		logger.Error("Failed to open discord stream", "error", err)
		os.Exit(1)
	}

	validator := engine.NewValidator(llmClient, cfg.Engine.ValidatorMaxAttempts, logger)
	pipeline := engine.NewPipeline(
		validator,
		llmClient,
		encoder,
		services.NewEvaluationService(db.Pool()),
		actions.Default(),
		cfg.Engine.SimilarityThreshold,
		logger,
	)

	moderator := engine.NewModerator(ev.DeploymentID, ev.ModeratorID, ev.Conf.AllowedActions, engine.ModeratorDeps{
		Pipeline: pipeline,
		Retrier:  engine.NewRetrier(cfg.Engine.Retry.MaxAttempts, cfg.Engine.Retry.BaseDelay, logger),
		Policies: policies,
		Stream:   stream,
		Dispatcher: discord.NewDispatcher(
			services.NewActionLogService(db.Pool()),
			discord.NewEffector(session, logger),
			ev.ModeratorID, ev.DeploymentID, ev.Conf.GuildID,
			logger,
		),
		Writer: services.NewMessageService(db.Pool()),
		States: services.NewDeploymentService(db.Pool()),
		Pool:   engine.NewTaskPool(cfg.Engine.TaskPoolSize),
		Logger: logger,
	})

	start := time.Now()
	if err := moderator.Run(ctx); err != nil {
		logger.Error("Moderation loop failed", "error", err, "uptime", time.Since(start))
		os.Exit(1)
	}
	logger.Info("Worker stopped", "uptime", time.Since(start))
}
