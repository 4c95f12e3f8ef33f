// Sentinel moderation engine. Runs the deployment controller with the
// control-plane API, or (with -deployment-worker) a single deployment's
// moderation loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sneakbots/sentinel/pkg/api"
	"github.com/sneakbots/sentinel/pkg/bus"
	"github.com/sneakbots/sentinel/pkg/config"
	"github.com/sneakbots/sentinel/pkg/controller"
	"github.com/sneakbots/sentinel/pkg/database"
	"github.com/sneakbots/sentinel/pkg/discord"
	"github.com/sneakbots/sentinel/pkg/services"
	"github.com/sneakbots/sentinel/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	workerMode := flag.Bool("deployment-worker", false,
		"Run as a deployment worker; reads the start event from stdin")
	configPath := flag.String("config",
		getEnv("SENTINEL_CONFIG", "sentinel.yaml"),
		"Path to the configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if *workerMode {
		runWorker(cfg)
		return
	}
	runController(cfg, *configPath)
}

// runController hosts the deployment controller and the control-plane API
// in one process. Workers run as child processes of this one.
func runController(cfg *config.Config, configPath string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	slog.Info("Starting sentinel controller", "version", version.Full(), "config", configPath)

	db, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Connected to PostgreSQL")

	deployments := services.NewDeploymentService(db.Pool())
	logs := services.NewActionLogService(db.Pool())

	consumer, err := bus.NewConsumer(cfg.Bus.Brokers, cfg.Bus.DeploymentEventsTopic, cfg.Bus.Group, slog.Default())
	if err != nil {
		slog.Error("Failed to connect event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	producer, err := bus.NewProducer(cfg.Bus.Brokers, cfg.Bus.DeploymentEventsTopic, slog.Default())
	if err != nil {
		slog.Error("Failed to connect event producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	manager, err := discord.NewManager(cfg.Discord.BotToken, slog.Default())
	if err != nil {
		slog.Error("Failed to create discord manager", "error", err)
		os.Exit(1)
	}
	if err := manager.Start(); err != nil {
		slog.Error("Failed to start discord manager", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := manager.Stop(); err != nil {
			slog.Error("Error stopping discord manager", "error", err)
		}
	}()

	launcher, err := controller.NewProcessLauncher(configPath, slog.Default())
	if err != nil {
		slog.Error("Failed to create worker launcher", "error", err)
		os.Exit(1)
	}
	ctrl := controller.NewController(consumer, launcher, deployments, cfg.Controller.JoinTimeout, slog.Default())

	server := api.NewServer(api.Deps{
		Pool:        db.Pool(),
		Logs:        logs,
		Approver:    discord.NewApprover(logs, manager.Effector(), slog.Default()),
		Deployments: deployments,
		Events:      producer,
		Logger:      slog.Default(),
	})

	apiErr := make(chan error, 1)
	go func() {
		apiErr <- server.Run(ctx, fmt.Sprintf(":%d", cfg.HTTP.Port))
	}()

	slog.Info("Sentinel controller started", "http_port", cfg.HTTP.Port)

	// Blocks until the signal context cancels; all workers are stopped
	// before Run returns.
	if err := ctrl.Run(ctx); err != nil {
		slog.Error("Controller failed", "error", err)
		stop()
		<-apiErr
		os.Exit(1)
	}

	if err := <-apiErr; err != nil {
		slog.Error("API server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
