// Package controller turns deployment lifecycle events into isolated
// moderation worker processes and supervises them.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sneakbots/sentinel/pkg/models"
)

// DefaultJoinTimeout is how long a worker gets to exit after SIGTERM
// before it is killed.
const DefaultJoinTimeout = 10 * time.Second

// WorkerHandle controls one spawned worker process.
type WorkerHandle interface {
	Wait() error
	Signal(sig os.Signal) error
	Kill() error
}

// Launcher spawns a worker for a validated start event.
type Launcher interface {
	Launch(ctx context.Context, ev *models.DeploymentEvent) (WorkerHandle, error)
}

// EventSource yields batches of deployment events.
type EventSource interface {
	Poll(ctx context.Context) ([]*models.DeploymentEvent, error)
}

// StateStore lets the controller settle deployment state when a worker is
// gone.
type StateStore interface {
	ForceOffline(ctx context.Context, id uuid.UUID) error
}

type worker struct {
	handle WorkerHandle
	done   chan struct{}
}

// Controller consumes lifecycle events and keeps at most one worker per
// deployment. Workers are separate processes so a crashed moderation loop
// cannot take the controller down with it.
type Controller struct {
	source      EventSource
	launcher    Launcher
	states      StateStore
	joinTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	workers map[uuid.UUID]*worker
	wg      sync.WaitGroup
}

// NewController creates a controller. A non-positive joinTimeout falls back
// to DefaultJoinTimeout.
func NewController(source EventSource, launcher Launcher, states StateStore, joinTimeout time.Duration, logger *slog.Logger) *Controller {
	if source == nil {
		panic("NewController: source must not be nil")
	}
	if launcher == nil {
		panic("NewController: launcher must not be nil")
	}
	if states == nil {
		panic("NewController: states must not be nil")
	}
	if joinTimeout <= 0 {
		joinTimeout = DefaultJoinTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		source:      source,
		launcher:    launcher,
		states:      states,
		joinTimeout: joinTimeout,
		logger:      logger,
		workers:     make(map[uuid.UUID]*worker),
	}
}

// Run consumes events until ctx is cancelled or the source closes, then
// stops every running worker before returning.
func (c *Controller) Run(ctx context.Context) error {
	defer c.shutdown()

	for {
		events, err := c.source.Poll(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Controller stopping")
				return nil
			}
			c.logger.Error("Event source failed", "error", err)
			return err
		}

		for _, ev := range events {
			switch ev.Type {
			case models.DeploymentEventStart:
				c.handleStart(ctx, ev)
			case models.DeploymentEventStop:
				c.handleStop(ev.DeploymentID)
			}
		}
	}
}

func (c *Controller) handleStart(ctx context.Context, ev *models.DeploymentEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, running := c.workers[ev.DeploymentID]; running {
		c.logger.Warn("Deployment already running, ignoring start", "deployment_id", ev.DeploymentID)
		return
	}

	handle, err := c.launcher.Launch(ctx, ev)
	if err != nil {
		c.logger.Error("Failed to launch worker", "deployment_id", ev.DeploymentID, "error", err)
		return
	}

	w := &worker{handle: handle, done: make(chan struct{})}
	c.workers[ev.DeploymentID] = w
	c.wg.Add(1)
	go c.reap(ev.DeploymentID, w)

	c.logger.Info("Worker launched", "deployment_id", ev.DeploymentID, "moderator_id", ev.ModeratorID)
}

// reap waits for the worker to exit, for any reason, and settles the
// deployment to OFFLINE. The worker does this itself on clean shutdown;
// this covers crashes and kills, and is idempotent otherwise.
func (c *Controller) reap(id uuid.UUID, w *worker) {
	defer c.wg.Done()

	err := w.handle.Wait()
	close(w.done)

	c.mu.Lock()
	delete(c.workers, id)
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("Worker exited abnormally", "deployment_id", id, "error", err)
	} else {
		c.logger.Info("Worker exited", "deployment_id", id)
	}

	if err := c.states.ForceOffline(context.Background(), id); err != nil {
		c.logger.Error("Failed to mark deployment offline", "deployment_id", id, "error", err)
	}
}

func (c *Controller) handleStop(id uuid.UUID) {
	c.mu.Lock()
	w, running := c.workers[id]
	c.mu.Unlock()

	if !running {
		c.logger.Warn("Deployment not running, ignoring stop", "deployment_id", id)
		return
	}
	c.stopWorker(id, w)
}

// stopWorker asks the worker to shut down and escalates to SIGKILL when it
// does not exit within the join timeout.
func (c *Controller) stopWorker(id uuid.UUID, w *worker) {
	if err := w.handle.Signal(syscall.SIGTERM); err != nil {
		c.logger.Warn("Failed to signal worker", "deployment_id", id, "error", err)
	}

	timer := time.NewTimer(c.joinTimeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return
	case <-timer.C:
	}

	c.logger.Warn("Worker did not exit in time, killing", "deployment_id", id, "join_timeout", c.joinTimeout)
	if err := w.handle.Kill(); err != nil {
		c.logger.Error("Failed to kill worker", "deployment_id", id, "error", err)
	}
	<-w.done
}

// shutdown stops all workers in parallel and waits for the reapers.
func (c *Controller) shutdown() {
	c.mu.Lock()
	running := make(map[uuid.UUID]*worker, len(c.workers))
	for id, w := range c.workers {
		running[id] = w
	}
	c.mu.Unlock()

	var stops sync.WaitGroup
	for id, w := range running {
		stops.Add(1)
		go func(id uuid.UUID, w *worker) {
			defer stops.Done()
			c.stopWorker(id, w)
		}(id, w)
	}
	stops.Wait()
	c.wg.Wait()
}
