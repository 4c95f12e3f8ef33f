package discord

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Manager owns the process-scoped Discord session the control plane uses to
// execute approved actions. Lifecycle is explicit: Start before serving,
// Stop on shutdown.
type Manager struct {
	session  *discordgo.Session
	effector *Effector
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
}

// NewManager builds the manager and its effector. The session stays closed
// until Start.
func NewManager(botToken string, logger *slog.Logger) (*Manager, error) {
	if botToken == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	// The control plane only issues REST calls; no gateway events needed.
	session.Identify.Intents = discordgo.IntentsNone

	return &Manager{
		session:  session,
		effector: NewEffector(session, logger),
		logger:   logger,
	}, nil
}

// Start connects the session. Calling Start twice is an error.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("discord manager already started")
	}
	if err := m.session.Open(); err != nil {
		return mapAPIError(err)
	}
	m.started = true
	m.logger.Info("Discord manager started")
	return nil
}

// Stop disconnects the session. A manager that was never started is a
// no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	m.started = false
	return m.session.Close()
}

// Effector returns the REST effector bound to the manager's session.
func (m *Manager) Effector() *Effector {
	return m.effector
}
