package discord

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/sneakbots/sentinel/pkg/models"
)

// streamBuffer bounds how many decoded messages may sit between the gateway
// and the moderator before handler goroutines start blocking.
const streamBuffer = 256

// gatewaySession is the slice of discordgo a Stream needs: handler
// registration and the websocket lifecycle.
type gatewaySession interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
}

// NewSession builds a discordgo session configured for moderation: guild
// message events with message content. The caller owns the session.
func NewSession(botToken string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	return session, nil
}

// Stream turns gateway message events for one guild into the engine's
// message feed. Messages from bots, other guilds, and channels outside the
// deployment's allow-list are dropped before they reach the pipeline.
type Stream struct {
	session      gatewaySession
	moderatorID  uuid.UUID
	deploymentID uuid.UUID
	guildID      string
	guildNum     int64
	allowed      map[string]struct{}
	logger       *slog.Logger

	msgs          chan *models.MessageContext
	done          chan struct{}
	closeOnce     sync.Once
	removeHandler func()
}

// NewStream creates a stream for one deployment. An empty allowed-channel
// list admits every channel in the guild.
func NewStream(session gatewaySession, moderatorID, deploymentID uuid.UUID, conf *models.DiscordDeploymentConfig, logger *slog.Logger) *Stream {
	if session == nil {
		panic("NewStream: session must not be nil")
	}
	if conf == nil {
		panic("NewStream: conf must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	allowed := make(map[string]struct{}, len(conf.AllowedChannels))
	for _, id := range conf.AllowedChannels {
		allowed[strconv.FormatInt(id, 10)] = struct{}{}
	}
	return &Stream{
		session:      session,
		moderatorID:  moderatorID,
		deploymentID: deploymentID,
		guildID:      strconv.FormatInt(conf.GuildID, 10),
		guildNum:     conf.GuildID,
		allowed:      allowed,
		logger:       logger,
		msgs:         make(chan *models.MessageContext, streamBuffer),
		done:         make(chan struct{}),
	}
}

// Open registers the message handler and connects the gateway.
func (s *Stream) Open() error {
	s.removeHandler = s.session.AddHandler(s.onMessage)
	if err := s.session.Open(); err != nil {
		s.removeHandler()
		return mapAPIError(err)
	}
	s.logger.Info("Discord stream opened", "guild_id", s.guildID)
	return nil
}

// Next blocks until a message arrives, the stream closes (io.EOF), or ctx
// is cancelled. Buffered messages are drained before close is observed.
func (s *Stream) Next(ctx context.Context) (*models.MessageContext, error) {
	select {
	case mc := <-s.msgs:
		return mc, nil
	default:
	}
	select {
	case mc := <-s.msgs:
		return mc, nil
	case <-s.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close detaches the handler and shuts down the gateway connection. Safe to
// call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.removeHandler != nil {
			s.removeHandler()
		}
		close(s.done)
		err = s.session.Close()
	})
	return err
}

func (s *Stream) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID != s.guildID {
		return
	}
	if len(s.allowed) > 0 {
		if _, ok := s.allowed[m.ChannelID]; !ok {
			return
		}
	}

	userID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		s.logger.Warn("Dropping message with malformed author id", "author_id", m.Author.ID)
		return
	}
	channelID, err := strconv.ParseInt(m.ChannelID, 10, 64)
	if err != nil {
		s.logger.Warn("Dropping message with malformed channel id", "channel_id", m.ChannelID)
		return
	}

	mc := &models.MessageContext{
		Platform:     models.PlatformDiscord,
		Content:      m.Content,
		ModeratorID:  s.moderatorID,
		DeploymentID: s.deploymentID,
		Discord: &models.DiscordContext{
			UserID:    userID,
			ChannelID: channelID,
			GuildID:   s.guildNum,
		},
	}

	// Backpressure: when the moderator falls behind, gateway handlers block
	// here instead of dropping messages.
	select {
	case s.msgs <- mc:
	case <-s.done:
	}
}
