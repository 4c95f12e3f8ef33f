package discord

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneakbots/sentinel/pkg/models"
)

type fakeGateway struct {
	opened         bool
	closed         bool
	handlerRemoved bool
}

func (f *fakeGateway) AddHandler(interface{}) func() {
	return func() { f.handlerRemoved = true }
}

func (f *fakeGateway) Open() error {
	f.opened = true
	return nil
}

func (f *fakeGateway) Close() error {
	f.closed = true
	return nil
}

func guildMessage(authorID, channelID, guildID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		Content:   content,
		ChannelID: channelID,
		GuildID:   guildID,
		Author:    &discordgo.User{ID: authorID},
	}}
}

func testStream(t *testing.T, conf *models.DiscordDeploymentConfig) (*Stream, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{}
	s := NewStream(gw, uuid.New(), uuid.New(), conf, nil)
	require.NoError(t, s.Open())
	t.Cleanup(func() { _ = s.Close() })
	return s, gw
}

func TestStreamDeliversGuildMessages(t *testing.T) {
	s, _ := testStream(t, &models.DiscordDeploymentConfig{GuildID: 100})

	s.onMessage(nil, guildMessage("42", "7", "100", "hello there"))

	mc, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello there", mc.Content)
	assert.Equal(t, models.PlatformDiscord, mc.Platform)
	assert.EqualValues(t, 42, mc.Discord.UserID)
	assert.EqualValues(t, 7, mc.Discord.ChannelID)
	assert.EqualValues(t, 100, mc.Discord.GuildID)
	assert.Equal(t, s.moderatorID, mc.ModeratorID)
	assert.Equal(t, s.deploymentID, mc.DeploymentID)
}

func TestStreamFiltersBotsAndOtherGuilds(t *testing.T) {
	s, _ := testStream(t, &models.DiscordDeploymentConfig{GuildID: 100})

	bot := guildMessage("9", "7", "100", "bot chatter")
	bot.Author.Bot = true
	s.onMessage(nil, bot)
	s.onMessage(nil, guildMessage("42", "7", "200", "wrong guild"))
	s.onMessage(nil, &discordgo.MessageCreate{Message: &discordgo.Message{GuildID: "100", ChannelID: "7"}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamChannelAllowList(t *testing.T) {
	s, _ := testStream(t, &models.DiscordDeploymentConfig{
		GuildID:         100,
		AllowedChannels: []int64{7},
	})

	s.onMessage(nil, guildMessage("42", "8", "100", "blocked channel"))
	s.onMessage(nil, guildMessage("42", "7", "100", "allowed channel"))

	mc, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "allowed channel", mc.Content)
}

func TestStreamDropsMalformedIDs(t *testing.T) {
	s, _ := testStream(t, &models.DiscordDeploymentConfig{GuildID: 100})

	s.onMessage(nil, guildMessage("not-a-snowflake", "7", "100", "x"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamCloseEndsNext(t *testing.T) {
	gw := &fakeGateway{}
	s := NewStream(gw, uuid.New(), uuid.New(), &models.DiscordDeploymentConfig{GuildID: 100}, nil)
	require.NoError(t, s.Open())

	require.NoError(t, s.Close())
	_, err := s.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, gw.closed)
	assert.True(t, gw.handlerRemoved)

	// Close is idempotent.
	require.NoError(t, s.Close())
}

func TestStreamDrainsBufferBeforeEOF(t *testing.T) {
	s, _ := testStream(t, &models.DiscordDeploymentConfig{GuildID: 100})

	s.onMessage(nil, guildMessage("42", "7", "100", "in flight"))
	require.NoError(t, s.Close())

	mc, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "in flight", mc.Content)

	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
