// Package discord provides the Discord bot layer for dictee. It owns the
// discordgo.Session lifecycle, routes slash commands and prefix text commands
// to registered handlers, collects typed answers for the round engine and
// checks staff permissions.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	discordaudio "github.com/MrWong99/dictee/pkg/audio/discord"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token without the "Bot " prefix.
	Token string

	// GuildID is the guild the bot serves.
	GuildID string

	// VoiceChannelID is the channel clips are played in.
	VoiceChannelID string

	// StaffRoleIDs may stop other players' sessions.
	StaffRoleIDs []string

	// CommandPrefix introduces text commands, e.g. "m!".
	CommandPrefix string
}

// Bot owns the Discord gateway connection.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	router    *CommandRouter
	perms     *PermissionChecker
	transport *Transport
	guildID   string
	commands  []*discordgo.ApplicationCommand
	closeOnce sync.Once
}

// New creates a Bot, connects to Discord and registers the interaction and
// message handlers.
func New(_ context.Context, cfg Config, opts ...TransportOption) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	// Members and message content are privileged intents and must be
	// enabled for the application in the developer portal.
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	b := &Bot{
		session: session,
		router:  NewCommandRouter(cfg.CommandPrefix),
		perms:   NewPermissionChecker(cfg.StaffRoleIDs...),
		guildID: cfg.GuildID,
	}
	b.transport = NewTransport(session, discordaudio.New(session, cfg.GuildID), cfg.VoiceChannelID, b.voiceChannelOf, opts...)

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.handleMessage(s, m)
	})

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return b, nil
}

// handleMessage routes a text command or hands the message to a pending
// answer wait.
func (b *Bot) handleMessage(s MessageSender, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID != b.guildID {
		return
	}
	if b.router.HandleText(s, m) {
		return
	}
	b.transport.Deliver(m.ChannelID, m.Author.ID, m.Content)
}

func (b *Bot) voiceChannelOf(userID string) (string, bool) {
	vs, err := b.Session().State.VoiceState(b.guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

// GuildID returns the target guild ID.
func (b *Bot) GuildID() string {
	return b.guildID
}

// Session returns the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// Permissions returns the permission checker.
func (b *Bot) Permissions() *PermissionChecker {
	return b.perms
}

// Transport returns the engine transport backed by this bot.
func (b *Bot) Transport() *Transport {
	return b.transport
}

// Ready reports whether the gateway connection is up. It backs the
// readiness probe.
func (b *Bot) Ready(context.Context) error {
	s := b.Session()
	if s == nil || s.State == nil || s.State.User == nil {
		return fmt.Errorf("discord: gateway not ready")
	}
	s.RLock()
	ok := s.DataReady
	s.RUnlock()
	if !ok {
		return fmt.Errorf("discord: gateway disconnected")
	}
	return nil
}

// Run registers slash commands with the Discord API and blocks until
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		slog.Info("discord commands registered", "count", len(registered))
	}

	<-ctx.Done()
	return ctx.Err()
}

// Close leaves the voice channel and disconnects from Discord. Registered
// commands are kept so they stay visible across restarts.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if err := b.transport.Close(); err != nil {
			slog.Warn("discord: failed to leave voice channel", "err", err)
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}
		slog.Info("discord bot closed")
	})
	return closeErr
}
