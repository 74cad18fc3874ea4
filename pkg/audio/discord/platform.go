// Package discord provides an [audio.Platform] backed by Discord voice
// channels through bwmarrin/discordgo. It encodes the bot's PCM
// [audio.AudioFrame] output to Opus.
//
// The platform borrows the *discordgo.Session owned by the bot layer. The
// bot only speaks, so it joins channels deafened.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/dictee/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Platform = (*Platform)(nil)

// Platform implements [audio.Platform] using a discordgo voice connection.
// It is safe for concurrent use.
type Platform struct {
	session *discordgo.Session
	guildID string
}

// New creates a Platform for the given session and guild.
func New(session *discordgo.Session, guildID string) *Platform {
	return &Platform{
		session: session,
		guildID: guildID,
	}
}

// Connect joins the voice channel channelID.
func (p *Platform) Connect(ctx context.Context, channelID string) (audio.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := p.session.ChannelVoiceJoin(p.guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}

	conn, err := newConnection(vc)
	if err != nil {
		_ = vc.Disconnect()
		return nil, fmt.Errorf("discord: create connection: %w", err)
	}
	return conn, nil
}
