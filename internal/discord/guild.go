package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/dictee/internal/economy"
)

var (
	_ economy.MemberLister = (*MemberLister)(nil)
	_ economy.Announcer    = (*ChannelAnnouncer)(nil)
)

// memberPageSize is the largest page Discord serves.
const memberPageSize = 1000

// GuildMembersClient is the part of *discordgo.Session used to list members.
type GuildMembersClient interface {
	GuildMembers(guildID, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
}

// MemberLister pages through every member of a guild. Listing requires the
// privileged guild members intent.
type MemberLister struct {
	client  GuildMembersClient
	guildID string
}

// NewMemberLister returns a [MemberLister] for guildID.
func NewMemberLister(client GuildMembersClient, guildID string) *MemberLister {
	return &MemberLister{client: client, guildID: guildID}
}

// Members implements [economy.MemberLister].
func (l *MemberLister) Members(ctx context.Context) ([]economy.Member, error) {
	var out []economy.Member
	after := ""
	for {
		page, err := l.client.GuildMembers(l.guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("discord: list members after %q: %w", after, err)
		}
		for _, m := range page {
			if m.User == nil {
				continue
			}
			out = append(out, economy.Member{UserID: m.User.ID, RoleIDs: m.Roles, Bot: m.User.Bot})
			after = m.User.ID
		}
		if len(page) < memberPageSize {
			return out, nil
		}
	}
}

// ChannelAnnouncer posts announcements to one text channel.
type ChannelAnnouncer struct {
	sender    MessageSender
	channelID string
}

// NewChannelAnnouncer returns a [ChannelAnnouncer] posting to channelID.
func NewChannelAnnouncer(sender MessageSender, channelID string) *ChannelAnnouncer {
	return &ChannelAnnouncer{sender: sender, channelID: channelID}
}

// Announce implements [economy.Announcer].
func (a *ChannelAnnouncer) Announce(ctx context.Context, text string) error {
	if _, err := a.sender.ChannelMessageSend(a.channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: announce: %w", err)
	}
	return nil
}
