package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/dictee/internal/discord"
	"github.com/MrWong99/dictee/internal/game"
)

// leaderboardSize is the number of players /leaderboard lists.
const leaderboardSize = 10

// ProfileReader is the read side of the player stores.
type ProfileReader interface {
	Profile(ctx context.Context, userID string) (*game.Profile, error)
	RoundTally(ctx context.Context, userID string) (*game.RoundTally, error)
	Leaderboard(ctx context.Context, limit int) ([]game.RoundTally, error)
	RollDice(ctx context.Context, userID string) (int, error)
}

// ProfileCommands implements /profile and /leaderboard.
type ProfileCommands struct {
	store ProfileReader
}

// NewProfileCommands creates ProfileCommands and registers them with router.
func NewProfileCommands(router *discord.CommandRouter, store ProfileReader) *ProfileCommands {
	pc := &ProfileCommands{store: store}
	pc.Register(router)
	return pc
}

// Register registers the profile commands with the router.
func (pc *ProfileCommands) Register(router *discord.CommandRouter) {
	for _, def := range pc.Definitions() {
		switch def.Name {
		case "profile":
			router.RegisterCommand(def, pc.handleProfile)
		case "leaderboard":
			router.RegisterCommand(def, pc.handleLeaderboard)
		}
	}
}

// Definitions returns the ApplicationCommand definitions for Discord.
func (pc *ProfileCommands) Definitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "profile",
			Description: "Show crumbs and round record of a member",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Member to look up (default: you)",
				},
			},
		},
		{
			Name:        "leaderboard",
			Description: "Show the players with the most won rounds",
		},
	}
}

// handleProfile handles /profile [member].
func (pc *ProfileCommands) handleProfile(r discord.Responder, i *discordgo.InteractionCreate) {
	userID := discord.InteractionUserID(i)
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "member" {
			if u := opt.UserValue(nil); u != nil {
				userID = u.ID
			}
		}
	}

	discord.DeferReply(r, i, true)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	embed, err := pc.profileEmbed(ctx, userID)
	if err != nil {
		slog.Error("commands: load profile", "user_id", userID, "err", err)
		discord.FollowUp(r, i, "Could not load the profile, please try again later.")
		return
	}
	discord.FollowUpEmbed(r, i, embed)
}

func (pc *ProfileCommands) profileEmbed(ctx context.Context, userID string) (*discordgo.MessageEmbed, error) {
	p, err := pc.store.Profile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	tally, err := pc.store.RoundTally(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("round tally: %w", err)
	}
	dice, err := pc.store.RollDice(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("roll dice: %w", err)
	}

	if p == nil {
		p = &game.Profile{UserID: userID}
	}
	if tally == nil {
		tally = &game.RoundTally{UserID: userID}
	}
	lastPlayed := "never"
	if !p.LastTimePlayed.IsZero() {
		lastPlayed = fmt.Sprintf("<t:%d:R>", p.LastTimePlayed.Unix())
	}

	return &discordgo.MessageEmbed{
		Title:       "📇 Profile",
		Description: fmt.Sprintf("<@%s>", userID),
		Color:       0x57F287,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Crumbs", Value: fmt.Sprintf("%d", p.Money), Inline: true},
			{Name: "Games played", Value: fmt.Sprintf("%d", p.GamesPlayed), Inline: true},
			{Name: "Last played", Value: lastPlayed, Inline: true},
			{Name: "Rounds won", Value: fmt.Sprintf("%d", tally.Wins), Inline: true},
			{Name: "Rounds lost", Value: fmt.Sprintf("%d", tally.Losses), Inline: true},
			{Name: "Roll dice", Value: fmt.Sprintf("%d", dice), Inline: true},
		},
	}, nil
}

// handleLeaderboard handles /leaderboard.
func (pc *ProfileCommands) handleLeaderboard(r discord.Responder, i *discordgo.InteractionCreate) {
	discord.DeferReply(r, i, false)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	top, err := pc.store.Leaderboard(ctx, leaderboardSize)
	if err != nil {
		slog.Error("commands: load leaderboard", "err", err)
		discord.FollowUp(r, i, "Could not load the leaderboard, please try again later.")
		return
	}
	discord.FollowUpEmbed(r, i, leaderboardEmbed(top))
}

func leaderboardEmbed(top []game.RoundTally) *discordgo.MessageEmbed {
	var b strings.Builder
	if len(top) == 0 {
		b.WriteString("No rounds played yet.")
	}
	for n, t := range top {
		fmt.Fprintf(&b, "**%d.** <@%s> · %d won · %d lost\n", n+1, t.UserID, t.Wins, t.Losses)
	}
	return &discordgo.MessageEmbed{
		Title:       "🏆 Leaderboard",
		Description: strings.TrimRight(b.String(), "\n"),
		Color:       0xFEE75C,
	}
}
