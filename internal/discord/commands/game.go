// Package commands implements the dictee slash and text commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/dictee/internal/discord"
	"github.com/MrWong99/dictee/internal/game"
	"github.com/MrWong99/dictee/internal/game/engine"
	"github.com/MrWong99/dictee/internal/game/session"
)

// commandTimeout bounds the work a command handler does before answering.
const commandTimeout = 10 * time.Second

// GameEngine is the part of [engine.Engine] the game commands drive.
type GameEngine interface {
	StartSession(ctx context.Context, req engine.Start) (engine.Outcome, error)
	StopSession(ctx context.Context, requesterID string, staff bool) (engine.StopOutcome, error)
	Snapshot() (session.State, bool)
}

var _ GameEngine = (*engine.Engine)(nil)

// GameCommands holds the dependencies for /play, /stop, /status and the
// text stop command.
type GameCommands struct {
	engine         GameEngine
	perms          *discord.PermissionChecker
	gameChannelID  string
	voiceChannelID string
	languages      []game.Language
}

// NewGameCommands creates GameCommands and registers them with router.
func NewGameCommands(router *discord.CommandRouter, eng GameEngine, perms *discord.PermissionChecker, gameChannelID, voiceChannelID string, languages []game.Language) *GameCommands {
	gc := &GameCommands{
		engine:         eng,
		perms:          perms,
		gameChannelID:  gameChannelID,
		voiceChannelID: voiceChannelID,
		languages:      languages,
	}
	gc.Register(router)
	return gc
}

// Register registers the game commands with the router.
func (gc *GameCommands) Register(router *discord.CommandRouter) {
	for _, def := range gc.Definitions() {
		switch def.Name {
		case "play":
			router.RegisterCommand(def, gc.handlePlay)
		case "stop":
			router.RegisterCommand(def, gc.handleStop)
		case "status":
			router.RegisterCommand(def, gc.handleStatus)
		}
	}
	router.RegisterText("stop", gc.handleTextStop)
}

// Definitions returns the ApplicationCommand definitions for Discord.
func (gc *GameCommands) Definitions() []*discordgo.ApplicationCommand {
	difficulties := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(game.Difficulties))
	for _, d := range game.Difficulties {
		difficulties = append(difficulties, &discordgo.ApplicationCommandOptionChoice{Name: string(d), Value: string(d)})
	}
	languages := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(gc.languages))
	for _, l := range gc.languages {
		languages = append(languages, &discordgo.ApplicationCommandOptionChoice{Name: l.Name(), Value: string(l)})
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Start a listening quiz in the game voice channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "difficulty",
					Description: "Level of the clips",
					Required:    true,
					Choices:     difficulties,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "language",
					Description: "Language of the clips (default: French)",
					Choices:     languages,
				},
			},
		},
		{
			Name:        "stop",
			Description: "Stop the running listening quiz",
		},
		{
			Name:        "status",
			Description: "Show the running listening quiz",
		},
	}
}

// handlePlay handles /play.
func (gc *GameCommands) handlePlay(r discord.Responder, i *discordgo.InteractionCreate) {
	if gc.gameChannelID != "" && i.ChannelID != gc.gameChannelID {
		discord.RespondEphemeral(r, i, fmt.Sprintf("Games are played in <#%s>.", gc.gameChannelID))
		return
	}

	req := engine.Start{
		PlayerID:  discord.InteractionUserID(i),
		ChannelID: i.ChannelID,
	}
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "difficulty":
			req.Difficulty = opt.StringValue()
		case "language":
			req.Language = opt.StringValue()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	outcome, err := gc.engine.StartSession(ctx, req)
	if err != nil {
		slog.Error("commands: start session", "user_id", req.PlayerID, "err", err)
		discord.RespondError(r, i, errors.New("could not start the game"))
		return
	}

	switch outcome {
	case engine.OK:
		discord.Respond(r, i, fmt.Sprintf("🎮 <@%s> starts a **%s** listening quiz. Good luck!",
			req.PlayerID, strings.ToUpper(req.Difficulty)))
	case engine.AlreadyActive:
		msg := "Someone is already playing, please wait for their game to end."
		if st, ok := gc.engine.Snapshot(); ok {
			msg = fmt.Sprintf("<@%s> is already playing, please wait for their game to end.", st.PlayerID)
		}
		discord.RespondEphemeral(r, i, msg)
	case engine.NotInVoice:
		discord.RespondEphemeral(r, i, fmt.Sprintf("Join <#%s> first, the clips are played there.", gc.voiceChannelID))
	case engine.InvalidDifficulty:
		discord.RespondEphemeral(r, i, "Unknown difficulty. Pick one of A1, A2, B1, B2, C1-C2.")
	case engine.InvalidLanguage:
		discord.RespondEphemeral(r, i, "That language is not available.")
	}
}

// handleStop handles /stop.
func (gc *GameCommands) handleStop(r discord.Responder, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	outcome, err := gc.engine.StopSession(ctx, discord.InteractionUserID(i), gc.perms.IsStaff(i.Member))
	if err != nil {
		slog.Error("commands: stop session", "err", err)
		discord.RespondError(r, i, errors.New("could not stop the game"))
		return
	}
	discord.RespondEphemeral(r, i, stopReply(outcome))
}

// handleTextStop handles the prefix stop command typed in a channel.
func (gc *GameCommands) handleTextStop(s discord.MessageSender, m *discordgo.MessageCreate, _ string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	outcome, err := gc.engine.StopSession(ctx, m.Author.ID, gc.perms.IsStaff(m.Member))
	if err != nil {
		slog.Error("commands: stop session", "err", err)
		return
	}
	// The engine announces a successful stop itself.
	if outcome == engine.StopOK {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, stopReply(outcome)); err != nil {
		slog.Warn("commands: reply to stop", "err", err)
	}
}

func stopReply(o engine.StopOutcome) string {
	switch o {
	case engine.StopOK:
		return "Game stopped."
	case engine.StopNotAuthorized:
		return "Only the player or staff can stop this game."
	default:
		return "Nobody is playing right now."
	}
}

// handleStatus handles /status.
func (gc *GameCommands) handleStatus(r discord.Responder, i *discordgo.InteractionCreate) {
	st, ok := gc.engine.Snapshot()
	if !ok {
		discord.RespondEphemeral(r, i, "Nobody is playing right now.")
		return
	}
	discord.RespondEmbed(r, i, statusEmbed(st))
}

func statusEmbed(st session.State) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🎧 Listening quiz",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Player", Value: fmt.Sprintf("<@%s>", st.PlayerID), Inline: true},
			{Name: "Level", Value: fmt.Sprintf("%s (%s)", st.Difficulty, st.Language.Name()), Inline: true},
			{Name: "Round", Value: fmt.Sprintf("%d", st.Round), Inline: true},
			{Name: "Lives", Value: fmt.Sprintf("%d", st.Lives), Inline: true},
			{Name: "Right", Value: fmt.Sprintf("%d", st.Right), Inline: true},
			{Name: "Wrong", Value: fmt.Sprintf("%d", st.Wrong), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Started " + st.StartedAt.UTC().Format(time.RFC1123),
		},
	}
}
