package discord

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// HandlerFunc is the signature for slash command handlers.
type HandlerFunc func(r Responder, i *discordgo.InteractionCreate)

// TextHandlerFunc is the signature for prefix text command handlers. args is
// the rest of the message after the command name, trimmed.
type TextHandlerFunc func(s MessageSender, m *discordgo.MessageCreate, args string)

// commandEntry stores a command definition along with its handler.
type commandEntry struct {
	command *discordgo.ApplicationCommand
	handler HandlerFunc
}

// CommandRouter dispatches slash command interactions and prefix text
// commands to registered handlers.
type CommandRouter struct {
	prefix string

	mu       sync.RWMutex
	commands map[string]commandEntry    // command name → entry
	text     map[string]TextHandlerFunc // lower-case text command name → handler
}

// NewCommandRouter creates an empty router. Text commands are recognised
// when a message starts with prefix followed by their name.
func NewCommandRouter(prefix string) *CommandRouter {
	return &CommandRouter{
		prefix:   strings.ToLower(prefix),
		commands: make(map[string]commandEntry),
		text:     make(map[string]TextHandlerFunc),
	}
}

// Prefix returns the text command prefix, lower-cased.
func (r *CommandRouter) Prefix() string {
	return r.prefix
}

// RegisterCommand registers a handler for the slash command cmd.
func (r *CommandRouter) RegisterCommand(cmd *discordgo.ApplicationCommand, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd.Name] = commandEntry{command: cmd, handler: handler}
}

// RegisterText registers a handler for the text command prefix+name.
// Matching is case-insensitive.
func (r *CommandRouter) RegisterText(name string, handler TextHandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text[strings.ToLower(name)] = handler
}

// ApplicationCommands returns the command definitions for registration with
// the Discord API.
func (r *CommandRouter) ApplicationCommands() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]*discordgo.ApplicationCommand, 0, len(r.commands))
	for _, entry := range r.commands {
		cmds = append(cmds, entry.command)
	}
	return cmds
}

// Handle dispatches an interaction to the appropriate handler.
func (r *CommandRouter) Handle(resp Responder, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		slog.Debug("discord: unhandled interaction type", "type", i.Type)
		return
	}
	name := i.ApplicationCommandData().Name

	r.mu.RLock()
	entry, ok := r.commands[name]
	r.mu.RUnlock()

	if !ok {
		slog.Warn("discord: unknown command", "name", name)
		RespondEphemeral(resp, i, "Unknown command.")
		return
	}
	entry.handler(resp, i)
}

// HandleText runs the text command m invokes, if any. It reports whether m
// was a command, in which case it must not be treated as an answer.
func (r *CommandRouter) HandleText(s MessageSender, m *discordgo.MessageCreate) bool {
	if r.prefix == "" {
		return false
	}
	content := strings.TrimSpace(m.Content)
	if len(content) < len(r.prefix) || !strings.EqualFold(content[:len(r.prefix)], r.prefix) {
		return false
	}
	name, args, _ := strings.Cut(content[len(r.prefix):], " ")

	r.mu.RLock()
	handler, ok := r.text[strings.ToLower(name)]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	handler(s, m, strings.TrimSpace(args))
	return true
}
