// Package mock provides test doubles for the Discord surfaces the bot talks
// through. Session records interaction responses and channel messages and
// serves guild members from memory. It is safe for concurrent use.
package mock

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// SentMessage is one recorded ChannelMessageSend call.
type SentMessage struct {
	ChannelID string
	Content   string
}

// Session records interactions and messages for test assertions.
type Session struct {
	mu sync.Mutex

	// Err is returned by every call when non-nil.
	Err error

	// Members is served by GuildMembers, ordered by user ID.
	Members []*discordgo.Member

	responses []*discordgo.InteractionResponse
	followUps []*discordgo.WebhookParams
	messages  []SentMessage
	pages     int
}

// InteractionRespond records the response and returns Err.
func (m *Session) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	return m.Err
}

// FollowupMessageCreate records the follow-up and returns a stub message.
func (m *Session) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, params *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.followUps = append(m.followUps, params)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-followup"}, nil
}

// ChannelMessageSend records the message.
func (m *Session) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.messages = append(m.messages, SentMessage{ChannelID: channelID, Content: content})
	return &discordgo.Message{ID: fmt.Sprintf("mock-%d", len(m.messages)), ChannelID: channelID, Content: content}, nil
}

// GuildMembers returns up to limit members whose user ID sorts after after.
func (m *Session) GuildMembers(_ string, after string, limit int, _ ...discordgo.RequestOption) ([]*discordgo.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages++
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*discordgo.Member
	for _, mem := range m.Members {
		if len(out) == limit {
			break
		}
		if mem.User.ID > after {
			out = append(out, mem)
		}
	}
	return out, nil
}

// Responses returns the recorded interaction responses.
func (m *Session) Responses() []*discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*discordgo.InteractionResponse(nil), m.responses...)
}

// LastResponse returns the most recently recorded response, or nil.
func (m *Session) LastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return nil
	}
	return m.responses[len(m.responses)-1]
}

// LastFollowUp returns the most recently recorded follow-up, or nil.
func (m *Session) LastFollowUp() *discordgo.WebhookParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.followUps) == 0 {
		return nil
	}
	return m.followUps[len(m.followUps)-1]
}

// Messages returns the recorded channel messages.
func (m *Session) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.messages...)
}

// Pages returns how many GuildMembers calls were made.
func (m *Session) Pages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages
}
