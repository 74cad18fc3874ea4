// Package mock provides a scripted in-memory [engine.Transport] for unit
// tests.
//
// Answers are handed out in order by AwaitAnswer. Once the script runs out,
// AwaitAnswer blocks until its context is cancelled, which lets tests hold a
// session open and stop it. All methods are safe for concurrent use.
//
// Example:
//
//	tr := &mock.Transport{Answers: []mock.Answer{{Text: "bonjour"}, mock.Timeout}}
package mock

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/dictee/internal/game/engine"
)

// Compile-time interface assertion.
var _ engine.Transport = (*Transport)(nil)

// Answer is one scripted result of [Transport.AwaitAnswer].
type Answer struct {
	Text string
	Err  error
}

// Timeout is a scripted answer that times out.
var Timeout = Answer{Err: engine.ErrAnswerTimeout}

// Message records one SendMessage call.
type Message struct {
	ChannelID string
	Text      string
}

// AwaitCall records the arguments of one AwaitAnswer call.
type AwaitCall struct {
	ChannelID string
	UserID    string
	Timeout   time.Duration
}

// Transport is a mock implementation of [engine.Transport].
type Transport struct {
	mu sync.Mutex

	// Answers is consumed front to back by AwaitAnswer.
	Answers []Answer

	// InVoice decides InVoiceChannel. Nil means every user is connected.
	InVoice func(userID string) bool

	// SendErr is returned by SendMessage when non-nil.
	SendErr error

	// PlayErr is returned by PlayAudio when non-nil.
	PlayErr error

	messages    []Message
	played      []string
	awaitCalls  []AwaitCall
	stopPlaying int
}

// SendMessage implements [engine.Transport].
func (t *Transport) SendMessage(_ context.Context, channelID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.SendErr != nil {
		return t.SendErr
	}
	t.messages = append(t.messages, Message{ChannelID: channelID, Text: text})
	return nil
}

// PlayAudio implements [engine.Transport]. It drains r and records its
// content.
func (t *Transport) PlayAudio(ctx context.Context, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.PlayErr != nil {
		return t.PlayErr
	}
	t.played = append(t.played, string(data))
	return nil
}

// StopPlayback implements [engine.Transport].
func (t *Transport) StopPlayback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopPlaying++
}

// AwaitAnswer implements [engine.Transport].
func (t *Transport) AwaitAnswer(ctx context.Context, channelID, userID string, timeout time.Duration) (string, error) {
	t.mu.Lock()
	t.awaitCalls = append(t.awaitCalls, AwaitCall{ChannelID: channelID, UserID: userID, Timeout: timeout})
	if len(t.Answers) > 0 {
		a := t.Answers[0]
		t.Answers = t.Answers[1:]
		t.mu.Unlock()
		return a.Text, a.Err
	}
	t.mu.Unlock()

	<-ctx.Done()
	return "", ctx.Err()
}

// InVoiceChannel implements [engine.Transport].
func (t *Transport) InVoiceChannel(_ context.Context, userID string) bool {
	t.mu.Lock()
	fn := t.InVoice
	t.mu.Unlock()
	return fn == nil || fn(userID)
}

// SetInVoice replaces the voice presence check.
func (t *Transport) SetInVoice(fn func(userID string) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.InVoice = fn
}

// Messages returns a copy of every message sent so far.
func (t *Transport) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.messages)
}

// Played returns the content of every clip played so far.
func (t *Transport) Played() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.played)
}

// AwaitCalls returns every AwaitAnswer invocation so far.
func (t *Transport) AwaitCalls() []AwaitCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.awaitCalls)
}

// StopPlaybackCalls returns how often StopPlayback was called.
func (t *Transport) StopPlaybackCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopPlaying
}
