package discord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/dictee/internal/game/engine"
	"github.com/MrWong99/dictee/pkg/audio"
	"github.com/MrWong99/dictee/pkg/audio/mp3"
	"github.com/MrWong99/dictee/pkg/audio/player"
)

var _ engine.Transport = (*Transport)(nil)

// VoiceLocator returns the voice channel userID is connected to.
type VoiceLocator func(userID string) (channelID string, ok bool)

// Decoder turns an encoded clip into voice frames.
type Decoder func(r io.Reader) ([]audio.AudioFrame, error)

// TransportOption configures a [Transport].
type TransportOption func(*Transport)

// WithDecoder replaces [mp3.Decode].
func WithDecoder(d Decoder) TransportOption {
	return func(t *Transport) {
		t.decode = d
	}
}

// WithPlayerOptions configures the player created on first playback.
func WithPlayerOptions(opts ...player.Option) TransportOption {
	return func(t *Transport) {
		t.playerOpts = append(t.playerOpts, opts...)
	}
}

type waitKey struct {
	channelID string
	userID    string
}

// Transport implements [engine.Transport] on a Discord guild: messages go to
// text channels, clips are played in one voice channel, and typed answers are
// fed in by the bot's message handler through [Transport.Deliver].
//
// The voice channel is joined on first playback and kept until Close.
type Transport struct {
	sender         MessageSender
	platform       audio.Platform
	voiceChannelID string
	locate         VoiceLocator
	decode         Decoder
	playerOpts     []player.Option

	mu     sync.Mutex
	conn   audio.Connection
	player *player.Player

	waitMu  sync.Mutex
	waiters map[waitKey]chan string
}

// NewTransport returns a Transport sending through sender and playing in
// voiceChannelID.
func NewTransport(sender MessageSender, platform audio.Platform, voiceChannelID string, locate VoiceLocator, opts ...TransportOption) *Transport {
	t := &Transport{
		sender:         sender,
		platform:       platform,
		voiceChannelID: voiceChannelID,
		locate:         locate,
		decode:         mp3.Decode,
		waiters:        make(map[waitKey]chan string),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// SendMessage implements [engine.Transport].
func (t *Transport) SendMessage(ctx context.Context, channelID, text string) error {
	if _, err := t.sender.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send message to %s: %w", channelID, err)
	}
	return nil
}

// PlayAudio implements [engine.Transport].
func (t *Transport) PlayAudio(ctx context.Context, r io.Reader) error {
	frames, err := t.decode(r)
	if err != nil {
		return fmt.Errorf("discord: decode clip: %w", err)
	}
	p, err := t.ensurePlayer(ctx)
	if err != nil {
		return err
	}
	if err := p.Play(ctx, frames); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("discord: play clip: %w", err)
	}
	return nil
}

// StopPlayback implements [engine.Transport].
func (t *Transport) StopPlayback() {
	t.mu.Lock()
	p := t.player
	t.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

// AwaitAnswer implements [engine.Transport]. Only one wait per channel and
// user is served; a second wait replaces the first.
func (t *Transport) AwaitAnswer(ctx context.Context, channelID, userID string, timeout time.Duration) (string, error) {
	key := waitKey{channelID, userID}
	ch := make(chan string, 1)

	t.waitMu.Lock()
	t.waiters[key] = ch
	t.waitMu.Unlock()
	defer func() {
		t.waitMu.Lock()
		if t.waiters[key] == ch {
			delete(t.waiters, key)
		}
		t.waitMu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case text := <-ch:
		return text, nil
	case <-timer.C:
		return "", engine.ErrAnswerTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Deliver hands a message to a pending [Transport.AwaitAnswer]. It reports
// whether someone was waiting for it.
func (t *Transport) Deliver(channelID, userID, content string) bool {
	key := waitKey{channelID, userID}
	t.waitMu.Lock()
	ch, ok := t.waiters[key]
	if ok {
		delete(t.waiters, key)
	}
	t.waitMu.Unlock()
	if !ok {
		return false
	}
	ch <- content
	return true
}

// InVoiceChannel implements [engine.Transport].
func (t *Transport) InVoiceChannel(_ context.Context, userID string) bool {
	channelID, ok := t.locate(userID)
	return ok && channelID == t.voiceChannelID
}

// Close leaves the voice channel.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.player != nil {
		t.player.Stop()
		t.player = nil
	}
	if t.conn == nil {
		return nil
	}
	err := t.conn.Disconnect()
	t.conn = nil
	if err != nil {
		return fmt.Errorf("discord: leave voice channel: %w", err)
	}
	return nil
}

func (t *Transport) ensurePlayer(ctx context.Context) (*player.Player, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.player != nil {
		return t.player, nil
	}
	conn, err := t.platform.Connect(ctx, t.voiceChannelID)
	if err != nil {
		return nil, fmt.Errorf("discord: connect voice: %w", err)
	}
	slog.Info("discord: joined voice channel", "channel_id", t.voiceChannelID)
	t.conn = conn
	t.player = player.New(conn.OutputStream(), t.playerOpts...)
	return t.player, nil
}
