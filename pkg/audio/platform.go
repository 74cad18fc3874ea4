// Package audio defines the voice output abstractions the quiz bot plays its
// clips through.
//
//   - [Platform] joins a voice channel and returns a [Connection].
//   - [Connection] accepts PCM frames and sends them to everyone listening.
//
// Platform adapters live in subpackages (audio/discord). Decoding lives in
// audio/mp3 and paced playback in audio/player.
package audio

import "context"

// Connection is an active voice session used for output only.
//
// Implementations must be safe for concurrent use.
type Connection interface {
	// OutputStream returns the channel frames are written to. The channel is
	// buffered and owned by the caller; the connection never closes it.
	// Frames written after Disconnect are dropped.
	OutputStream() chan<- AudioFrame

	// Disconnect leaves the voice channel. Calls after the first return nil.
	Disconnect() error
}

// Platform joins voice channels.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Connect joins channelID. ctx bounds the join only; the returned
	// Connection lives until Disconnect.
	Connect(ctx context.Context, channelID string) (Connection, error)
}
