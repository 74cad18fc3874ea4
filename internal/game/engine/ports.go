package engine

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"time"

	"github.com/MrWong99/dictee/internal/game"
	"github.com/MrWong99/dictee/internal/game/content"
)

// ErrAnswerTimeout is returned by [Transport.AwaitAnswer] when the player did
// not answer in time.
var ErrAnswerTimeout = errors.New("engine: answer timed out")

// Transport is the chat and voice surface the engine talks through.
//
// Implementations must be safe for concurrent use: [Transport.StopPlayback]
// is called from command handlers while a round is blocked in
// [Transport.PlayAudio] or [Transport.AwaitAnswer].
type Transport interface {
	// SendMessage posts text to channelID.
	SendMessage(ctx context.Context, channelID, text string) error

	// PlayAudio plays the MP3 stream r in the game voice channel and blocks
	// until playback completes, ctx is cancelled or StopPlayback is called.
	// A cancelled ctx is reported as ctx.Err().
	PlayAudio(ctx context.Context, r io.Reader) error

	// StopPlayback interrupts the clip currently playing, if any.
	StopPlayback()

	// AwaitAnswer waits for the next message userID posts in channelID and
	// returns its content. It returns [ErrAnswerTimeout] when nothing
	// arrives within timeout.
	AwaitAnswer(ctx context.Context, channelID, userID string, timeout time.Duration) (string, error)

	// InVoiceChannel reports whether userID is connected to the game voice
	// channel.
	InVoiceChannel(ctx context.Context, userID string) bool
}

// Picker chooses the next asset of a round.
type Picker interface {
	Pick(ctx context.Context, req content.Request) (content.Pick, error)
}

// Library reads the files that belong to an asset.
type Library interface {
	Answer(a game.Asset) (string, error)
	Dialect(a game.Asset) (string, error)
	OpenAudio(a game.Asset) (fs.File, error)

	// OpenFile opens a path relative to the content root, used for cues.
	OpenFile(name string) (fs.File, error)
}

var (
	_ Picker  = (*content.Selector)(nil)
	_ Library = (*content.FSCatalog)(nil)
)
