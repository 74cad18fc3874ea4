// Package session holds the single in-memory record of the game being played
// and guards every change to it with a session token.
//
// Only one session exists process-wide. A session is bound to a player by
// [Manager.TryAcquire], which mints a fresh token. Every later change goes
// through [Manager.Update] with the token captured when the work was
// scheduled, so continuations left over from a stopped or finished session
// become no-ops instead of corrupting the next one.
package session

import (
	"maps"
	"time"

	"github.com/MrWong99/dictee/internal/game"
)

// Status flags whether pending work of the session should still run.
type Status int

const (
	// StatusNormal is the status of a running session.
	StatusNormal Status = iota

	// StatusStopped marks a session that was stopped; any pending playback
	// or answer wait must end silently.
	StatusStopped
)

// String returns the human-readable name of the status.
func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// State is the record of one play session.
type State struct {
	// Token identifies this session epoch.
	Token string

	// PlayerID is the user bound to the session.
	PlayerID string

	// ChannelID is the text channel answers are read from.
	ChannelID string

	Difficulty game.Difficulty
	Language   game.Language

	// Round counts rounds started so far.
	Round int

	// Lives left. Zero ends the session.
	Lives int

	Right int
	Wrong int

	// Played holds the IDs of the assets served in this session.
	Played map[string]struct{}

	Status    Status
	StartedAt time.Time
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	s.Played = maps.Clone(s.Played)
	if s.Played == nil {
		s.Played = map[string]struct{}{}
	}
	return s
}

// HasPlayed reports whether assetID was served in this session.
func (s State) HasPlayed(assetID string) bool {
	_, ok := s.Played[assetID]
	return ok
}
