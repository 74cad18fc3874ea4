// Package engine runs listening-quiz sessions: it plays a clip per round,
// waits for the player's typed answer, grades it and ends the session with a
// reward once the player wins, loses or leaves.
//
// Each session runs sequentially in its own goroutine. Every step that
// resumes after a blocking call checks the session token against the
// [session.Manager] first, so a loop whose session was stopped or replaced
// never touches the state of its successor.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/dictee/internal/game"
	"github.com/MrWong99/dictee/internal/game/reward"
	"github.com/MrWong99/dictee/internal/game/scoring"
	"github.com/MrWong99/dictee/internal/game/session"
	"github.com/MrWong99/dictee/internal/observe"
)

// Outcome is the result of [Engine.StartSession].
type Outcome int

const (
	OK Outcome = iota
	AlreadyActive
	NotInVoice
	InvalidDifficulty
	InvalidLanguage
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case AlreadyActive:
		return "already_active"
	case NotInVoice:
		return "not_in_voice"
	case InvalidDifficulty:
		return "invalid_difficulty"
	case InvalidLanguage:
		return "invalid_language"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// StopOutcome is the result of [Engine.StopSession].
type StopOutcome int

const (
	StopOK StopOutcome = iota
	StopNotPlaying
	StopNotAuthorized
)

// String returns the outcome name.
func (o StopOutcome) String() string {
	switch o {
	case StopOK:
		return "ok"
	case StopNotPlaying:
		return "not_playing"
	case StopNotAuthorized:
		return "not_authorized"
	default:
		return fmt.Sprintf("StopOutcome(%d)", int(o))
	}
}

// Timing holds the hot-reloadable pacing of a session.
type Timing struct {
	Lives         int
	MaxRounds     int
	AnswerTimeout time.Duration
	RoundDelay    time.Duration
}

// DefaultTiming is used for zero fields of [Config.Timing].
var DefaultTiming = Timing{
	Lives:         session.DefaultLives,
	MaxRounds:     10,
	AnswerTimeout: 30 * time.Second,
	RoundDelay:    10 * time.Second,
}

// Cues names the feedback clips played after an answer, relative to the
// library root. Empty names are skipped.
type Cues struct {
	Correct string
	Wrong   string
}

// Config holds the collaborators of an [Engine].
type Config struct {
	Sessions  *session.Manager
	Picker    Picker
	Library   Library
	Scorer    *scoring.Scorer
	Rewards   *reward.Calculator
	Transport Transport
	Tally     game.TallyStore
	Cooldowns game.CooldownStore

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	Timing Timing
	Cues   Cues

	// StopPrefix is the plain-text command that ends the session when typed
	// as an answer (e.g., "m!stop"). Empty disables it.
	StopPrefix string

	// Languages restricts the languages offered. Empty allows all of
	// [game.Languages].
	Languages []game.Language

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Start is a play request.
type Start struct {
	PlayerID string

	// ChannelID is the text channel rounds are announced in and answers are
	// read from.
	ChannelID string

	Difficulty string

	// Language defaults to French when empty.
	Language string
}

// Engine starts, runs and stops quiz sessions. All exported methods are safe
// for concurrent use.
type Engine struct {
	sessions  *session.Manager
	picker    Picker
	library   Library
	scorer    *scoring.Scorer
	rewards   *reward.Calculator
	transport Transport
	tally     game.TallyStore
	cooldowns game.CooldownStore
	metrics   *observe.Metrics

	cues       Cues
	stopPrefix string
	languages  []game.Language
	now        func() time.Time

	timing atomic.Pointer[Timing]

	// base outlives the command that started a session; Close cancels it.
	base       context.Context
	cancelBase context.CancelFunc

	mu    sync.Mutex
	loops map[string]context.CancelFunc
	wg    sync.WaitGroup
}

// New validates cfg and returns a ready [Engine].
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Sessions == nil:
		return nil, errors.New("engine: session manager is required")
	case cfg.Picker == nil:
		return nil, errors.New("engine: picker is required")
	case cfg.Library == nil:
		return nil, errors.New("engine: library is required")
	case cfg.Scorer == nil:
		return nil, errors.New("engine: scorer is required")
	case cfg.Rewards == nil:
		return nil, errors.New("engine: reward calculator is required")
	case cfg.Transport == nil:
		return nil, errors.New("engine: transport is required")
	case cfg.Tally == nil:
		return nil, errors.New("engine: tally store is required")
	case cfg.Cooldowns == nil:
		return nil, errors.New("engine: cooldown store is required")
	}

	e := &Engine{
		sessions:   cfg.Sessions,
		picker:     cfg.Picker,
		library:    cfg.Library,
		scorer:     cfg.Scorer,
		rewards:    cfg.Rewards,
		transport:  cfg.Transport,
		tally:      cfg.Tally,
		cooldowns:  cfg.Cooldowns,
		metrics:    cfg.Metrics,
		cues:       cfg.Cues,
		stopPrefix: strings.ToLower(cfg.StopPrefix),
		languages:  slices.Clone(cfg.Languages),
		now:        cfg.Clock,
		loops:      make(map[string]context.CancelFunc),
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if len(e.languages) == 0 {
		e.languages = slices.Clone(game.Languages)
	}
	e.SetTiming(cfg.Timing)
	e.base, e.cancelBase = context.WithCancel(context.Background())
	return e, nil
}

// SetTiming replaces the pacing used by rounds that start after the call.
// Zero fields fall back to [DefaultTiming].
func (e *Engine) SetTiming(t Timing) {
	if t.Lives <= 0 {
		t.Lives = DefaultTiming.Lives
	}
	if t.MaxRounds <= 0 {
		t.MaxRounds = DefaultTiming.MaxRounds
	}
	if t.AnswerTimeout <= 0 {
		t.AnswerTimeout = DefaultTiming.AnswerTimeout
	}
	if t.RoundDelay < 0 {
		t.RoundDelay = 0
	}
	e.timing.Store(&t)
}

// Timing returns the current pacing.
func (e *Engine) Timing() Timing {
	return *e.timing.Load()
}

// Snapshot returns a copy of the running session, if any.
func (e *Engine) Snapshot() (session.State, bool) {
	return e.sessions.Snapshot()
}

// StartSession validates req, binds the session to the player and starts the
// round loop in the background. A non-OK outcome leaves every state
// untouched and is not an error.
func (e *Engine) StartSession(ctx context.Context, req Start) (Outcome, error) {
	d, err := game.ParseDifficulty(req.Difficulty)
	if err != nil {
		return InvalidDifficulty, nil
	}
	lang := game.French
	if req.Language != "" {
		lang, err = game.ParseLanguage(req.Language)
		if err != nil || !slices.Contains(e.languages, lang) {
			return InvalidLanguage, nil
		}
	}
	if !e.transport.InVoiceChannel(ctx, req.PlayerID) {
		return NotInVoice, nil
	}

	st, err := e.sessions.TryAcquire(session.Start{
		PlayerID:   req.PlayerID,
		ChannelID:  req.ChannelID,
		Difficulty: d,
		Language:   lang,
		Lives:      e.Timing().Lives,
	})
	if errors.Is(err, session.ErrAlreadyActive) {
		return AlreadyActive, nil
	}
	if err != nil {
		return OK, fmt.Errorf("engine: acquire session: %w", err)
	}

	loopCtx, cancel := context.WithCancel(e.base)
	e.mu.Lock()
	e.loops[st.Token] = cancel
	e.mu.Unlock()

	e.metrics.RecordSessionStarted(ctx, string(d))
	slog.Info("session started",
		"user_id", st.PlayerID,
		"session_token", st.Token,
		"difficulty", d,
		"language", lang,
	)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.forget(st.Token)
		e.run(loopCtx, st.Token, st.PlayerID)
	}()
	return OK, nil
}

// StopSession ends the running session on behalf of requesterID. Only the
// player or staff may stop it. The session is reset and playback halted
// before StopSession returns.
func (e *Engine) StopSession(ctx context.Context, requesterID string, staff bool) (StopOutcome, error) {
	st, ok := e.sessions.Snapshot()
	if !ok {
		return StopNotPlaying, nil
	}
	if st.PlayerID != requesterID && !staff {
		return StopNotAuthorized, nil
	}
	err := e.halt(ctx, st.Token, requesterID)
	if errors.Is(err, session.ErrNotActive) || errors.Is(err, session.ErrStaleToken) {
		return StopNotPlaying, nil
	}
	if err != nil {
		return StopNotPlaying, err
	}
	return StopOK, nil
}

// Close stops the running session, if any, and waits for its loop to exit.
func (e *Engine) Close() error {
	if st, ok := e.sessions.Snapshot(); ok {
		if err := e.halt(e.base, st.Token, ""); err != nil && !errors.Is(err, session.ErrStaleToken) && !errors.Is(err, session.ErrNotActive) {
			slog.Warn("engine: stop session on close", "err", err)
		}
	}
	e.cancelBase()
	e.wg.Wait()
	return nil
}

// halt stops the session identified by token: the manager is reset first,
// then the loop is cancelled and playback interrupted. The summary message
// is sent even when ctx is the loop's own context.
func (e *Engine) halt(ctx context.Context, token, by string) error {
	final, err := e.sessions.Stop(token)
	if err != nil {
		return err
	}
	e.transport.StopPlayback()
	e.cancelLoop(token)

	sendCtx := context.WithoutCancel(ctx)
	e.metrics.RecordSessionEnded(sendCtx, reasonStopped, 0)
	slog.Info("session stopped",
		"user_id", final.PlayerID,
		"session_token", final.Token,
		"stopped_by", by,
		"round", final.Round,
		"right", final.Right,
		"wrong", final.Wrong,
	)
	if err := e.transport.SendMessage(sendCtx, final.ChannelID, summary(final, reasonStopped, reward.Grant{})); err != nil {
		slog.Warn("engine: send stop summary", "session_token", final.Token, "err", err)
	}
	return nil
}

func (e *Engine) cancelLoop(token string) {
	e.mu.Lock()
	cancel, ok := e.loops[token]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

func (e *Engine) forget(token string) {
	e.mu.Lock()
	cancel, ok := e.loops[token]
	delete(e.loops, token)
	e.mu.Unlock()
	if ok {
		cancel()
	}
}
