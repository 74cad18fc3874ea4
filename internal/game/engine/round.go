package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/dictee/internal/game"
	"github.com/MrWong99/dictee/internal/game/content"
	"github.com/MrWong99/dictee/internal/game/reward"
	"github.com/MrWong99/dictee/internal/game/session"
	"github.com/MrWong99/dictee/internal/observe"
)

// Reasons a session ends, used in summaries and metrics.
const (
	reasonWin       = "win"
	reasonLoss      = "loss"
	reasonAbandoned = "abandoned"
	reasonExhausted = "exhausted"
	reasonError     = "error"
	reasonStopped   = "stopped"
)

// Round results, used in metrics.
const (
	resultCorrect = "correct"
	resultWrong   = "wrong"
	resultTimeout = "timeout"
)

// errSuperseded reports that the loop no longer owns the session. The loop
// exits without touching state or sending anything.
var errSuperseded = errors.New("engine: session superseded")

// run drives the rounds of one session until it ends. Every round span is a
// child of the session span.
func (e *Engine) run(ctx context.Context, token, playerID string) {
	ctx, span := observe.StartSpan(ctx, "engine.session", trace.WithAttributes(
		observe.AttrSessionToken.String(token),
		observe.AttrPlayer.String(playerID),
	))
	defer span.End()

	for {
		reason, err := e.round(ctx, token)
		if e.superseded(ctx, err) {
			return
		}
		if reason != "" {
			e.finish(ctx, token, reason, err)
			return
		}
		if !e.pause(ctx) {
			return
		}
	}
}

func (e *Engine) superseded(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, errSuperseded) ||
		errors.Is(err, session.ErrStaleToken)
}

// pause waits the inter-round delay. It reports false if ctx ended first.
func (e *Engine) pause(ctx context.Context) bool {
	delay := e.Timing().RoundDelay
	if delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// current returns the live state if token still owns it.
func (e *Engine) current(token string) (session.State, error) {
	st, ok := e.sessions.Snapshot()
	if !ok || st.Token != token || st.Status != session.StatusNormal {
		return session.State{}, session.ErrStaleToken
	}
	return st, nil
}

// round plays one clip and grades one answer. It returns a non-empty reason
// when the session must end, or an empty reason to continue.
func (e *Engine) round(ctx context.Context, token string) (reason string, err error) {
	ctx, span := observe.StartSpan(ctx, "engine.round")
	defer func() {
		if reason == reasonError && err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "round failed")
		}
		span.End()
	}()

	st, err := e.current(token)
	if err != nil {
		return "", err
	}
	log := observe.Logger(ctx).With("session_token", token, "user_id", st.PlayerID)
	timing := e.Timing()

	if !e.transport.InVoiceChannel(ctx, st.PlayerID) {
		log.Info("player left the voice channel")
		return reasonAbandoned, nil
	}

	records, err := e.cooldowns.Cooldowns(ctx, st.PlayerID, st.Language, st.Difficulty)
	if err != nil {
		return reasonError, fmt.Errorf("engine: load cooldowns: %w", err)
	}
	lastPlayed := make(map[string]time.Time, len(records))
	for _, r := range records {
		lastPlayed[r.AssetID] = r.PlayedAt
	}

	now := e.now()
	pick, err := e.picker.Pick(ctx, content.Request{
		Language:   st.Language,
		Difficulty: st.Difficulty,
		Excluded:   st.Played,
		LastPlayed: lastPlayed,
		Now:        now,
	})
	if errors.Is(err, content.ErrExhausted) {
		log.Info("content exhausted", "err", err)
		return reasonExhausted, nil
	}
	if err != nil {
		return reasonError, fmt.Errorf("engine: pick asset: %w", err)
	}
	asset := pick.Asset

	answer, err := e.library.Answer(asset)
	if err != nil {
		return reasonError, fmt.Errorf("engine: read answer of %s: %w", asset.ID, err)
	}
	dialect, err := e.library.Dialect(asset)
	if err != nil {
		log.Warn("could not read dialect", "asset", asset.ID, "err", err)
	}

	st, err = e.sessions.Update(token, func(s *session.State) {
		s.Round++
		s.Played[asset.ID] = struct{}{}
	})
	if err != nil {
		return "", err
	}
	log = log.With("round", st.Round, "asset", asset.ID)
	span.SetAttributes(observe.AttrRound.Int(st.Round), observe.AttrAsset.String(asset.Dir))

	rec := game.CooldownRecord{
		UserID:     st.PlayerID,
		AssetID:    asset.ID,
		Language:   st.Language,
		Difficulty: st.Difficulty,
		PlayedAt:   now,
	}
	if pick.Repeat {
		err = e.cooldowns.TouchAssetPlayed(ctx, rec)
	} else {
		err = e.cooldowns.RecordAssetPlayed(ctx, rec)
	}
	if err != nil {
		return reasonError, fmt.Errorf("engine: record cooldown: %w", err)
	}

	if err := e.transport.SendMessage(ctx, st.ChannelID, announce(st, timing, dialect)); err != nil {
		return reasonError, fmt.Errorf("engine: announce round: %w", err)
	}
	if err := e.play(ctx, func() (fs.File, error) { return e.library.OpenAudio(asset) }); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if _, cerr := e.current(token); cerr != nil {
			return "", cerr
		}
		return reasonError, fmt.Errorf("engine: play %s: %w", asset.ID, err)
	}
	if _, err := e.current(token); err != nil {
		return "", err
	}
	if err := e.transport.SendMessage(ctx, st.ChannelID, prompt(st, timing)); err != nil {
		return reasonError, fmt.Errorf("engine: prompt answer: %w", err)
	}

	text, err := e.transport.AwaitAnswer(ctx, st.ChannelID, st.PlayerID, timing.AnswerTimeout)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if _, cerr := e.current(token); cerr != nil {
		return "", cerr
	}
	timedOut := errors.Is(err, ErrAnswerTimeout)
	if err != nil && !timedOut {
		return reasonError, fmt.Errorf("engine: await answer: %w", err)
	}

	if !timedOut && e.isStop(text) {
		log.Info("stop typed as answer")
		if err := e.halt(ctx, token, st.PlayerID); err != nil {
			return "", err
		}
		return "", errSuperseded
	}

	accuracy, correct := 0, false
	if !timedOut {
		accuracy, correct = e.scorer.Grade(text, answer)
	}
	st, err = e.sessions.Update(token, func(s *session.State) {
		if correct {
			s.Right++
			return
		}
		s.Wrong++
		s.Lives--
	})
	if err != nil {
		return "", err
	}

	result := resultWrong
	switch {
	case correct:
		result = resultCorrect
	case timedOut:
		result = resultTimeout
	}
	e.metrics.RecordRound(ctx, result, accuracy)
	span.SetAttributes(observe.AttrResult.String(result), observe.AttrAccuracy.Int(accuracy))
	log.Info("round graded", "result", result, "accuracy", accuracy, "lives", st.Lives)

	if correct {
		err = e.tally.RecordRoundWin(ctx, st.PlayerID)
	} else {
		err = e.tally.RecordRoundLoss(ctx, st.PlayerID)
	}
	if err != nil {
		return reasonError, fmt.Errorf("engine: record round tally: %w", err)
	}

	msg := verdict(st, result, accuracy, text, answer)
	if err := e.transport.SendMessage(ctx, st.ChannelID, msg); err != nil {
		return reasonError, fmt.Errorf("engine: send verdict: %w", err)
	}

	cue := e.cues.Wrong
	if correct {
		cue = e.cues.Correct
	}
	if cue != "" {
		if err := e.play(ctx, func() (fs.File, error) { return e.library.OpenFile(cue) }); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Warn("could not play cue", "cue", cue, "err", err)
		}
	}

	switch {
	case st.Lives == 0:
		return reasonLoss, nil
	case st.Round >= timing.MaxRounds:
		return reasonWin, nil
	}
	return "", nil
}

func (e *Engine) play(ctx context.Context, open func() (fs.File, error)) error {
	f, err := open()
	if err != nil {
		return err
	}
	defer f.Close()
	return e.transport.PlayAudio(ctx, f)
}

func (e *Engine) isStop(text string) bool {
	return e.stopPrefix != "" && strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), e.stopPrefix)
}

// finish releases the session, pays the reward and posts the summary. A
// failed release means the session was stopped concurrently and the stop
// already reported it.
func (e *Engine) finish(ctx context.Context, token, reason string, cause error) {
	final, err := e.sessions.Release(token)
	if err != nil {
		return
	}
	log := observe.Logger(ctx).With("session_token", token, "user_id", final.PlayerID)
	if cause != nil {
		log.Error("session aborted", "err", cause)
	}

	var g reward.Grant
	if reason == reasonWin || reason == reasonLoss || final.Right >= 1 {
		g, err = e.rewards.Grant(ctx, final.PlayerID, final.Right, final.Difficulty)
		if err != nil {
			log.Error("could not grant reward", "right", final.Right, "err", err)
			g = reward.Grant{}
		}
	}

	e.metrics.RecordSessionEnded(ctx, reason, g.Amount)
	trace.SpanFromContext(ctx).SetAttributes(observe.AttrSessionEnd.String(reason))
	log.Info("session ended",
		"reason", reason,
		"round", final.Round,
		"right", final.Right,
		"wrong", final.Wrong,
		"reward", g.Amount,
		"bonus_roll", g.BonusRoll,
	)
	if err := e.transport.SendMessage(ctx, final.ChannelID, summary(final, reason, g)); err != nil {
		log.Warn("could not send summary", "err", err)
	}
}
