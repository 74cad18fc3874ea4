package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrWong99/dictee/internal/game"
	"github.com/MrWong99/dictee/internal/game/content"
	"github.com/MrWong99/dictee/internal/game/engine"
	"github.com/MrWong99/dictee/internal/game/engine/mock"
	"github.com/MrWong99/dictee/internal/game/reward"
	"github.com/MrWong99/dictee/internal/game/scoring"
	"github.com/MrWong99/dictee/internal/game/session"
	"github.com/MrWong99/dictee/internal/store/memstore"
)

const (
	gameChannel = "text-1"
	answer      = "Bonjour tout le monde."
)

var correct = mock.Answer{Text: "bonjour tout le monde"}
var wrong = mock.Answer{Text: "au revoir"}

type fixture struct {
	engine *engine.Engine
	tr     *mock.Transport
	store  *memstore.Store
}

// newFixture builds an engine over n A1 assets per language (French when
// none is given) that all share the same answer, so scripted answers do not
// depend on the random pick order.
func newFixture(t *testing.T, n int, tr *mock.Transport, langs ...game.Language) *fixture {
	t.Helper()

	if len(langs) == 0 {
		langs = []game.Language{game.French}
	}
	fsys := fstest.MapFS{
		"cues/correct.mp3": &fstest.MapFile{Data: []byte("cue-correct")},
		"cues/wrong.mp3":   &fstest.MapFile{Data: []byte("cue-wrong")},
	}
	for _, lang := range langs {
		for i := range n {
			dir := fmt.Sprintf("%s/A1/%03d", lang, i)
			fsys[dir+"/audio.mp3"] = &fstest.MapFile{Data: []byte("clip-" + dir)}
			fsys[dir+"/answer.txt"] = &fstest.MapFile{Data: []byte(answer)}
		}
	}
	catalog := content.NewFSCatalog(fsys)
	store := memstore.New()

	e, err := engine.New(engine.Config{
		Sessions:  session.NewManager(),
		Picker:    content.NewSelector(catalog, content.WithRand(rand.New(rand.NewPCG(7, 7)))),
		Library:   catalog,
		Scorer:    scoring.New(),
		Rewards:   reward.New(store, store, reward.WithBonusChance(0)),
		Transport: tr,
		Tally:     store,
		Cooldowns: store,
		Timing: engine.Timing{
			Lives:         3,
			MaxRounds:     10,
			AnswerTimeout: 2 * time.Second,
		},
		Cues:       engine.Cues{Correct: "cues/correct.mp3", Wrong: "cues/wrong.mp3"},
		StopPrefix: "m!stop",
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return &fixture{engine: e, tr: tr, store: store}
}

func (f *fixture) start(t *testing.T, player string) {
	t.Helper()
	f.startIn(t, player, "fr")
}

func (f *fixture) startIn(t *testing.T, player, lang string) {
	t.Helper()
	out, err := f.engine.StartSession(t.Context(), engine.Start{
		PlayerID: player, ChannelID: gameChannel, Difficulty: "A1", Language: lang,
	})
	if err != nil || out != engine.OK {
		t.Fatalf("StartSession = %v, %v; want ok", out, err)
	}
}

// finish waits until the session is released, then closes the engine so the
// loop has fully exited before assertions run.
func (f *fixture) finish(t *testing.T) {
	t.Helper()
	waitFor(t, "session to end", func() bool {
		_, active := f.engine.Snapshot()
		return !active
	})
	if err := f.engine.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func lastMessage(t *testing.T, tr *mock.Transport) string {
	t.Helper()
	msgs := tr.Messages()
	if len(msgs) == 0 {
		t.Fatal("no message sent")
	}
	return msgs[len(msgs)-1].Text
}

func repeat(a mock.Answer, n int) []mock.Answer {
	out := make([]mock.Answer, n)
	for i := range out {
		out[i] = a
	}
	return out
}

func TestEngine_WinPath(t *testing.T) {
	t.Parallel()

	tr := &mock.Transport{Answers: repeat(correct, 10)}
	f := newFixture(t, 12, tr)
	f.start(t, "alice")
	f.finish(t)

	sum := lastMessage(t, tr)
	if !strings.Contains(sum, "all 10 rounds") || !strings.Contains(sum, "Right: 10 | Wrong: 0") {
		t.Errorf("summary = %q", sum)
	}

	p, err := f.store.Profile(t.Context(), "alice")
	if err != nil || p == nil {
		t.Fatalf("Profile = %v, %v", p, err)
	}
	if p.Money < 10 || p.Money > 30 {
		t.Errorf("money = %d, want within [10, 30]", p.Money)
	}
	if p.GamesPlayed != 1 {
		t.Errorf("games played = %d, want 1", p.GamesPlayed)
	}
	if !strings.Contains(sum, fmt.Sprintf("Reward: %d crumbs", p.Money)) {
		t.Errorf("summary %q does not report reward %d", sum, p.Money)
	}

	tally, _ := f.store.RoundTally(t.Context(), "alice")
	if tally == nil || tally.Wins != 10 || tally.Losses != 0 {
		t.Errorf("tally = %+v, want 10 wins", tally)
	}
	recs, _ := f.store.Cooldowns(t.Context(), "alice", game.French, game.A1)
	if len(recs) != 10 {
		t.Errorf("cooldown records = %d, want 10", len(recs))
	}

	played := tr.Played()
	if len(played) != 20 {
		t.Fatalf("played %d clips, want 10 rounds plus 10 cues", len(played))
	}
	seen := map[string]bool{}
	for i := 0; i < len(played); i += 2 {
		if seen[played[i]] {
			t.Errorf("clip %q played twice", played[i])
		}
		seen[played[i]] = true
		if played[i+1] != "cue-correct" {
			t.Errorf("cue after round %d = %q", i/2+1, played[i+1])
		}
	}
	for _, c := range tr.AwaitCalls() {
		if c.ChannelID != gameChannel || c.UserID != "alice" || c.Timeout != 2*time.Second {
			t.Errorf("AwaitAnswer call = %+v", c)
		}
	}
}

func TestEngine_LossPath(t *testing.T) {
	t.Parallel()

	tr := &mock.Transport{Answers: []mock.Answer{wrong, mock.Timeout, wrong}}
	f := newFixture(t, 12, tr)
	f.start(t, "bob")
	f.finish(t)

	if got := len(tr.AwaitCalls()); got != 3 {
		t.Errorf("rounds answered = %d, want 3", got)
	}
	sum := lastMessage(t, tr)
	if !strings.Contains(sum, "No lives left") || !strings.Contains(sum, "Right: 0 | Wrong: 3") {
		t.Errorf("summary = %q", sum)
	}

	var sawTimeout, sawHighlight bool
	for _, m := range tr.Messages() {
		sawTimeout = sawTimeout || strings.Contains(m.Text, "Time is up")
		sawHighlight = sawHighlight || strings.Contains(m.Text, "~~`au`~~")
	}
	if !sawTimeout {
		t.Error("timeout round was not reported")
	}
	if !sawHighlight {
		t.Error("wrong answer was not highlighted")
	}

	p, _ := f.store.Profile(t.Context(), "bob")
	if p == nil || p.GamesPlayed != 1 || p.Money != 0 {
		t.Errorf("profile = %+v, want 1 game and no crumbs", p)
	}
	tally, _ := f.store.RoundTally(t.Context(), "bob")
	if tally == nil || tally.Losses != 3 {
		t.Errorf("tally = %+v, want 3 losses", tally)
	}
}

func TestEngine_StartRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     engine.Start
		inVoice bool
		want    engine.Outcome
	}{
		{"bad difficulty", engine.Start{PlayerID: "a", Difficulty: "Z9"}, true, engine.InvalidDifficulty},
		{"bad language", engine.Start{PlayerID: "a", Difficulty: "A1", Language: "klingon"}, true, engine.InvalidLanguage},
		{"not in voice", engine.Start{PlayerID: "a", Difficulty: "A1"}, false, engine.NotInVoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := &mock.Transport{InVoice: func(string) bool { return tt.inVoice }}
			f := newFixture(t, 3, tr)

			got, err := f.engine.StartSession(t.Context(), tt.req)
			if err != nil {
				t.Fatalf("StartSession: %v", err)
			}
			if got != tt.want {
				t.Errorf("outcome = %v, want %v", got, tt.want)
			}
			if _, active := f.engine.Snapshot(); active {
				t.Error("rejected start must not bind a session")
			}
		})
	}
}

func TestEngine_AlreadyActiveLeavesSessionUntouched(t *testing.T) {
	t.Parallel()

	tr := &mock.Transport{}
	f := newFixture(t, 3, tr)
	f.start(t, "alice")
	waitFor(t, "first round", func() bool { return len(tr.AwaitCalls()) == 1 })
	before, _ := f.engine.Snapshot()

	for _, player := range []string{"alice", "bob"} {
		out, err := f.engine.StartSession(t.Context(), engine.Start{PlayerID: player, Difficulty: "B2"})
		if err != nil || out != engine.AlreadyActive {
			t.Errorf("StartSession(%s) = %v, %v; want already_active", player, out, err)
		}
	}

	after, _ := f.engine.Snapshot()
	if after.Token != before.Token || after.PlayerID != "alice" || after.Difficulty != game.A1 || after.Round != before.Round {
		t.Errorf("session changed: before %+v, after %+v", before, after)
	}
}

func TestEngine_StopSession(t *testing.T) {
	t.Parallel()

	tr := &mock.Transport{}
	f := newFixture(t, 3, tr)

	if out, _ := f.engine.StopSession(t.Context(), "alice", false); out != engine.StopNotPlaying {
		t.Errorf("stop while idle = %v, want not_playing", out)
	}

	f.start(t, "alice")
	waitFor(t, "answer wait", func() bool { return len(tr.AwaitCalls()) == 1 })

	if out, _ := f.engine.StopSession(t.Context(), "mallory", false); out != engine.StopNotAuthorized {
		t.Errorf("stop by stranger = %v, want not_authorized", out)
	}
	out, err := f.engine.StopSession(t.Context(), "alice", false)
	if err != nil || out != engine.StopOK {
		t.Fatalf("stop by player = %v, %v", out, err)
	}
	if _, active := f.engine.Snapshot(); active {
		t.Error("session must be reset before StopSession returns")
	}
	if tr.StopPlaybackCalls() == 0 {
		t.Error("playback was not halted")
	}

	f.start(t, "bob")
	waitFor(t, "second session", func() bool { return len(tr.AwaitCalls()) == 2 })
	if out, _ := f.engine.StopSession(t.Context(), "staffer", true); out != engine.StopOK {
		t.Errorf("stop by staff = %v, want ok", out)
	}
	if err := f.engine.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var ended int
	for _, m := range tr.Messages() {
		if strings.Contains(m.Text, "Session ended") {
			ended++
			if strings.Contains(m.Text, "Reward") {
				t.Errorf("stop summary must not pay: %q", m.Text)
			}
		}
	}
	if ended != 2 {
		t.Errorf("stop summaries = %d, want 2", ended)
	}
	for _, user := range []string{"alice", "bob"} {
		if p, _ := f.store.Profile(t.Context(), user); p != nil {
			t.Errorf("%s was credited after a stop: %+v", user, p)
		}
	}
}

func TestEngine_StopTypedAsAnswer(t *testing.T) {
	t.Parallel()

	tr := &mock.Transport{Answers: []mock.Answer{correct, {Text: "M!STOP please"}}}
	f := newFixture(t, 5, tr)
	f.start(t, "alice")
	f.finish(t)

	sum := lastMessage(t, tr)
	if !strings.Contains(sum, "Session ended") || !strings.Contains(sum, "Right: 1 | Wrong: 0") {
		t.Errorf("summary = %q", sum)
	}
	tally, _ := f.store.RoundTally(t.Context(), "alice")
	if tally == nil || tally.Wins != 1 || tally.Losses != 0 {
		t.Errorf("stop must not be graded: tally = %+v", tally)
	}
}

func TestEngine_AbandonmentPaysPartialReward(t *testing.T) {
	t.Parallel()

	// Voice checks: StartSession, round 1, round 2.
	var checks atomic.Int32
	tr := &mock.Transport{
		Answers: []mock.Answer{correct},
		InVoice: func(string) bool { return checks.Add(1) <= 2 },
	}
	f := newFixture(t, 5, tr)
	f.start(t, "alice")
	f.finish(t)

	sum := lastMessage(t, tr)
	if !strings.Contains(sum, "left the voice channel") || !strings.Contains(sum, "Right: 1 | Wrong: 0") {
		t.Errorf("summary = %q", sum)
	}
	p, _ := f.store.Profile(t.Context(), "alice")
	if p == nil || p.Money < 1 || p.Money > 3 || p.GamesPlayed != 1 {
		t.Errorf("profile = %+v, want one game with [1, 3] crumbs", p)
	}
}

func TestEngine_AbandonmentWithoutAnswersPaysNothing(t *testing.T) {
	t.Parallel()

	var checks atomic.Int32
	tr := &mock.Transport{InVoice: func(string) bool { return checks.Add(1) <= 1 }}
	f := newFixture(t, 5, tr)
	f.start(t, "alice")
	f.finish(t)

	if p, _ := f.store.Profile(t.Context(), "alice"); p != nil {
		t.Errorf("profile = %+v, want none", p)
	}
	if got := len(tr.Messages()); got != 1 {
		t.Errorf("messages = %d, want only the summary", got)
	}
}

func TestEngine_ExhaustionEndsWithPartialReward(t *testing.T) {
	t.Parallel()

	tr := &mock.Transport{Answers: repeat(correct, 2)}
	f := newFixture(t, 2, tr)
	f.start(t, "alice")
	f.finish(t)

	sum := lastMessage(t, tr)
	if !strings.Contains(sum, "No more clips") || !strings.Contains(sum, "Right: 2 | Wrong: 0") {
		t.Errorf("summary = %q", sum)
	}
	p, _ := f.store.Profile(t.Context(), "alice")
	if p == nil || p.Money < 2 || p.Money > 6 {
		t.Errorf("profile = %+v, want [2, 6] crumbs", p)
	}
}

func TestEngine_CooldownCarriesAcrossSessions(t *testing.T) {
	t.Parallel()

	tr := &mock.Transport{Answers: repeat(correct, 2)}
	f := newFixture(t, 2, tr)
	f.start(t, "alice")
	exhausted := func() int {
		n := 0
		for _, m := range tr.Messages() {
			if strings.Contains(m.Text, "No more clips") {
				n++
			}
		}
		return n
	}
	waitFor(t, "first summary", func() bool { return exhausted() == 1 })

	// Both assets are on cooldown now: the next session ends immediately.
	f.start(t, "alice")
	f.finish(t)

	if got := len(tr.AwaitCalls()); got != 2 {
		t.Errorf("rounds = %d, want 2", got)
	}
	if got := exhausted(); got != 2 {
		t.Errorf("exhaustion summaries = %d, want 2", got)
	}
	if sum := lastMessage(t, tr); !strings.Contains(sum, "No more clips") || !strings.Contains(sum, "Right: 0") {
		t.Errorf("summary = %q", sum)
	}
}

func TestEngine_CooldownIsPerLanguage(t *testing.T) {
	t.Parallel()

	tr := &mock.Transport{Answers: repeat(correct, 4)}
	f := newFixture(t, 2, tr, game.French, game.English)
	summaries := func() int {
		n := 0
		for _, m := range tr.Messages() {
			if strings.Contains(m.Text, "No more clips") {
				n++
			}
		}
		return n
	}

	f.startIn(t, "alice", "fr")
	waitFor(t, "French summary", func() bool { return summaries() == 1 })

	// The English folders share names with the French ones but were never heard.
	f.startIn(t, "alice", "en")
	f.finish(t)

	played := tr.Played()
	english := 0
	for _, clip := range played {
		if strings.HasPrefix(clip, "clip-en/") {
			english++
		}
	}
	if english != 2 {
		t.Errorf("English rounds = %d, want 2; played %v", english, played)
	}
	if sum := lastMessage(t, tr); !strings.Contains(sum, "Right: 2") {
		t.Errorf("English summary = %q", sum)
	}

	fr, _ := f.store.Cooldowns(t.Context(), "alice", game.French, game.A1)
	en, _ := f.store.Cooldowns(t.Context(), "alice", game.English, game.A1)
	if len(fr) != 2 || len(en) != 2 {
		t.Errorf("cooldown records fr=%d en=%d, want 2 each", len(fr), len(en))
	}
}

func TestEngine_TransportErrorResetsSession(t *testing.T) {
	t.Parallel()

	tr := &mock.Transport{PlayErr: fmt.Errorf("voice gone")}
	f := newFixture(t, 3, tr)
	f.start(t, "alice")
	f.finish(t)

	if sum := lastMessage(t, tr); !strings.Contains(sum, "Something went wrong") {
		t.Errorf("summary = %q", sum)
	}
	if len(tr.AwaitCalls()) != 0 {
		t.Error("round continued after a playback error")
	}
}

func TestEngine_SetTiming(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, &mock.Transport{})
	f.engine.SetTiming(engine.Timing{MaxRounds: 4})
	got := f.engine.Timing()
	want := engine.Timing{
		Lives:         engine.DefaultTiming.Lives,
		MaxRounds:     4,
		AnswerTimeout: engine.DefaultTiming.AnswerTimeout,
	}
	if got != want {
		t.Errorf("Timing = %+v, want %+v", got, want)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()
	if _, err := engine.New(engine.Config{}); err == nil {
		t.Error("expected an error for an empty config")
	}
}

// TestEngine_TracesSessionAndRounds swaps the global tracer provider and the
// default logger, so it must not run in parallel.
func TestEngine_TracesSessionAndRounds(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prevTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	var logs bytes.Buffer
	prevLog := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() {
		slog.SetDefault(prevLog)
		otel.SetTracerProvider(prevTP)
		_ = tp.Shutdown(context.Background())
	})

	tr := &mock.Transport{Answers: []mock.Answer{correct, wrong}}
	f := newFixture(t, 2, tr)
	f.start(t, "alice")
	f.finish(t)

	var sessionSpan tracetest.SpanStub
	var rounds []tracetest.SpanStub
	for _, s := range exp.GetSpans() {
		switch s.Name {
		case "engine.session":
			sessionSpan = s
		case "engine.round":
			rounds = append(rounds, s)
		}
	}
	if !sessionSpan.SpanContext.IsValid() {
		t.Fatal("no engine.session span recorded")
	}
	// Two graded rounds, then a third that finds the pool exhausted.
	if len(rounds) != 3 {
		t.Fatalf("round spans = %d, want 3", len(rounds))
	}

	attrs := func(s tracetest.SpanStub) map[string]string {
		m := map[string]string{}
		for _, kv := range s.Attributes {
			m[string(kv.Key)] = kv.Value.Emit()
		}
		return m
	}
	sess := attrs(sessionSpan)
	token := sess["dictee.session.token"]
	if token == "" || sess["dictee.player.id"] != "alice" || sess["dictee.session.end_reason"] != "exhausted" {
		t.Errorf("session span attributes = %v", sess)
	}
	results := []string{"correct", "wrong"}
	for i, r := range rounds[:2] {
		if r.Parent.SpanID() != sessionSpan.SpanContext.SpanID() {
			t.Errorf("round %d is not a child of the session span", i+1)
		}
		a := attrs(r)
		if a["dictee.round.number"] != fmt.Sprint(i+1) || a["dictee.round.result"] != results[i] {
			t.Errorf("round %d attributes = %v", i+1, a)
		}
		if !strings.HasPrefix(a["dictee.round.asset"], "fr/A1/") {
			t.Errorf("round %d asset = %q", i+1, a["dictee.round.asset"])
		}
	}

	traceID := sessionSpan.SpanContext.TraceID().String()
	graded := 0
	for line := range strings.Lines(logs.String()) {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if rec["msg"] != "round graded" && rec["msg"] != "session ended" {
			continue
		}
		graded++
		if rec["session_token"] != token || rec["trace_id"] != traceID {
			t.Errorf("%q logged session_token=%v trace_id=%v, want %s and %s",
				rec["msg"], rec["session_token"], rec["trace_id"], token, traceID)
		}
	}
	if graded != 3 {
		t.Errorf("found %d round/session log lines, want 3", graded)
	}
}
