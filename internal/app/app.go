// Package app wires the dictee subsystems into a running application.
//
// The App struct owns the full lifecycle: New opens the stores and builds the
// round engine, the commands and the payroll, Run serves them until the
// context ends, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithTransport, WithContent, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/dictee/internal/config"
	"github.com/MrWong99/dictee/internal/discord"
	"github.com/MrWong99/dictee/internal/discord/commands"
	"github.com/MrWong99/dictee/internal/economy"
	"github.com/MrWong99/dictee/internal/game"
	"github.com/MrWong99/dictee/internal/game/content"
	"github.com/MrWong99/dictee/internal/game/engine"
	"github.com/MrWong99/dictee/internal/game/reward"
	"github.com/MrWong99/dictee/internal/game/scoring"
	"github.com/MrWong99/dictee/internal/game/session"
	"github.com/MrWong99/dictee/internal/health"
	"github.com/MrWong99/dictee/internal/observe"
	"github.com/MrWong99/dictee/internal/resilience"
	"github.com/MrWong99/dictee/internal/store/memstore"
	"github.com/MrWong99/dictee/internal/store/postgres"
	"github.com/MrWong99/dictee/internal/store/redisstore"
)

// Store is the persistence the application needs. Both the Postgres store
// and the in-memory store implement it.
type Store interface {
	game.ProfileStore
	game.TallyStore
	game.CooldownStore
	game.DiceStore
	game.EventStore
	game.ItemStore
	economy.Crediter
}

var (
	_ Store = (*postgres.Store)(nil)
	_ Store = (*memstore.Store)(nil)
)

// serverShutdownTimeout bounds the graceful stop of the HTTP listener.
const serverShutdownTimeout = 5 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	mu  sync.Mutex
	cfg *config.Config

	// Subsystems, initialised in New and torn down in Shutdown.
	store     Store
	cooldowns game.CooldownStore
	content   fs.FS
	metrics   *observe.Metrics
	bot       *discord.Bot
	transport engine.Transport
	router    *discord.CommandRouter
	perms     *discord.PermissionChecker
	members   economy.MemberLister
	announcer economy.Announcer

	languages []game.Language
	scorer    *scoring.Scorer
	selector  *content.Selector
	rewards   *reward.Calculator
	engine    *engine.Engine
	payroll   *economy.Payroll
	checkers  []health.Checker
	server    *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of connecting to Postgres.
func WithStore(s Store) Option {
	return func(a *App) { a.store = s }
}

// WithCooldownStore injects the cooldown store instead of using the
// configured backend.
func WithCooldownStore(s game.CooldownStore) Option {
	return func(a *App) { a.cooldowns = s }
}

// WithContent injects the asset tree instead of opening content.root.
func WithContent(fsys fs.FS) Option {
	return func(a *App) { a.content = fsys }
}

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithBot serves the game through a connected Discord bot. The App takes
// ownership of the bot and closes it in Shutdown.
func WithBot(b *discord.Bot) Option {
	return func(a *App) {
		a.bot = b
		a.transport = b.Transport()
		a.router = b.Router()
		a.perms = b.Permissions()
		a.members = discord.NewMemberLister(b.Session(), b.GuildID())
	}
}

// WithTransport injects the engine transport, for running without Discord.
func WithTransport(t engine.Transport) Option {
	return func(a *App) { a.transport = t }
}

// WithMemberLister injects the guild member source used by the payroll.
func WithMemberLister(l economy.MemberLister) Option {
	return func(a *App) { a.members = l }
}

// WithAnnouncer injects where payroll notices are posted.
func WithAnnouncer(an economy.Announcer) Option {
	return func(a *App) { a.announcer = an }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. New performs all
// initialisation synchronously: store connection and migration, round engine
// construction, command registration and payroll setup.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.transport == nil {
		return nil, errors.New("app: a transport is required; configure discord.token")
	}

	// ── 1. Stores ────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initCooldowns(ctx); err != nil {
		return nil, fmt.Errorf("app: init cooldowns: %w", err)
	}

	// ── 2. Round engine ──────────────────────────────────────────────────
	if err := a.initEngine(); err != nil {
		return nil, fmt.Errorf("app: init engine: %w", err)
	}

	// ── 3. Commands ──────────────────────────────────────────────────────
	a.initCommands()

	// ── 4. Payroll ───────────────────────────────────────────────────────
	if err := a.initPayroll(); err != nil {
		return nil, fmt.Errorf("app: init payroll: %w", err)
	}

	// ── 5. Observability endpoints ───────────────────────────────────────
	a.initServer()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore connects to Postgres, or falls back to memory when no DSN is set.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		slog.Warn("no postgres_dsn configured, wallets are kept in memory only")
		a.store = memstore.New()
		return nil
	}

	breaker := resilience.New(resilience.Config{Name: "postgres"})
	pg, err := postgres.Connect(ctx, dsn,
		postgres.WithBreaker(breaker),
		postgres.WithMetrics(a.metrics),
	)
	if err != nil {
		return err
	}
	a.store = pg
	a.checkers = append(a.checkers, health.Ping("postgres", pg))
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	slog.Info("postgres store connected")
	return nil
}

// initCooldowns selects the cooldown backend.
func (a *App) initCooldowns(ctx context.Context) error {
	if a.cooldowns != nil {
		return nil
	}
	if a.cfg.Storage.CooldownBackend != config.CooldownRedis {
		a.cooldowns = a.store
		return nil
	}

	s := a.cfg.Storage
	client, err := redisstore.Dial(ctx, s.RedisAddr, s.RedisPassword, s.RedisDB)
	if err != nil {
		return err
	}
	rs := redisstore.NewCooldownStore(client, 0)
	a.cooldowns = rs
	a.checkers = append(a.checkers, health.Ping("redis", rs))
	a.closers = append(a.closers, rs.Close)
	slog.Info("redis cooldown store connected", "addr", s.RedisAddr)
	return nil
}

// initEngine builds the scorer, picker, reward calculator and round engine.
func (a *App) initEngine() error {
	g := a.cfg.Game

	if a.content == nil {
		root := a.cfg.Content.Root
		if root == "" {
			root = "."
		}
		a.content = os.DirFS(root)
	}
	catalog := content.NewFSCatalog(a.content)

	for _, code := range a.cfg.Content.Languages {
		l, err := game.ParseLanguage(code)
		if err != nil {
			return err
		}
		a.languages = append(a.languages, l)
	}

	a.scorer = scoring.New(scoring.WithThreshold(g.AccuracyThreshold))
	a.selector = content.NewSelector(catalog, content.WithCooldown(g.Cooldown))
	a.rewards = reward.New(a.store, a.store,
		reward.WithRanges(rewardRanges(g.Rewards)),
		reward.WithBonusChance(g.BonusRollChance),
	)

	eng, err := engine.New(engine.Config{
		Sessions:   session.NewManager(),
		Picker:     a.selector,
		Library:    catalog,
		Scorer:     a.scorer,
		Rewards:    a.rewards,
		Transport:  a.transport,
		Tally:      a.store,
		Cooldowns:  a.cooldowns,
		Metrics:    a.metrics,
		Timing:     timing(g),
		Cues:       engine.Cues{Correct: g.Cues.Correct, Wrong: g.Cues.Wrong},
		StopPrefix: a.cfg.Discord.CommandPrefix + "stop",
		Languages:  a.languages,
	})
	if err != nil {
		return err
	}
	a.engine = eng
	slog.Info("round engine ready",
		"languages", a.languages,
		"threshold", g.AccuracyThreshold,
		"lives", g.Lives,
		"max_rounds", g.MaxRounds,
	)
	return nil
}

// initCommands registers the slash and text commands on the router.
func (a *App) initCommands() {
	if a.router == nil {
		a.router = discord.NewCommandRouter(a.cfg.Discord.CommandPrefix)
	}
	if a.perms == nil {
		a.perms = discord.NewPermissionChecker(a.cfg.Discord.StaffRoleIDs...)
	}
	commands.NewGameCommands(a.router, a.engine, a.perms,
		a.cfg.Discord.GameChannelID, a.cfg.Discord.VoiceChannelID, a.languages)
	commands.NewProfileCommands(a.router, a.store)
	commands.NewItemCommands(a.router, a.store, a.perms)

	if a.bot != nil {
		a.checkers = append(a.checkers, health.Checker{Name: "discord", Check: a.bot.Ready})
	}
}

// initPayroll creates the monthly payout when it is enabled.
func (a *App) initPayroll() error {
	p := a.cfg.Payroll
	if !p.Enabled {
		return nil
	}
	if a.members == nil {
		return errors.New("payroll needs the Discord bot to list guild members")
	}

	opts := []economy.Option{economy.WithInterval(p.Interval)}
	if a.announcer == nil && a.bot != nil && a.cfg.Discord.GameChannelID != "" {
		a.announcer = discord.NewChannelAnnouncer(a.bot.Session(), a.cfg.Discord.GameChannelID)
	}
	if a.announcer != nil {
		opts = append(opts, economy.WithAnnouncer(a.announcer))
	}
	a.payroll = economy.New(a.members, a.store, a.store, p.RoleRewards, opts...)
	slog.Info("payroll enabled", "interval", p.Interval, "roles", len(p.RoleRewards))
	return nil
}

// initServer prepares the /metrics, /healthz and /readyz listener.
func (a *App) initServer() {
	if a.cfg.Server.ListenAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(a.checkers).Register(mux)

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves commands, the payroll loop and the HTTP listener, and blocks
// until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.bot != nil {
		g.Go(func() error { return a.bot.Run(ctx) })
	}
	if a.payroll != nil {
		g.Go(func() error {
			a.payroll.Run(ctx)
			return nil
		})
	}
	if a.server != nil {
		g.Go(func() error {
			slog.Info("http listener started", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
			defer cancel()
			return a.server.Shutdown(sctx)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	slog.Info("app running", "commands", len(a.router.ApplicationCommands()))
	return g.Wait()
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable parts of cfg. Sessions already running
// keep their lives and round budget; the next session picks up the new
// values.
func (a *App) Reload(cfg *config.Config, d config.ConfigDiff) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()

	if d.GameChanged {
		g := cfg.Game
		a.scorer.SetThreshold(g.AccuracyThreshold)
		a.selector.SetCooldown(g.Cooldown)
		a.rewards.SetRanges(rewardRanges(g.Rewards))
		a.rewards.SetBonusChance(g.BonusRollChance)
		a.engine.SetTiming(timing(g))
		slog.Info("game settings reloaded", "threshold", g.AccuracyThreshold, "cooldown", g.Cooldown)
	}
	if d.PayrollRolesChanged && a.payroll != nil {
		a.payroll.SetRoles(cfg.Payroll.RoleRewards)
		slog.Info("payroll roles reloaded", "roles", len(cfg.Payroll.RoleRewards))
	}
}

// Config returns the config currently applied.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Engine returns the round engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Router returns the command router.
func (a *App) Router() *discord.CommandRouter {
	return a.router
}

// Payroll returns the payroll, or nil when it is disabled.
func (a *App) Payroll() *economy.Payroll {
	return a.payroll
}

// Checkers returns the readiness checks backing /readyz.
func (a *App) Checkers() []health.Checker {
	return a.checkers
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems. The running session is ended first so
// its summary still reaches the channel, then the bot disconnects and the
// stores are closed. If ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.engine.Close(); err != nil {
			slog.Warn("engine close error", "err", err)
		}
		if a.bot != nil {
			if err := a.bot.Close(); err != nil {
				slog.Warn("discord bot close error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// rewardRanges converts the config payout table. Unknown difficulty names
// are rejected by config validation.
func rewardRanges(in map[string]config.RewardRange) map[game.Difficulty]reward.Range {
	out := make(map[game.Difficulty]reward.Range, len(in))
	for name, rr := range in {
		d, err := game.ParseDifficulty(name)
		if err != nil {
			continue
		}
		out[d] = reward.Range{Low: rr.Low, High: rr.High}
	}
	return out
}

func timing(g config.GameConfig) engine.Timing {
	return engine.Timing{
		Lives:         g.Lives,
		MaxRounds:     g.MaxRounds,
		AnswerTimeout: g.AnswerTimeout,
		RoundDelay:    g.RoundDelay,
	}
}
