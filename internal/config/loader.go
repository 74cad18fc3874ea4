package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MrWong99/dictee/internal/game"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the YAML file.
const (
	EnvDiscordToken = "DICTEE_DISCORD_TOKEN"
	EnvPostgresDSN  = "DICTEE_POSTGRES_DSN"
	EnvRedisAddr    = "DICTEE_REDIS_ADDR"
)

// Defaults applied by [ApplyDefaults] to zero-valued fields.
const (
	DefaultAccuracyThreshold = 90
	DefaultLives             = 3
	DefaultMaxRounds         = 10
	DefaultAnswerTimeout     = 30 * time.Second
	DefaultRoundDelay        = 10 * time.Second
	DefaultCooldown          = 24 * time.Hour
	DefaultBonusRollChance   = 0.05
	DefaultCommandPrefix     = "m!"
	DefaultPayrollInterval   = 31 * 24 * time.Hour
)

// DefaultRewards is the per-answer crumb range for each difficulty.
var DefaultRewards = map[string]RewardRange{
	string(game.A1):   {Low: 1, High: 3},
	string(game.A2):   {Low: 3, High: 5},
	string(game.B1):   {Low: 5, High: 8},
	string(game.B2):   {Low: 8, High: 10},
	string(game.C1C2): {Low: 10, High: 12},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// A .env file in the working directory, when present, is loaded into the
// process environment first so that secrets can live outside the YAML file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: could not read .env file", "err", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides
// and defaults, and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg, os.LookupEnv)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets in cfg with the values returned by lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDiscordToken); ok && v != "" {
		cfg.Discord.Token = v
	}
	if v, ok := lookup(EnvPostgresDSN); ok && v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		cfg.Storage.RedisAddr = v
	}
}

// ApplyDefaults fills zero-valued tuning fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Discord.CommandPrefix == "" {
		cfg.Discord.CommandPrefix = DefaultCommandPrefix
	}

	g := &cfg.Game
	if g.AccuracyThreshold == 0 {
		g.AccuracyThreshold = DefaultAccuracyThreshold
	}
	if g.Lives == 0 {
		g.Lives = DefaultLives
	}
	if g.MaxRounds == 0 {
		g.MaxRounds = DefaultMaxRounds
	}
	if g.AnswerTimeout == 0 {
		g.AnswerTimeout = DefaultAnswerTimeout
	}
	if g.RoundDelay == 0 {
		g.RoundDelay = DefaultRoundDelay
	}
	if g.Cooldown == 0 {
		g.Cooldown = DefaultCooldown
	}
	if g.BonusRollChance == 0 {
		g.BonusRollChance = DefaultBonusRollChance
	}
	if g.Rewards == nil {
		g.Rewards = make(map[string]RewardRange, len(DefaultRewards))
	}
	for name, rr := range DefaultRewards {
		if _, ok := g.Rewards[name]; !ok {
			g.Rewards[name] = rr
		}
	}

	if len(cfg.Content.Languages) == 0 {
		cfg.Content.Languages = []string{string(game.French), string(game.English)}
	}
	if cfg.Storage.CooldownBackend == "" {
		cfg.Storage.CooldownBackend = CooldownPostgres
	}
	if cfg.Payroll.Interval == 0 {
		cfg.Payroll.Interval = DefaultPayrollInterval
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if r := cfg.Server.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("server.trace_sample_ratio %v is out of range [0, 1]", r))
	}

	// Discord
	if cfg.Discord.Token == "" {
		slog.Warn("discord.token is empty; set it in the config or via " + EnvDiscordToken)
	}
	if cfg.Discord.Token != "" {
		if cfg.Discord.GameChannelID == "" {
			errs = append(errs, errors.New("discord.game_channel_id is required"))
		}
		if cfg.Discord.VoiceChannelID == "" {
			errs = append(errs, errors.New("discord.voice_channel_id is required"))
		}
	}

	// Game
	g := cfg.Game
	if g.AccuracyThreshold < 0 || g.AccuracyThreshold > 100 {
		errs = append(errs, fmt.Errorf("game.accuracy_threshold %d is out of range [0, 100]", g.AccuracyThreshold))
	}
	if g.Lives < 0 {
		errs = append(errs, fmt.Errorf("game.lives %d must be positive", g.Lives))
	}
	if g.MaxRounds < 0 {
		errs = append(errs, fmt.Errorf("game.max_rounds %d must be positive", g.MaxRounds))
	}
	if g.AnswerTimeout < 0 || g.RoundDelay < 0 || g.Cooldown < 0 {
		errs = append(errs, errors.New("game durations must not be negative"))
	}
	if g.BonusRollChance < 0 || g.BonusRollChance > 1 {
		errs = append(errs, fmt.Errorf("game.bonus_roll_chance %.2f is out of range [0, 1]", g.BonusRollChance))
	}
	for name, rr := range g.Rewards {
		if _, err := game.ParseDifficulty(name); err != nil {
			errs = append(errs, fmt.Errorf("game.rewards: %w", err))
			continue
		}
		if rr.Low < 0 || rr.High < rr.Low {
			errs = append(errs, fmt.Errorf("game.rewards[%s] range [%d, %d] is invalid", name, rr.Low, rr.High))
		}
	}

	// Content
	for i, lang := range cfg.Content.Languages {
		if _, err := game.ParseLanguage(lang); err != nil {
			errs = append(errs, fmt.Errorf("content.languages[%d]: %w", i, err))
		}
	}
	if cfg.Content.Root == "" {
		slog.Warn("content.root is empty; the working directory will be used as asset root")
	}

	// Storage
	if cfg.Storage.CooldownBackend != "" && !cfg.Storage.CooldownBackend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.cooldown_backend %q is invalid; valid values: postgres, redis", cfg.Storage.CooldownBackend))
	}
	if cfg.Storage.CooldownBackend == CooldownRedis && cfg.Storage.RedisAddr == "" {
		errs = append(errs, errors.New("storage.redis_addr is required when cooldown_backend is redis"))
	}
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; profiles and cooldowns will not persist")
	}

	// Payroll
	if cfg.Payroll.Enabled {
		if cfg.Payroll.Interval <= 0 {
			errs = append(errs, errors.New("payroll.interval must be positive"))
		}
		if len(cfg.Payroll.RoleRewards) == 0 {
			errs = append(errs, errors.New("payroll.role_rewards must not be empty when payroll is enabled"))
		}
		for role, amount := range cfg.Payroll.RoleRewards {
			if amount < 0 {
				errs = append(errs, fmt.Errorf("payroll.role_rewards[%s] %d must not be negative", role, amount))
			}
		}
	}

	return errors.Join(errs...)
}
