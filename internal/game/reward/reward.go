// Package reward converts the correct answers of a session into crumbs and
// credits them to the player's profile.
package reward

import (
	"context"
	"fmt"
	"maps"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/MrWong99/dictee/internal/game"
)

// DefaultBonusChance is the probability of a bonus roll token per session.
const DefaultBonusChance = 0.05

// Range is an inclusive range of crumbs paid per correct answer.
type Range struct {
	Low  int
	High int
}

// DefaultRanges is the per-answer payout of each difficulty.
var DefaultRanges = map[game.Difficulty]Range{
	game.A1:   {Low: 1, High: 3},
	game.A2:   {Low: 3, High: 5},
	game.B1:   {Low: 5, High: 8},
	game.B2:   {Low: 8, High: 10},
	game.C1C2: {Low: 10, High: 12},
}

// Grant is what a finished session paid out.
type Grant struct {
	Amount    int
	BonusRoll bool
}

// Option is a functional option for configuring a [Calculator].
type Option func(*Calculator)

// WithRanges replaces the payout table.
func WithRanges(r map[game.Difficulty]Range) Option {
	return func(c *Calculator) {
		c.ranges = maps.Clone(r)
	}
}

// WithBonusChance sets the bonus roll probability. Default: 0.05.
func WithBonusChance(p float64) Option {
	return func(c *Calculator) {
		c.bonusChance = p
	}
}

// WithRand replaces the random source, for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(c *Calculator) {
		c.rng = r
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(fn func() time.Time) Option {
	return func(c *Calculator) {
		c.now = fn
	}
}

// Calculator draws rewards and persists them. It is safe for concurrent use.
type Calculator struct {
	profiles game.ProfileStore
	dice     game.DiceStore
	now      func() time.Time

	mu          sync.Mutex
	rng         *rand.Rand
	ranges      map[game.Difficulty]Range
	bonusChance float64
}

// New returns a [Calculator] persisting through profiles and dice.
func New(profiles game.ProfileStore, dice game.DiceStore, opts ...Option) *Calculator {
	c := &Calculator{
		profiles:    profiles,
		dice:        dice,
		now:         time.Now,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		ranges:      maps.Clone(DefaultRanges),
		bonusChance: DefaultBonusChance,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetRanges replaces the payout table for later rewards.
func (c *Calculator) SetRanges(r map[game.Difficulty]Range) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ranges = maps.Clone(r)
}

// SetBonusChance replaces the bonus roll probability for later sessions.
func (c *Calculator) SetBonusChance(p float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bonusChance = p
}

// Reward sums right independent uniform draws from the range of d.
// Unknown difficulties and non-positive counts pay nothing.
func (c *Calculator) Reward(right int, d game.Difficulty) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.ranges[d]
	if !ok || right <= 0 {
		return 0
	}
	total := 0
	for range right {
		total += r.Low + c.rng.IntN(r.High-r.Low+1)
	}
	return total
}

// BonusRoll reports whether this session wins a roll token.
func (c *Calculator) BonusRoll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64() < c.bonusChance
}

// Grant computes the reward for right answers at difficulty d, credits it to
// userID's profile (creating the profile on first play) and counts one game
// played. A bonus roll token is persisted when drawn.
func (c *Calculator) Grant(ctx context.Context, userID string, right int, d game.Difficulty) (Grant, error) {
	g := Grant{Amount: c.Reward(right, d), BonusRoll: c.BonusRoll()}
	now := c.now()

	p, err := c.profiles.Profile(ctx, userID)
	if err != nil {
		return Grant{}, fmt.Errorf("reward: load profile: %w", err)
	}
	if p == nil {
		err = c.profiles.CreateProfile(ctx, game.Profile{
			UserID:         userID,
			Money:          g.Amount,
			GamesPlayed:    1,
			LastTimePlayed: now,
		})
	} else {
		err = c.profiles.CreditProfile(ctx, userID, g.Amount, 1, now)
	}
	if err != nil {
		return Grant{}, fmt.Errorf("reward: credit profile: %w", err)
	}

	if g.BonusRoll {
		if err := c.dice.AddRollDice(ctx, userID, 1); err != nil {
			return g, fmt.Errorf("reward: add roll dice: %w", err)
		}
	}
	return g, nil
}
