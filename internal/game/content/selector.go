package content

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/dictee/internal/game"
)

// ErrExhausted is returned by [Selector.Pick] when every asset of the
// requested language and difficulty was already played this session, is on
// cooldown for the player, or failed its probe.
var ErrExhausted = errors.New("content: no eligible asset left")

// DefaultCooldown is how long a played asset stays ineligible for a user.
const DefaultCooldown = 24 * time.Hour

// Request describes one pick.
type Request struct {
	Language   game.Language
	Difficulty game.Difficulty

	// Excluded holds the asset IDs already played in the current session.
	Excluded map[string]struct{}

	// LastPlayed maps an asset ID to the last time the player heard it.
	LastPlayed map[string]time.Time

	Now time.Time
}

// Pick is the result of a successful [Selector.Pick].
type Pick struct {
	Asset game.Asset

	// Repeat is true when the player has a cooldown record for the asset
	// already, which means the record must be updated rather than inserted.
	Repeat bool
}

// Option is a functional option for configuring a [Selector].
type Option func(*Selector)

// WithCooldown sets how long a played asset stays ineligible. Default: 24h.
func WithCooldown(d time.Duration) Option {
	return func(s *Selector) {
		s.cooldown.Store(int64(d))
	}
}

// WithRand replaces the random source, for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) {
		s.rng = r
	}
}

// Selector picks a random eligible asset without repeats. It is safe for
// concurrent use.
type Selector struct {
	catalog  Catalog
	cooldown atomic.Int64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector returns a [Selector] drawing from catalog.
func NewSelector(catalog Catalog, opts ...Option) *Selector {
	s := &Selector{
		catalog: catalog,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	s.cooldown.Store(int64(DefaultCooldown))
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetCooldown changes the cooldown for subsequent picks.
func (s *Selector) SetCooldown(d time.Duration) {
	s.cooldown.Store(int64(d))
}

// Pick draws assets uniformly at random without replacement until one is
// neither excluded, on cooldown, nor failing its probe. It makes at most one
// attempt per listed asset and returns [ErrExhausted] when none qualifies.
func (s *Selector) Pick(ctx context.Context, req Request) (Pick, error) {
	assets, err := s.catalog.Assets(req.Language, req.Difficulty)
	if err != nil {
		return Pick{}, errors.Join(ErrExhausted, err)
	}
	cooldown := time.Duration(s.cooldown.Load())

	for attempts := len(assets); attempts > 0 && len(assets) > 0; attempts-- {
		if err := ctx.Err(); err != nil {
			return Pick{}, err
		}

		i := s.intN(len(assets))
		a := assets[i]
		assets[i] = assets[len(assets)-1]
		assets = assets[:len(assets)-1]

		if _, played := req.Excluded[a.ID]; played {
			continue
		}
		last, seen := req.LastPlayed[a.ID]
		if seen && req.Now.Sub(last) <= cooldown {
			continue
		}
		if err := s.catalog.Probe(a); err != nil {
			slog.Debug("content: skipping unplayable asset", "asset", a.Dir, "err", err)
			continue
		}
		return Pick{Asset: a, Repeat: seen}, nil
	}
	return Pick{}, ErrExhausted
}

func (s *Selector) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}
