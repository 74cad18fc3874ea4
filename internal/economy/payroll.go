// Package economy pays crumbs to guild members on a schedule.
//
// The [Payroll] loop wakes up once a minute, compares the persisted time of
// the last payout with the configured interval and, when a payout is due,
// credits every member holding a rewarded role with the amount of the
// highest-paying role they hold.
package economy

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/dictee/internal/game"
)

// EventLabel is the scheduled-event label under which the last payout is
// stored.
const EventLabel = "monthly_crumbs"

// DefaultInterval is the time between two payouts.
const DefaultInterval = 31 * 24 * time.Hour

// Member is a guild member as seen by the payroll.
type Member struct {
	UserID  string
	RoleIDs []string
	Bot     bool
}

// MemberLister lists every member of the guild.
type MemberLister interface {
	Members(ctx context.Context) ([]Member, error)
}

// Crediter adds crumbs to many profiles at once, creating missing ones, and
// records the payout under label in the same atomic write.
type Crediter interface {
	CreditPayout(ctx context.Context, label string, at time.Time, amounts map[string]int) error
}

// Announcer publishes the payout notice.
type Announcer interface {
	Announce(ctx context.Context, text string) error
}

// Option configures a [Payroll].
type Option func(*Payroll)

// WithInterval sets the time between two payouts. Non-positive values keep
// [DefaultInterval].
func WithInterval(d time.Duration) Option {
	return func(p *Payroll) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithCheckEvery sets how often the loop looks for a due payout.
// The default is one minute.
func WithCheckEvery(d time.Duration) Option {
	return func(p *Payroll) {
		if d > 0 {
			p.checkEvery = d
		}
	}
}

// WithAnnouncer sends a notice after every payout.
func WithAnnouncer(a Announcer) Option {
	return func(p *Payroll) {
		p.announcer = a
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Payroll) {
		p.now = now
	}
}

// Payroll credits members by role. It is safe for concurrent use.
type Payroll struct {
	members   MemberLister
	crediter  Crediter
	events    game.EventStore
	announcer Announcer

	interval   time.Duration
	checkEvery time.Duration
	now        func() time.Time

	mu    sync.Mutex
	roles map[string]int
}

// New returns a [Payroll] paying roles[roleID] crumbs per member.
func New(members MemberLister, crediter Crediter, events game.EventStore, roles map[string]int, opts ...Option) *Payroll {
	p := &Payroll{
		members:    members,
		crediter:   crediter,
		events:     events,
		interval:   DefaultInterval,
		checkEvery: time.Minute,
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	p.SetRoles(roles)
	return p
}

// SetRoles replaces the role reward table. Entries with a non-positive
// amount are ignored.
func (p *Payroll) SetRoles(roles map[string]int) {
	m := make(map[string]int, len(roles))
	for id, amount := range roles {
		if amount > 0 {
			m[id] = amount
		}
	}
	p.mu.Lock()
	p.roles = m
	p.mu.Unlock()
}

// Roles returns a copy of the role reward table.
func (p *Payroll) Roles() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.roles)
}

// Run checks for a due payout immediately and then on every tick until ctx
// is cancelled. Failed payouts are logged and retried on the next tick.
func (p *Payroll) Run(ctx context.Context) {
	ticker := time.NewTicker(p.checkEvery)
	defer ticker.Stop()

	for {
		if _, err := p.PayIfDue(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("payroll: payout failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PayIfDue pays when the interval has elapsed since the last recorded
// payout, or when no payout was ever recorded. It reports whether it paid.
func (p *Payroll) PayIfDue(ctx context.Context) (bool, error) {
	last, ok, err := p.events.LastRun(ctx, EventLabel)
	if err != nil {
		return false, fmt.Errorf("payroll: load last run: %w", err)
	}
	now := p.now()
	if ok && now.Sub(last) < p.interval {
		return false, nil
	}
	if err := p.Pay(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Pay credits every rewarded member and records the payout time.
func (p *Payroll) Pay(ctx context.Context) error {
	roles := p.Roles()
	if len(roles) == 0 {
		return errors.New("payroll: no role rewards configured")
	}

	members, err := p.members.Members(ctx)
	if err != nil {
		return fmt.Errorf("payroll: list members: %w", err)
	}

	amounts := Amounts(members, roles)
	if err := p.crediter.CreditPayout(ctx, EventLabel, p.now(), amounts); err != nil {
		return fmt.Errorf("payroll: credit %d members: %w", len(amounts), err)
	}
	slog.Info("payroll: paid members", "members", len(amounts), "roles", len(roles))

	if p.announcer != nil {
		if err := p.announcer.Announce(ctx, Notice(roles)); err != nil {
			slog.Warn("payroll: announcement failed", "err", err)
		}
	}
	return nil
}

// Amounts maps every non-bot member holding at least one rewarded role to
// the highest amount among their roles.
func Amounts(members []Member, roles map[string]int) map[string]int {
	out := make(map[string]int)
	for _, m := range members {
		if m.Bot {
			continue
		}
		best := 0
		for _, id := range m.RoleIDs {
			best = max(best, roles[id])
		}
		if best > 0 {
			out[m.UserID] = best
		}
	}
	return out
}

// Notice renders the payout announcement, highest amount first.
func Notice(roles map[string]int) string {
	ids := make([]string, 0, len(roles))
	for id := range roles {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(roles[b], roles[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	var b strings.Builder
	b.WriteString("💰 **Monthly Crumbs**")
	for _, id := range ids {
		fmt.Fprintf(&b, "\n**<@&%s>:** `%d` crumbs", id, roles[id])
	}
	return b.String()
}
