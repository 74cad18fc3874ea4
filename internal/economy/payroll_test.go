package economy_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/dictee/internal/economy"
	"github.com/MrWong99/dictee/internal/store/memstore"
)

type staticMembers struct {
	members []economy.Member
	err     error
}

func (s staticMembers) Members(context.Context) ([]economy.Member, error) {
	return s.members, s.err
}

type recordingAnnouncer struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (a *recordingAnnouncer) Announce(_ context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.texts = append(a.texts, text)
	return a.err
}

// flakyCrediter fails the first n payouts, then delegates to the store.
type flakyCrediter struct {
	*memstore.Store
	mu   sync.Mutex
	fail int
}

func (c *flakyCrediter) CreditPayout(ctx context.Context, label string, at time.Time, amounts map[string]int) error {
	c.mu.Lock()
	if c.fail > 0 {
		c.fail--
		c.mu.Unlock()
		return errors.New("connection reset")
	}
	c.mu.Unlock()
	return c.Store.CreditPayout(ctx, label, at, amounts)
}

var roles = map[string]int{"booster": 100, "patron1": 200, "patron4": 600}

var members = []economy.Member{
	{UserID: "alice", RoleIDs: []string{"booster"}},
	{UserID: "bob", RoleIDs: []string{"booster", "patron4", "patron1"}},
	{UserID: "carol", RoleIDs: []string{"member"}},
	{UserID: "robot", RoleIDs: []string{"patron4"}, Bot: true},
}

func TestAmounts(t *testing.T) {
	t.Parallel()
	got := economy.Amounts(members, roles)
	want := map[string]int{"alice": 100, "bob": 600}
	if len(got) != len(want) {
		t.Fatalf("Amounts = %v, want %v", got, want)
	}
	for id, amount := range want {
		if got[id] != amount {
			t.Errorf("Amounts[%s] = %d, want %d", id, got[id], amount)
		}
	}
}

func TestNotice(t *testing.T) {
	t.Parallel()
	got := economy.Notice(roles)
	want := "💰 **Monthly Crumbs**\n**<@&patron4>:** `600` crumbs\n**<@&patron1>:** `200` crumbs\n**<@&booster>:** `100` crumbs"
	if got != want {
		t.Errorf("Notice =\n%s\nwant\n%s", got, want)
	}
}

func TestPayIfDue(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	store := memstore.New()
	ann := &recordingAnnouncer{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := economy.New(staticMembers{members: members}, store, store, roles,
		economy.WithAnnouncer(ann),
		economy.WithClock(func() time.Time { return now }),
	)

	// Never paid before: due at once.
	if paid, err := p.PayIfDue(ctx); err != nil || !paid {
		t.Fatalf("first PayIfDue = %v, %v", paid, err)
	}
	if last, ok, _ := store.LastRun(ctx, economy.EventLabel); !ok || !last.Equal(now) {
		t.Errorf("last run = %v, %v", last, ok)
	}

	now = now.Add(30 * 24 * time.Hour)
	if paid, err := p.PayIfDue(ctx); err != nil || paid {
		t.Fatalf("PayIfDue after 30 days = %v, %v; want not due", paid, err)
	}

	now = now.Add(24 * time.Hour)
	if paid, err := p.PayIfDue(ctx); err != nil || !paid {
		t.Fatalf("PayIfDue after 31 days = %v, %v", paid, err)
	}

	bob, _ := store.Profile(ctx, "bob")
	if bob == nil || bob.Money != 1200 || bob.GamesPlayed != 0 {
		t.Errorf("bob = %+v, want 1200 crumbs and no games", bob)
	}
	if carol, _ := store.Profile(ctx, "carol"); carol != nil {
		t.Errorf("carol without a rewarded role got a profile: %+v", carol)
	}
	if robot, _ := store.Profile(ctx, "robot"); robot != nil {
		t.Errorf("bot got paid: %+v", robot)
	}
	if len(ann.texts) != 2 || !strings.Contains(ann.texts[0], "<@&booster>") {
		t.Errorf("announcements = %q", ann.texts)
	}
}

func TestPay_Failures(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	t.Run("no roles", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		p := economy.New(staticMembers{members: members}, store, store, map[string]int{"x": 0})
		if err := p.Pay(ctx); err == nil {
			t.Error("Pay without roles should fail")
		}
		if _, ok, _ := store.LastRun(ctx, economy.EventLabel); ok {
			t.Error("failed payout was recorded")
		}
	})

	t.Run("member listing fails", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		p := economy.New(staticMembers{err: errors.New("gateway down")}, store, store, roles)
		if err := p.Pay(ctx); err == nil || !strings.Contains(err.Error(), "gateway down") {
			t.Errorf("Pay = %v", err)
		}
		if _, ok, _ := store.LastRun(ctx, economy.EventLabel); ok {
			t.Error("failed payout was recorded")
		}
	})

	t.Run("credit failure leaves the month due", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		crediter := &flakyCrediter{Store: store, fail: 1}
		p := economy.New(staticMembers{members: members}, crediter, store, roles)

		if paid, err := p.PayIfDue(ctx); err == nil || paid {
			t.Fatalf("PayIfDue = %v, %v; want failure", paid, err)
		}
		if _, ok, _ := store.LastRun(ctx, economy.EventLabel); ok {
			t.Error("failed payout was recorded")
		}
		if paid, err := p.PayIfDue(ctx); err != nil || !paid {
			t.Fatalf("retry PayIfDue = %v, %v", paid, err)
		}
		if bob, _ := store.Profile(ctx, "bob"); bob == nil || bob.Money != 600 {
			t.Errorf("bob = %+v, want one payout of 600", bob)
		}
	})

	t.Run("announcement failure still pays", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		ann := &recordingAnnouncer{err: errors.New("missing permissions")}
		p := economy.New(staticMembers{members: members}, store, store, roles, economy.WithAnnouncer(ann))
		if err := p.Pay(ctx); err != nil {
			t.Fatalf("Pay: %v", err)
		}
		if alice, _ := store.Profile(ctx, "alice"); alice == nil || alice.Money != 100 {
			t.Errorf("alice = %+v", alice)
		}
	})
}

func TestSetRoles(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	store := memstore.New()
	p := economy.New(staticMembers{members: members}, store, store, roles)
	p.SetRoles(map[string]int{"booster": 50})
	if err := p.Pay(ctx); err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if bob, _ := store.Profile(ctx, "bob"); bob == nil || bob.Money != 50 {
		t.Errorf("bob = %+v, want 50 crumbs", bob)
	}
}

func TestRun_PaysOnStartAndStops(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	ctx, cancel := context.WithCancel(t.Context())
	p := economy.New(staticMembers{members: members}, store, store, roles,
		economy.WithCheckEvery(10*time.Millisecond))

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok, _ := store.LastRun(ctx, economy.EventLabel); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Run never paid")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if alice, _ := store.Profile(t.Context(), "alice"); alice == nil || alice.Money != 100 {
		t.Errorf("alice = %+v, want one payout", alice)
	}
}
