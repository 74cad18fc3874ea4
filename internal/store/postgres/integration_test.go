package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/dictee/internal/game"
)

// testStore connects to the database named by DICTEE_TEST_POSTGRES_DSN.
// Each test works on fresh user IDs so runs do not interfere.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DICTEE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DICTEE_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestIntegration_ProfileLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := t.Context()
	user := "it-" + uuid.NewString()

	if p, err := s.Profile(ctx, user); err != nil || p != nil {
		t.Fatalf("fresh user: %+v, %v", p, err)
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	if err := s.CreateProfile(ctx, game.Profile{UserID: user, Money: 4, GamesPlayed: 1, LastTimePlayed: now}); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if err := s.CreateProfile(ctx, game.Profile{UserID: user}); err == nil {
		t.Error("second CreateProfile should fail")
	}
	if err := s.CreditProfile(ctx, user, 6, 1, now.Add(time.Hour)); err != nil {
		t.Fatalf("CreditProfile: %v", err)
	}
	if err := s.CreditPayout(ctx, "it-"+uuid.NewString(), now, map[string]int{user: 100}); err != nil {
		t.Fatalf("CreditPayout: %v", err)
	}

	p, err := s.Profile(ctx, user)
	if err != nil || p == nil {
		t.Fatalf("Profile: %+v, %v", p, err)
	}
	if p.Money != 110 || p.GamesPlayed != 2 || !p.LastTimePlayed.Equal(now.Add(time.Hour)) {
		t.Errorf("profile = %+v", p)
	}
}

func TestIntegration_TallyCooldownsDice(t *testing.T) {
	s := testStore(t)
	ctx := t.Context()
	user := "it-" + uuid.NewString()

	for _, win := range []bool{true, true, false} {
		var err error
		if win {
			err = s.RecordRoundWin(ctx, user)
		} else {
			err = s.RecordRoundLoss(ctx, user)
		}
		if err != nil {
			t.Fatalf("record round: %v", err)
		}
	}
	tally, err := s.RoundTally(ctx, user)
	if err != nil || tally == nil || tally.Wins != 2 || tally.Losses != 1 {
		t.Errorf("tally = %+v, %v", tally, err)
	}

	rec := game.CooldownRecord{UserID: user, AssetID: "001", Language: game.French, Difficulty: game.A2, PlayedAt: time.Now().UTC()}
	if err := s.TouchAssetPlayed(ctx, rec); err == nil {
		t.Error("touch before record should fail")
	}
	if err := s.RecordAssetPlayed(ctx, rec); err != nil {
		t.Fatalf("RecordAssetPlayed: %v", err)
	}
	if err := s.RecordAssetPlayed(ctx, rec); err == nil {
		t.Error("duplicate record should fail")
	}
	if err := s.TouchAssetPlayed(ctx, rec); err != nil {
		t.Fatalf("TouchAssetPlayed: %v", err)
	}
	recs, err := s.Cooldowns(ctx, user, game.French, game.A2)
	if err != nil || len(recs) != 1 {
		t.Errorf("cooldowns = %+v, %v", recs, err)
	}
	if other, _ := s.Cooldowns(ctx, user, game.French, game.B1); len(other) != 0 {
		t.Errorf("cooldowns leak across difficulties: %+v", other)
	}
	if other, _ := s.Cooldowns(ctx, user, game.English, game.A2); len(other) != 0 {
		t.Errorf("cooldowns leak across languages: %+v", other)
	}
	en := rec
	en.Language = game.English
	if err := s.RecordAssetPlayed(ctx, en); err != nil {
		t.Errorf("same folder in another language: %v", err)
	}

	for range 2 {
		if err := s.AddRollDice(ctx, user, 1); err != nil {
			t.Fatalf("AddRollDice: %v", err)
		}
	}
	if n, err := s.RollDice(ctx, user); err != nil || n != 2 {
		t.Errorf("RollDice = %d, %v", n, err)
	}
}

func TestIntegration_ScheduledEvents(t *testing.T) {
	s := testStore(t)
	ctx := t.Context()
	label := "it-" + uuid.NewString()

	if _, ok, err := s.LastRun(ctx, label); err != nil || ok {
		t.Fatalf("LastRun before set: ok=%v err=%v", ok, err)
	}
	at := time.Now().UTC().Truncate(time.Second)
	if err := s.CreditPayout(ctx, label, at, nil); err != nil {
		t.Fatalf("CreditPayout: %v", err)
	}
	if err := s.CreditPayout(ctx, label, at.Add(time.Minute), nil); err != nil {
		t.Fatalf("CreditPayout again: %v", err)
	}
	last, ok, err := s.LastRun(ctx, label)
	if err != nil || !ok || !last.Equal(at.Add(time.Minute)) {
		t.Errorf("LastRun = %v, %v, %v", last, ok, err)
	}
}

func TestIntegration_Items(t *testing.T) {
	s := testStore(t)
	ctx := t.Context()
	user := "it-" + uuid.NewString()
	suffix := uuid.NewString()[:8]
	beret := game.Item{Name: "Beret " + suffix, Kind: game.KindHat, Price: 30, ImageName: "beret-" + suffix + ".png"}
	capItem := game.Item{Name: "Cap " + suffix, Kind: game.KindHat, Price: 20, ImageName: "cap-" + suffix + ".png"}

	for _, it := range []game.Item{beret, capItem} {
		if err := s.RegisterItem(ctx, it); err != nil {
			t.Fatalf("RegisterItem(%s): %v", it.Name, err)
		}
	}
	dup := beret
	dup.Name = "Other " + suffix
	if err := s.RegisterItem(ctx, dup); !errors.Is(err, game.ErrItemExists) {
		t.Errorf("same image: err = %v, want ErrItemExists", err)
	}

	if _, err := s.BuyItem(ctx, user, beret.Name); !errors.Is(err, game.ErrInsufficientFunds) {
		t.Errorf("buy without profile: err = %v", err)
	}
	if err := s.CreateProfile(ctx, game.Profile{UserID: user, Money: 45}); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if _, err := s.BuyItem(ctx, user, "nothing "+suffix); !errors.Is(err, game.ErrItemNotFound) {
		t.Errorf("buy unknown: err = %v", err)
	}
	if _, err := s.BuyItem(ctx, user, beret.Name); err != nil {
		t.Fatalf("BuyItem: %v", err)
	}
	if _, err := s.BuyItem(ctx, user, beret.Name); !errors.Is(err, game.ErrItemOwned) {
		t.Errorf("buy twice: err = %v", err)
	}
	if _, err := s.BuyItem(ctx, user, capItem.Name); !errors.Is(err, game.ErrInsufficientFunds) {
		t.Errorf("buy with 15 crumbs: err = %v", err)
	}
	if p, _ := s.Profile(ctx, user); p == nil || p.Money != 15 {
		t.Errorf("profile after purchase = %+v", p)
	}

	if err := s.CreditPayout(ctx, "it-"+suffix, time.Now(), map[string]int{user: 100}); err != nil {
		t.Fatalf("CreditPayout: %v", err)
	}
	if _, err := s.BuyItem(ctx, user, capItem.Name); err != nil {
		t.Fatalf("BuyItem cap: %v", err)
	}
	if err := s.EquipItem(ctx, user, beret.Name); err != nil {
		t.Fatalf("EquipItem beret: %v", err)
	}
	if err := s.EquipItem(ctx, user, capItem.Name); err != nil {
		t.Fatalf("EquipItem cap: %v", err)
	}
	inv, err := s.Inventory(ctx, user)
	if err != nil || len(inv) != 2 {
		t.Fatalf("Inventory = %+v, %v", inv, err)
	}
	for _, o := range inv {
		if o.Enabled != (o.Name == capItem.Name) {
			t.Errorf("%s enabled = %v; one hat at a time", o.Name, o.Enabled)
		}
	}
	if err := s.EquipItem(ctx, "it-"+uuid.NewString(), capItem.Name); !errors.Is(err, game.ErrItemNotOwned) {
		t.Errorf("equip by stranger: err = %v", err)
	}
}
