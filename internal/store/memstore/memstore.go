// Package memstore is an in-memory implementation of the game stores. It
// backs the bot when no database is configured and serves as a fake in tests.
// Nothing survives a restart.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/dictee/internal/game"
)

// Compile-time interface assertions.
var (
	_ game.ProfileStore  = (*Store)(nil)
	_ game.TallyStore    = (*Store)(nil)
	_ game.CooldownStore = (*Store)(nil)
	_ game.DiceStore     = (*Store)(nil)
	_ game.EventStore    = (*Store)(nil)
	_ game.ItemStore     = (*Store)(nil)
)

type cooldownKey struct {
	userID     string
	assetID    string
	language   game.Language
	difficulty game.Difficulty
}

// Store keeps every record in maps guarded by a single mutex.
// All methods are safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	profiles  map[string]game.Profile
	tallies   map[string]game.RoundTally
	cooldowns map[cooldownKey]time.Time
	dice      map[string]int
	events    map[string]time.Time
	items     map[string]game.Item
	owned     map[string]map[string]bool // user -> item name -> enabled
}

// New returns an empty [Store].
func New() *Store {
	return &Store{
		profiles:  make(map[string]game.Profile),
		tallies:   make(map[string]game.RoundTally),
		cooldowns: make(map[cooldownKey]time.Time),
		dice:      make(map[string]int),
		events:    make(map[string]time.Time),
		items:     make(map[string]game.Item),
		owned:     make(map[string]map[string]bool),
	}
}

// Profile implements [game.ProfileStore].
func (s *Store) Profile(_ context.Context, userID string) (*game.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// CreateProfile implements [game.ProfileStore].
func (s *Store) CreateProfile(_ context.Context, p game.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.UserID]; ok {
		return fmt.Errorf("memstore: profile %q already exists", p.UserID)
	}
	s.profiles[p.UserID] = p
	return nil
}

// CreditProfile implements [game.ProfileStore].
func (s *Store) CreditProfile(_ context.Context, userID string, amount, gamesPlayed int, lastPlayed time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return fmt.Errorf("memstore: profile %q not found", userID)
	}
	p.Money += amount
	p.GamesPlayed += gamesPlayed
	p.LastTimePlayed = lastPlayed
	s.profiles[userID] = p
	return nil
}

// CreditPayout adds amounts[userID] crumbs to each user, creating missing
// profiles with zero games played, and records label as run at t.
func (s *Store) CreditPayout(_ context.Context, label string, t time.Time, amounts map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[label] = t
	for userID, amount := range amounts {
		p, ok := s.profiles[userID]
		if !ok {
			p = game.Profile{UserID: userID}
		}
		p.Money += amount
		s.profiles[userID] = p
	}
	return nil
}

// RoundTally implements [game.TallyStore].
func (s *Store) RoundTally(_ context.Context, userID string) (*game.RoundTally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tallies[userID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// RecordRoundWin implements [game.TallyStore].
func (s *Store) RecordRoundWin(_ context.Context, userID string) error {
	s.bump(userID, 1, 0)
	return nil
}

// RecordRoundLoss implements [game.TallyStore].
func (s *Store) RecordRoundLoss(_ context.Context, userID string) error {
	s.bump(userID, 0, 1)
	return nil
}

func (s *Store) bump(userID string, wins, losses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tallies[userID]
	t.UserID = userID
	t.Wins += wins
	t.Losses += losses
	s.tallies[userID] = t
}

// Leaderboard implements [game.TallyStore]. Ties are ordered by user ID.
func (s *Store) Leaderboard(_ context.Context, limit int) ([]game.RoundTally, error) {
	s.mu.Lock()
	out := make([]game.RoundTally, 0, len(s.tallies))
	for _, t := range s.tallies {
		out = append(out, t)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b game.RoundTally) int {
		if c := cmp.Compare(b.Wins, a.Wins); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Cooldowns implements [game.CooldownStore].
func (s *Store) Cooldowns(_ context.Context, userID string, lang game.Language, d game.Difficulty) ([]game.CooldownRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []game.CooldownRecord
	for k, ts := range s.cooldowns {
		if k.userID == userID && k.language == lang && k.difficulty == d {
			out = append(out, game.CooldownRecord{UserID: userID, AssetID: k.assetID, Language: lang, Difficulty: d, PlayedAt: ts})
		}
	}
	return out, nil
}

// RecordAssetPlayed implements [game.CooldownStore].
func (s *Store) RecordAssetPlayed(_ context.Context, rec game.CooldownRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := cooldownKey{rec.UserID, rec.AssetID, rec.Language, rec.Difficulty}
	if _, ok := s.cooldowns[k]; ok {
		return fmt.Errorf("memstore: cooldown for %q/%q already recorded", rec.UserID, rec.AssetID)
	}
	s.cooldowns[k] = rec.PlayedAt
	return nil
}

// TouchAssetPlayed implements [game.CooldownStore].
func (s *Store) TouchAssetPlayed(_ context.Context, rec game.CooldownRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := cooldownKey{rec.UserID, rec.AssetID, rec.Language, rec.Difficulty}
	if _, ok := s.cooldowns[k]; !ok {
		return fmt.Errorf("memstore: no cooldown for %q/%q", rec.UserID, rec.AssetID)
	}
	s.cooldowns[k] = rec.PlayedAt
	return nil
}

// RollDice implements [game.DiceStore].
func (s *Store) RollDice(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dice[userID], nil
}

// AddRollDice implements [game.DiceStore].
func (s *Store) AddRollDice(_ context.Context, userID string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dice[userID] += n
	return nil
}

// LastRun implements [game.EventStore].
func (s *Store) LastRun(_ context.Context, label string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.events[label]
	return t, ok, nil
}

// RegisterItem implements [game.ItemStore].
func (s *Store) RegisterItem(_ context.Context, it game.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.items {
		if have.Name == it.Name || have.ImageName == it.ImageName {
			return fmt.Errorf("memstore: register item %q: %w", it.Name, game.ErrItemExists)
		}
	}
	s.items[it.Name] = it
	return nil
}

// Items implements [game.ItemStore].
func (s *Store) Items(_ context.Context) ([]game.Item, error) {
	s.mu.Lock()
	out := make([]game.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b game.Item) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.Name, b.Name))
	})
	return out, nil
}

// Inventory implements [game.ItemStore].
func (s *Store) Inventory(_ context.Context, userID string) ([]game.OwnedItem, error) {
	s.mu.Lock()
	var out []game.OwnedItem
	for name, enabled := range s.owned[userID] {
		it := s.items[name]
		out = append(out, game.OwnedItem{UserID: userID, Name: name, Kind: it.Kind, ImageName: it.ImageName, Enabled: enabled})
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b game.OwnedItem) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.Name, b.Name))
	})
	return out, nil
}

// BuyItem implements [game.ItemStore].
func (s *Store) BuyItem(_ context.Context, userID, name string) (game.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[name]
	if !ok {
		return game.Item{}, fmt.Errorf("memstore: buy item %q: %w", name, game.ErrItemNotFound)
	}
	if _, ok := s.owned[userID][name]; ok {
		return game.Item{}, fmt.Errorf("memstore: buy item %q: %w", name, game.ErrItemOwned)
	}
	p, ok := s.profiles[userID]
	if !ok || p.Money < it.Price {
		return game.Item{}, fmt.Errorf("memstore: buy item %q: %w", name, game.ErrInsufficientFunds)
	}
	p.Money -= it.Price
	s.profiles[userID] = p
	if s.owned[userID] == nil {
		s.owned[userID] = make(map[string]bool)
	}
	s.owned[userID][name] = false
	return it, nil
}

// EquipItem implements [game.ItemStore].
func (s *Store) EquipItem(_ context.Context, userID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := s.owned[userID]
	if _, ok := inv[name]; !ok {
		return fmt.Errorf("memstore: equip item %q: %w", name, game.ErrItemNotOwned)
	}
	kind := s.items[name].Kind
	for other := range inv {
		if s.items[other].Kind == kind {
			inv[other] = other == name
		}
	}
	return nil
}

