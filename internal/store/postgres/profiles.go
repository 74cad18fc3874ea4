package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/dictee/internal/game"
)

// Profile implements [game.ProfileStore]. It returns (nil, nil) if userID has
// no profile.
func (s *Store) Profile(ctx context.Context, userID string) (*game.Profile, error) {
	const query = `
		SELECT user_id, money, games_played, last_time_played
		FROM profiles
		WHERE user_id = $1`

	var (
		p     game.Profile
		last  *time.Time
		found = true
	)
	err := s.call(ctx, "profile", func(ctx context.Context) error {
		err := s.db.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.Money, &p.GamesPlayed, &last)
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: get profile %q: %w", userID, err)
	}
	if !found {
		return nil, nil
	}
	if last != nil {
		p.LastTimePlayed = *last
	}
	return &p, nil
}

// CreateProfile implements [game.ProfileStore].
func (s *Store) CreateProfile(ctx context.Context, p game.Profile) error {
	const query = `
		INSERT INTO profiles (user_id, money, games_played, last_time_played)
		VALUES ($1, $2, $3, $4)`

	var last *time.Time
	if !p.LastTimePlayed.IsZero() {
		last = &p.LastTimePlayed
	}
	err := s.call(ctx, "create_profile", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, query, p.UserID, p.Money, p.GamesPlayed, last)
		return err
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("postgres: profile %q already exists", p.UserID)
		}
		return fmt.Errorf("postgres: create profile: %w", err)
	}
	return nil
}

// CreditProfile implements [game.ProfileStore].
func (s *Store) CreditProfile(ctx context.Context, userID string, amount, gamesPlayed int, lastPlayed time.Time) error {
	const query = `
		UPDATE profiles SET
			money = money + $2,
			games_played = games_played + $3,
			last_time_played = $4
		WHERE user_id = $1`

	var rows int64
	err := s.call(ctx, "credit_profile", func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, query, userID, amount, gamesPlayed, lastPlayed)
		rows = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: credit profile: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("postgres: profile %q not found", userID)
	}
	return nil
}

// CreditPayout adds amounts[userID] crumbs to every listed user and records
// that the scheduled job label ran at t. Both writes happen in a single
// statement, so either the payout and its record land together or neither
// does. Users without a profile get one with no games played.
func (s *Store) CreditPayout(ctx context.Context, label string, t time.Time, amounts map[string]int) error {
	const query = `
		WITH run AS (
			INSERT INTO scheduled_events (label, last_run) VALUES ($1, $2)
			ON CONFLICT (label) DO UPDATE SET last_run = EXCLUDED.last_run
		)
		INSERT INTO profiles (user_id, money)
		SELECT * FROM unnest($3::text[], $4::bigint[])
		ON CONFLICT (user_id) DO UPDATE SET money = profiles.money + EXCLUDED.money`

	users := make([]string, 0, len(amounts))
	for id := range amounts {
		users = append(users, id)
	}
	slices.Sort(users)
	money := make([]int64, len(users))
	for i, id := range users {
		money[i] = int64(amounts[id])
	}

	err := s.call(ctx, "credit_payout", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, query, label, t, users, money)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: credit payout %q to %d users: %w", label, len(users), err)
	}
	return nil
}
