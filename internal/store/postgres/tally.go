package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/dictee/internal/game"
)

// RoundTally implements [game.TallyStore].
func (s *Store) RoundTally(ctx context.Context, userID string) (*game.RoundTally, error) {
	const query = `SELECT user_id, wins, losses FROM round_status WHERE user_id = $1`

	var (
		t     game.RoundTally
		found = true
	)
	err := s.call(ctx, "round_tally", func(ctx context.Context) error {
		err := s.db.QueryRow(ctx, query, userID).Scan(&t.UserID, &t.Wins, &t.Losses)
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: get round tally %q: %w", userID, err)
	}
	if !found {
		return nil, nil
	}
	return &t, nil
}

// RecordRoundWin implements [game.TallyStore].
func (s *Store) RecordRoundWin(ctx context.Context, userID string) error {
	const query = `
		INSERT INTO round_status (user_id, wins, losses) VALUES ($1, 1, 0)
		ON CONFLICT (user_id) DO UPDATE SET wins = round_status.wins + 1`
	return s.bumpTally(ctx, "record_round_win", query, userID)
}

// RecordRoundLoss implements [game.TallyStore].
func (s *Store) RecordRoundLoss(ctx context.Context, userID string) error {
	const query = `
		INSERT INTO round_status (user_id, wins, losses) VALUES ($1, 0, 1)
		ON CONFLICT (user_id) DO UPDATE SET losses = round_status.losses + 1`
	return s.bumpTally(ctx, "record_round_loss", query, userID)
}

func (s *Store) bumpTally(ctx context.Context, op, query, userID string) error {
	err := s.call(ctx, op, func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, query, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: %s: %w", op, err)
	}
	return nil
}

// Leaderboard implements [game.TallyStore].
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]game.RoundTally, error) {
	const query = `
		SELECT user_id, wins, losses
		FROM round_status
		ORDER BY wins DESC, user_id
		LIMIT $1`

	var out []game.RoundTally
	err := s.call(ctx, "leaderboard", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, query, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var t game.RoundTally
			if err := rows.Scan(&t.UserID, &t.Wins, &t.Losses); err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: leaderboard: %w", err)
	}
	return out, nil
}
