package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// RollDice implements [game.DiceStore].
func (s *Store) RollDice(ctx context.Context, userID string) (int, error) {
	const query = `SELECT dices FROM user_roll_dices WHERE user_id = $1`

	var n int
	err := s.call(ctx, "roll_dice", func(ctx context.Context) error {
		err := s.db.QueryRow(ctx, query, userID).Scan(&n)
		if errors.Is(err, pgx.ErrNoRows) {
			n = 0
			return nil
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("postgres: get roll dice: %w", err)
	}
	return n, nil
}

// AddRollDice implements [game.DiceStore].
func (s *Store) AddRollDice(ctx context.Context, userID string, n int) error {
	const query = `
		INSERT INTO user_roll_dices (user_id, dices) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET dices = user_roll_dices.dices + EXCLUDED.dices`

	err := s.call(ctx, "add_roll_dice", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, query, userID, n)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: add roll dice: %w", err)
	}
	return nil
}
