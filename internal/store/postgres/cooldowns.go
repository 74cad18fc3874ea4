package postgres

import (
	"context"
	"fmt"

	"github.com/MrWong99/dictee/internal/game"
)

// Cooldowns implements [game.CooldownStore].
func (s *Store) Cooldowns(ctx context.Context, userID string, lang game.Language, d game.Difficulty) ([]game.CooldownRecord, error) {
	const query = `
		SELECT asset_id, played_at
		FROM audio_files
		WHERE user_id = $1 AND language = $2 AND difficulty = $3`

	var out []game.CooldownRecord
	err := s.call(ctx, "cooldowns", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, query, userID, string(lang), string(d))
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			rec := game.CooldownRecord{UserID: userID, Language: lang, Difficulty: d}
			if err := rows.Scan(&rec.AssetID, &rec.PlayedAt); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list cooldowns: %w", err)
	}
	return out, nil
}

// RecordAssetPlayed implements [game.CooldownStore].
func (s *Store) RecordAssetPlayed(ctx context.Context, rec game.CooldownRecord) error {
	const query = `
		INSERT INTO audio_files (user_id, asset_id, language, difficulty, played_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`

	n, err := s.execCount(ctx, "record_asset_played", query, rec.UserID, rec.AssetID, string(rec.Language), string(rec.Difficulty), rec.PlayedAt)
	if err != nil {
		return fmt.Errorf("postgres: record asset played: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("postgres: asset %q already recorded for %q", rec.AssetID, rec.UserID)
	}
	return nil
}

// TouchAssetPlayed implements [game.CooldownStore].
func (s *Store) TouchAssetPlayed(ctx context.Context, rec game.CooldownRecord) error {
	const query = `
		UPDATE audio_files SET played_at = $5
		WHERE user_id = $1 AND asset_id = $2 AND language = $3 AND difficulty = $4`

	n, err := s.execCount(ctx, "touch_asset_played", query, rec.UserID, rec.AssetID, string(rec.Language), string(rec.Difficulty), rec.PlayedAt)
	if err != nil {
		return fmt.Errorf("postgres: touch asset played: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("postgres: no record of asset %q for %q", rec.AssetID, rec.UserID)
	}
	return nil
}

func (s *Store) execCount(ctx context.Context, op, query string, args ...any) (int64, error) {
	var n int64
	err := s.call(ctx, op, func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, query, args...)
		n = tag.RowsAffected()
		return err
	})
	return n, err
}
