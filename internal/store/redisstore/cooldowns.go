// Package redisstore keeps asset cooldown records in Redis, one hash per user,
// language and difficulty. It is an alternative to the PostgreSQL audio_files table for
// deployments that already run Redis next to the bot.
//
// Layout:
//
//	dictee:cooldown:<user_id>:<language>:<difficulty>  HASH  asset_id -> unix milliseconds
//
// Each hash expires after the retention period following its last write.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/dictee/internal/game"
)

// Compile-time interface assertion.
var _ game.CooldownStore = (*CooldownStore)(nil)

const (
	keyPrefix = "dictee:cooldown:"

	// DefaultRetention keeps records well past the 24h cooldown so a replay
	// is still recognised as one.
	DefaultRetention = 30 * 24 * time.Hour
)

// errNotRecorded aborts a touch transaction when the record is missing.
var errNotRecorded = errors.New("redis: asset not recorded")

// CooldownStore implements [game.CooldownStore] on Redis hashes.
type CooldownStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewCooldownStore returns a store using client. A non-positive retention
// selects [DefaultRetention].
func NewCooldownStore(client *redis.Client, retention time.Duration) *CooldownStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &CooldownStore{client: client, retention: retention}
}

// Dial connects to the Redis server at addr and verifies it answers.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return client, nil
}

// Cooldowns implements [game.CooldownStore].
func (s *CooldownStore) Cooldowns(ctx context.Context, userID string, lang game.Language, d game.Difficulty) ([]game.CooldownRecord, error) {
	fields, err := s.client.HGetAll(ctx, key(userID, lang, d)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list cooldowns: %w", err)
	}
	out := make([]game.CooldownRecord, 0, len(fields))
	for assetID, raw := range fields {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis: cooldown %q of %q: %w", assetID, userID, err)
		}
		out = append(out, game.CooldownRecord{
			UserID:     userID,
			AssetID:    assetID,
			Language:   lang,
			Difficulty: d,
			PlayedAt:   time.UnixMilli(ms),
		})
	}
	return out, nil
}

// RecordAssetPlayed implements [game.CooldownStore].
func (s *CooldownStore) RecordAssetPlayed(ctx context.Context, rec game.CooldownRecord) error {
	k := key(rec.UserID, rec.Language, rec.Difficulty)
	var added *redis.BoolCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.HSetNX(ctx, k, rec.AssetID, rec.PlayedAt.UnixMilli())
		pipe.Expire(ctx, k, s.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: record asset played: %w", err)
	}
	if !added.Val() {
		return fmt.Errorf("redis: asset %q already recorded for %q", rec.AssetID, rec.UserID)
	}
	return nil
}

// TouchAssetPlayed implements [game.CooldownStore]. The existence check and
// the update run under WATCH so a concurrent expiry cannot resurrect a
// record.
func (s *CooldownStore) TouchAssetPlayed(ctx context.Context, rec game.CooldownRecord) error {
	k := key(rec.UserID, rec.Language, rec.Difficulty)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		ok, err := tx.HExists(ctx, k, rec.AssetID).Result()
		if err != nil {
			return err
		}
		if !ok {
			return errNotRecorded
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, rec.AssetID, rec.PlayedAt.UnixMilli())
			pipe.Expire(ctx, k, s.retention)
			return nil
		})
		return err
	}, k)
	if errors.Is(err, errNotRecorded) {
		return fmt.Errorf("redis: no record of asset %q for %q", rec.AssetID, rec.UserID)
	}
	if err != nil {
		return fmt.Errorf("redis: touch asset played: %w", err)
	}
	return nil
}

// Ping checks that the server answers. It backs the readiness probe.
func (s *CooldownStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *CooldownStore) Close() error {
	return s.client.Close()
}

func key(userID string, lang game.Language, d game.Difficulty) string {
	return keyPrefix + userID + ":" + string(lang) + ":" + string(d)
}
