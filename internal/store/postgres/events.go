package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// LastRun returns when the scheduled job label last ran. ok is false if it
// never ran.
func (s *Store) LastRun(ctx context.Context, label string) (last time.Time, ok bool, err error) {
	const query = `SELECT last_run FROM scheduled_events WHERE label = $1`

	err = s.call(ctx, "last_run", func(ctx context.Context) error {
		err := s.db.QueryRow(ctx, query, label).Scan(&last)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		ok = err == nil
		return err
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("postgres: get last run of %q: %w", label, err)
	}
	return last, ok, nil
}
