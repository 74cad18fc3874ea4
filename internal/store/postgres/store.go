// Package postgres persists profiles, round tallies, asset cooldowns, bonus
// roll tokens, scheduled-job timestamps and cosmetic items in PostgreSQL.
//
// Usage:
//
//	store, err := postgres.Connect(ctx, dsn, postgres.WithBreaker(b))
//	if err != nil { … }
//	defer store.Close()
//
// Every query goes through an optional [resilience.Breaker] and records its
// latency on the dictee.store.duration histogram.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/dictee/internal/game"
	"github.com/MrWong99/dictee/internal/observe"
	"github.com/MrWong99/dictee/internal/resilience"
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

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Option is a functional option for configuring a [Store].
type Option func(*Store)

// WithBreaker guards every query with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(s *Store) {
		s.breaker = b
	}
}

// WithMetrics records query latency on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// Store implements the game store interfaces on top of a [DB].
// All methods are safe for concurrent use.
type Store struct {
	db      DB
	pool    *pgxpool.Pool
	breaker *resilience.Breaker
	metrics *observe.Metrics
}

// New returns a [Store] issuing queries on db. The caller runs
// [Store.Migrate] before first use.
func New(db DB, opts ...Option) *Store {
	s := &Store{db: db}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Connect opens a connection pool to dsn, pings it and migrates the schema.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := New(pool, opts...)
	s.pool = pool
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Ping checks that the database answers. It backs the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	var one int
	return s.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// Close releases the pool opened by [Connect]. It is a no-op for stores
// built with [New].
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// call runs fn through the breaker and records its latency under op.
func (s *Store) call(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	defer func() {
		s.metrics.RecordStoreCall(ctx, op, time.Since(start).Seconds())
	}()
	if s.breaker == nil {
		return fn(ctx)
	}
	return s.breaker.Do(ctx, fn)
}

// IsBackendFailure reports whether err means the database itself is in
// trouble. Constraint violations and cancelled contexts do not count. Use it
// as [resilience.Config.IsFailure] for the breaker passed to [WithBreaker].
func IsBackendFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 23 is integrity constraint violation.
		return !strings.HasPrefix(pgErr.Code, "23")
	}
	return true
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
