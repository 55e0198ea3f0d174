package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
	"github.com/aryan0dhankhar/projecthub/internal/reliability/circuitbreaker"
)

// allocateSequenceQuery creates the counter at 1 or bumps it, in one statement.
// The row lock taken by ON CONFLICT DO UPDATE serializes concurrent callers.
const allocateSequenceQuery = `
	INSERT INTO counters (name, seq)
	VALUES ($1, 1)
	ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1
	RETURNING seq
`

// PostgresSequenceAllocator implements domain.SequenceAllocator on the counters table
type PostgresSequenceAllocator struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSequenceAllocator creates a Postgres-backed allocator
func NewPostgresSequenceAllocator(db *sql.DB, logger *slog.Logger) *PostgresSequenceAllocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSequenceAllocator{db: db, logger: logger}
}

// Allocate returns the next value for name
func (a *PostgresSequenceAllocator) Allocate(ctx context.Context, name string) (int64, error) {
	var seq int64
	if err := a.db.QueryRowContext(ctx, allocateSequenceQuery, name).Scan(&seq); err != nil {
		a.logger.Error("failed to allocate sequence",
			slog.String("counter", name),
			slog.String("error", err.Error()),
		)
		return 0, domain.StoreFailure("allocate sequence", err)
	}
	return seq, nil
}

// Incrementer is the atomic counter primitive RedisSequenceAllocator relies on.
type Incrementer interface {
	Incr(ctx context.Context, key string) (int64, error)
}

// RedisSequenceAllocator implements domain.SequenceAllocator with Redis INCR.
// An optional breaker makes creates fail fast while Redis is down.
type RedisSequenceAllocator struct {
	client  Incrementer
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewRedisSequenceAllocator creates a Redis-backed allocator; breaker may be nil
func NewRedisSequenceAllocator(client Incrementer, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *RedisSequenceAllocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSequenceAllocator{client: client, breaker: breaker, logger: logger}
}

// Allocate returns the next value for name
func (a *RedisSequenceAllocator) Allocate(ctx context.Context, name string) (int64, error) {
	var seq int64
	incr := func() error {
		var err error
		seq, err = a.client.Incr(ctx, "counter:"+name)
		return err
	}

	var err error
	if a.breaker != nil {
		err = a.breaker.Execute(incr, isCallerCancellation)
	} else {
		err = incr()
	}
	if err != nil {
		a.logger.Error("failed to allocate sequence",
			slog.String("counter", name),
			slog.String("error", err.Error()),
		)
		return 0, domain.StoreFailure("allocate sequence", err)
	}
	return seq, nil
}

func isCallerCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
