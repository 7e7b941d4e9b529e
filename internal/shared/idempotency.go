package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdempotencyConflict indicates the key was already claimed, meaning the
// operation it guards has run before.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore records processed operation keys in Postgres. Retried
// deliveries (asynq re-runs, duplicate submissions) claim their key before
// doing work; a conflict means skip.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// CheckAndInsert claims key within the given module scope. The unique index
// on (key, module) makes the claim race-safe across workers.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("shared: idempotency store not configured")
	}
	if key == "" || module == "" {
		return fmt.Errorf("%w: idempotency key and module required", ErrValidation)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, NOW())`,
		key, module)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return fmt.Errorf("shared: claim idempotency key: %w", err)
	}
	return nil
}

// Cleanup removes keys older than the retention window. A claimed key only
// needs to outlive the retry horizon of the task it guards.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	if _, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff); err != nil {
		return fmt.Errorf("shared: cleanup idempotency keys: %w", err)
	}
	return nil
}

// Delete releases a claimed key so the operation can run again, used when the
// work behind the claim failed after the claim succeeded.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil || key == "" {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key); err != nil {
		return fmt.Errorf("shared: release idempotency key: %w", err)
	}
	return nil
}
