package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mathpractice/internal/database"
	"mathpractice/internal/models"
)

// ErrKeyUnresolved is returned when a write hit a uniqueness constraint but no
// idempotency claim exists for the key, e.g. because the claim was pruned.
// Callers fall back to looking up the row by its own unique columns.
var ErrKeyUnresolved = errors.New("duplicate write without a recorded idempotency key")

// WriteFunc performs the write guarded by an idempotency key inside tx and
// returns the id of the row it created.
type WriteFunc func(ctx context.Context, tx database.DBTX) (int64, error)

// IdempotencyRepository records (scope, key) claims. The UNIQUE(scope, idem_key)
// index decides which of several racing submissions wins; there is no
// read-before-write.
type IdempotencyRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewIdempotencyRepository creates a new idempotency repository
func NewIdempotencyRepository(db *database.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db, now: time.Now}
}

// RecordIfAbsent runs write at most once per (scope, key).
//
// The claim row and the write share one transaction. When the claim violates
// the unique index the transaction is rolled back and the id stored by the
// first submission is returned with Duplicate set. An empty key disables
// deduplication and every call writes.
func (r *IdempotencyRepository) RecordIfAbsent(ctx context.Context, scope, key string, write WriteFunc) (models.WriteResult, error) {
	var id int64

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		var claimID int64
		if key != "" {
			var err error
			claimID, err = tx.ExecReturningID(ctx,
				"INSERT INTO idempotency_keys (scope, idem_key, created_at_ms) VALUES (?, ?, ?)",
				scope, key, r.now().UnixMilli())
			if err != nil {
				return err
			}
		}

		var err error
		id, err = write(ctx, tx)
		if err != nil {
			return err
		}

		if key == "" {
			return nil
		}
		_, err = tx.ExecContext(ctx, "UPDATE idempotency_keys SET result_id = ? WHERE id = ?", id, claimID)
		return err
	})
	if err == nil {
		return models.WriteResult{ID: id}, nil
	}

	if key == "" || !r.db.Dialect.IsUniqueViolation(err) {
		return models.WriteResult{}, fmt.Errorf("failed to record %s: %w", scope, err)
	}

	existing, found, lookupErr := r.Lookup(ctx, scope, key)
	if lookupErr != nil {
		return models.WriteResult{}, lookupErr
	}
	if !found {
		return models.WriteResult{}, fmt.Errorf("%s: %w", scope, ErrKeyUnresolved)
	}
	return models.WriteResult{ID: existing, Duplicate: true}, nil
}

// Lookup returns the result recorded for (scope, key).
func (r *IdempotencyRepository) Lookup(ctx context.Context, scope, key string) (int64, bool, error) {
	var resultID sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		"SELECT result_id FROM idempotency_keys WHERE scope = ? AND idem_key = ?",
		scope, key).Scan(&resultID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	if !resultID.Valid {
		return 0, false, nil
	}
	return resultID.Int64, true, nil
}

// Prune deletes claims recorded before cutoff and returns how many were removed.
func (r *IdempotencyRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM idempotency_keys WHERE created_at_ms < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune idempotency keys: %w", err)
	}
	return result.RowsAffected()
}
