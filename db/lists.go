package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Per-user lists live in tables keyed by (user_id, pokemon_id) with a
// BIGSERIAL position for insertion order.
const (
	releaseTable = "release_ids"
	evolveTable  = "evolve_ids"
)

func inTx(ctx context.Context, dbx *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := dbx.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// lockList serializes writers of one user's list until the transaction ends.
// Counts taken after the lock are stable for the rest of the transaction.
func lockList(ctx context.Context, tx *sql.Tx, table, userID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, table, userID); err != nil {
		return fmt.Errorf("lock %s for %s: %w", table, userID, err)
	}
	return nil
}

func countList(ctx context.Context, tx *sql.Tx, table, userID string, out *int) error {
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE user_id=$1`, userID).Scan(out); err != nil {
		return fmt.Errorf("count %s: %w", table, err)
	}
	return nil
}

// dedupe drops repeated ids, keeping first occurrence order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
