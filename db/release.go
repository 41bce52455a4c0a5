package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onnwee/dexkeeper/telemetry"
)

// ErrEmptyList is returned when an operation needs ids but the user's list has none.
var ErrEmptyList = errors.New("list is empty")

// InsufficientError is returned by Take when fewer ids are stored than requested.
type InsufficientError struct {
	Requested int
	Available int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("requested %d ids but only %d available", e.Requested, e.Available)
}

// ReleaseStore persists each user's insertion-ordered release list.
type ReleaseStore struct {
	DB *sql.DB
}

// NewReleaseStore returns a store over an already migrated database.
func NewReleaseStore(dbx *sql.DB) *ReleaseStore { return &ReleaseStore{DB: dbx} }

// Add appends ids not already on the list. It returns how many were new and
// the resulting total.
func (s *ReleaseStore) Add(ctx context.Context, userID string, ids []string) (added, total int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "db", "release.add", telemetry.UserAttr(userID))
	defer span.End()
	defer telemetry.ListOp("release", "add")

	err = inTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := lockList(ctx, tx, releaseTable, userID); err != nil {
			return err
		}
		for _, id := range dedupe(ids) {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO release_ids(user_id, pokemon_id) VALUES($1,$2) ON CONFLICT (user_id, pokemon_id) DO NOTHING`,
				userID, id)
			if err != nil {
				return fmt.Errorf("insert release id: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				added++
			}
		}
		return countList(ctx, tx, releaseTable, userID, &total)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, 0, err
	}
	return added, total, nil
}

// Remove deletes the given ids. An empty list yields ErrEmptyList.
func (s *ReleaseStore) Remove(ctx context.Context, userID string, ids []string) (removed, remaining int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "db", "release.remove", telemetry.UserAttr(userID))
	defer span.End()
	defer telemetry.ListOp("release", "remove")

	err = inTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := lockList(ctx, tx, releaseTable, userID); err != nil {
			return err
		}
		var before int
		if err := countList(ctx, tx, releaseTable, userID, &before); err != nil {
			return err
		}
		if before == 0 {
			return ErrEmptyList
		}
		for _, id := range ids {
			res, err := tx.ExecContext(ctx, `DELETE FROM release_ids WHERE user_id=$1 AND pokemon_id=$2`, userID, id)
			if err != nil {
				return fmt.Errorf("delete release id: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				removed++
			}
		}
		remaining = before - removed
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, 0, err
	}
	return removed, remaining, nil
}

// Clear drops the whole list and returns how many ids it held.
func (s *ReleaseStore) Clear(ctx context.Context, userID string) (int, error) {
	defer telemetry.ListOp("release", "clear")
	res, err := s.DB.ExecContext(ctx, `DELETE FROM release_ids WHERE user_id=$1`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear release list: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// List returns the ids in insertion order.
func (s *ReleaseStore) List(ctx context.Context, userID string) ([]string, error) {
	defer telemetry.ListOp("release", "list")
	rows, err := s.DB.QueryContext(ctx, `SELECT pokemon_id FROM release_ids WHERE user_id=$1 ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("list release ids: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Take removes and returns the first n ids along with the remaining count.
func (s *ReleaseStore) Take(ctx context.Context, userID string, n int) (taken []string, remaining int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "db", "release.take", telemetry.UserAttr(userID))
	defer span.End()
	defer telemetry.ListOp("release", "take")

	if n <= 0 {
		return nil, 0, fmt.Errorf("release count must be positive, got %d", n)
	}
	err = inTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := lockList(ctx, tx, releaseTable, userID); err != nil {
			return err
		}
		var total int
		if err := countList(ctx, tx, releaseTable, userID, &total); err != nil {
			return err
		}
		if total == 0 {
			return ErrEmptyList
		}
		if n > total {
			return &InsufficientError{Requested: n, Available: total}
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT pokemon_id, position FROM release_ids WHERE user_id=$1 ORDER BY position LIMIT $2`, userID, n)
		if err != nil {
			return fmt.Errorf("select release ids: %w", err)
		}
		var last int64
		for rows.Next() {
			var id string
			if err := rows.Scan(&id, &last); err != nil {
				rows.Close()
				return err
			}
			taken = append(taken, id)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM release_ids WHERE user_id=$1 AND position <= $2`, userID, last); err != nil {
			return fmt.Errorf("delete released ids: %w", err)
		}
		remaining = total - len(taken)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, 0, err
	}
	telemetry.SetSpanSuccess(span)
	return taken, remaining, nil
}
