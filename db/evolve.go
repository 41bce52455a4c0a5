package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/onnwee/dexkeeper/telemetry"
)

// MaxEvolveUses is how many evolutions an id is good for when added without --once.
const MaxEvolveUses = 2

// EvolveEntry is one id on an evolve list with its remaining uses.
type EvolveEntry struct {
	ID   string
	Uses int
}

// EvolveStore persists each user's evolve list. Ids with more uses left are
// handed out first.
type EvolveStore struct {
	DB *sql.DB
}

// NewEvolveStore returns a store over an already migrated database.
func NewEvolveStore(dbx *sql.DB) *EvolveStore { return &EvolveStore{DB: dbx} }

// Add inserts ids not already on the list with the given uses (1 or 2).
func (s *EvolveStore) Add(ctx context.Context, userID string, ids []string, uses int) (added, total int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "db", "evolve.add", telemetry.UserAttr(userID))
	defer span.End()
	defer telemetry.ListOp("evolve", "add")

	if uses < 1 || uses > MaxEvolveUses {
		return 0, 0, fmt.Errorf("evolve uses must be 1 or %d, got %d", MaxEvolveUses, uses)
	}
	err = inTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := lockList(ctx, tx, evolveTable, userID); err != nil {
			return err
		}
		for _, id := range dedupe(ids) {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO evolve_ids(user_id, pokemon_id, uses) VALUES($1,$2,$3) ON CONFLICT (user_id, pokemon_id) DO NOTHING`,
				userID, id, uses)
			if err != nil {
				return fmt.Errorf("insert evolve id: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				added++
			}
		}
		return countList(ctx, tx, evolveTable, userID, &total)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, 0, err
	}
	return added, total, nil
}

// Remove deletes the given ids. With once set, each matching id loses one use
// instead and is deleted only when that was its last. An empty list yields
// ErrEmptyList.
func (s *EvolveStore) Remove(ctx context.Context, userID string, ids []string, once bool) (removed, remaining int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "db", "evolve.remove", telemetry.UserAttr(userID))
	defer span.End()
	defer telemetry.ListOp("evolve", "remove")

	err = inTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := lockList(ctx, tx, evolveTable, userID); err != nil {
			return err
		}
		var before int
		if err := countList(ctx, tx, evolveTable, userID, &before); err != nil {
			return err
		}
		if before == 0 {
			return ErrEmptyList
		}
		for _, id := range dedupe(ids) {
			n, err := s.removeOne(ctx, tx, userID, id, once)
			if err != nil {
				return err
			}
			removed += n
		}
		return countList(ctx, tx, evolveTable, userID, &remaining)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, 0, err
	}
	return removed, remaining, nil
}

func (s *EvolveStore) removeOne(ctx context.Context, tx *sql.Tx, userID, id string, once bool) (int, error) {
	if once {
		res, err := tx.ExecContext(ctx,
			`UPDATE evolve_ids SET uses = uses - 1 WHERE user_id=$1 AND pokemon_id=$2 AND uses > 1`, userID, id)
		if err != nil {
			return 0, fmt.Errorf("decrement evolve id: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return 1, nil
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM evolve_ids WHERE user_id=$1 AND pokemon_id=$2`, userID, id)
	if err != nil {
		return 0, fmt.Errorf("delete evolve id: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Clear drops the whole list and returns how many ids it held.
func (s *EvolveStore) Clear(ctx context.Context, userID string) (int, error) {
	defer telemetry.ListOp("evolve", "clear")
	res, err := s.DB.ExecContext(ctx, `DELETE FROM evolve_ids WHERE user_id=$1`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear evolve list: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// List returns the entries in insertion order.
func (s *EvolveStore) List(ctx context.Context, userID string) ([]EvolveEntry, error) {
	defer telemetry.ListOp("evolve", "list")
	rows, err := s.DB.QueryContext(ctx, `SELECT pokemon_id, uses FROM evolve_ids WHERE user_id=$1 ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("list evolve ids: %w", err)
	}
	defer rows.Close()
	var out []EvolveEntry
	for rows.Next() {
		var e EvolveEntry
		if err := rows.Scan(&e.ID, &e.Uses); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Take hands out n ids, most uses first then oldest first. Each taken id
// loses one use; a decremented id moves to the back of its group, and ids
// on their last use are deleted. remaining counts the ids left on the list.
func (s *EvolveStore) Take(ctx context.Context, userID string, n int) (taken []string, remaining int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "db", "evolve.take", telemetry.UserAttr(userID))
	defer span.End()
	defer telemetry.ListOp("evolve", "take")

	if n <= 0 {
		return nil, 0, fmt.Errorf("evolve count must be positive, got %d", n)
	}
	err = inTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := lockList(ctx, tx, evolveTable, userID); err != nil {
			return err
		}
		var total int
		if err := countList(ctx, tx, evolveTable, userID, &total); err != nil {
			return err
		}
		if total == 0 {
			return ErrEmptyList
		}
		if n > total {
			return &InsufficientError{Requested: n, Available: total}
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT pokemon_id FROM evolve_ids WHERE user_id=$1 ORDER BY uses DESC, position LIMIT $2`, userID, n)
		if err != nil {
			return fmt.Errorf("select evolve ids: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			taken = append(taken, id)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		for _, id := range taken {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM evolve_ids WHERE user_id=$1 AND pokemon_id=$2 AND uses <= 1`, userID, id); err != nil {
				return fmt.Errorf("delete evolved id: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE evolve_ids SET uses = uses - 1, position = nextval(pg_get_serial_sequence('evolve_ids', 'position'))
				 WHERE user_id=$1 AND pokemon_id=$2`, userID, id); err != nil {
				return fmt.Errorf("decrement evolved id: %w", err)
			}
		}
		return countList(ctx, tx, evolveTable, userID, &remaining)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, 0, err
	}
	telemetry.SetSpanSuccess(span)
	return taken, remaining, nil
}
