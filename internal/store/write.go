package store

import (
	"context"
	"fmt"
)

// Commit applies a change set in one transaction: inserts, then updates,
// then deletes. Any failure rolls the whole set back.
//
// Updates are JSON merge patches: attributes in the patch overwrite stored
// ones, a Null attribute removes the key (which reads back as Null).
// Deleting a record that does not exist is not an error; updating one is
// (ErrNotFound).
func (s *Store) Commit(ctx context.Context, cs ChangeSet) error {
	if cs.IsEmpty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit: begin: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range cs.Inserts {
		data, err := marshalValues(rec.Values)
		if err != nil {
			return fmt.Errorf("insert %s %s: %w", rec.Entity, rec.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO objects (id, entity, seq, data)
			VALUES (?, ?, ?, ?)
		`, string(rec.ID), rec.Entity, rec.Seq, data)
		if err != nil {
			return fmt.Errorf("insert %s %s: %w", rec.Entity, rec.ID, err)
		}
	}

	for _, u := range cs.Updates {
		patch, err := marshalPatch(u.Patch)
		if err != nil {
			return fmt.Errorf("update %s %s: %w", u.Entity, u.ID, err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE objects SET data = json_patch(data, ?)
			WHERE id = ? AND entity = ?
		`, patch, string(u.ID), u.Entity)
		if err != nil {
			return fmt.Errorf("update %s %s: %w", u.Entity, u.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update %s %s: %w", u.Entity, u.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("update %s %s: %w", u.Entity, u.ID, ErrNotFound)
		}
	}

	for _, d := range cs.Deletes {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM objects WHERE id = ? AND entity = ?
		`, string(d.ID), d.Entity); err != nil {
			return fmt.Errorf("delete %s %s: %w", d.Entity, d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
