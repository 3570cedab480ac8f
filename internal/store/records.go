package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
)

// List returns every record of resource ordered by id. An unknown
// resource yields an empty slice.
func (s *Store) List(ctx context.Context, resource string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT body FROM records
		WHERE resource = ?
		ORDER BY id ASC
	`), resource)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", resource, err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("list %s: %w", resource, err)
		}
		rec, err := unmarshalRecord([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", resource, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", resource, err)
	}
	return out, nil
}

// Get returns one record or ErrNotFound.
func (s *Store) Get(ctx context.Context, resource string, id int64) (Record, error) {
	rec, err := s.get(ctx, s.db, resource, id)
	if err != nil {
		return nil, fmt.Errorf("get %s/%d: %w", resource, id, err)
	}
	return rec, nil
}

func (s *Store) get(ctx context.Context, q querier, resource string, id int64) (Record, error) {
	var body string
	err := s.queryRow(ctx, q, `SELECT body FROM records WHERE resource = ? AND id = ?`, resource, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return unmarshalRecord([]byte(body))
}

// Create stores rec as a new record. A record without an id gets the next
// free one (highest id + 1). Creating over an existing id is ErrConflict.
func (s *Store) Create(ctx context.Context, resource string, rec Record) (Record, error) {
	var created Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var id int64
		if raw, ok := rec["id"]; ok && raw != nil {
			parsed, err := ParseID(raw)
			if err != nil {
				return err
			}
			if _, err := s.get(ctx, tx, resource, parsed); err == nil {
				return ErrConflict
			} else if !errors.Is(err, ErrNotFound) {
				return err
			}
			id = parsed
		} else {
			if err := s.queryRow(ctx, tx, `SELECT COALESCE(MAX(id), 0) + 1 FROM records WHERE resource = ?`, resource).Scan(&id); err != nil {
				return err
			}
		}

		var err error
		created, err = s.write(ctx, tx, resource, id, rec)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", resource, err)
	}
	return created, nil
}

// Replace overwrites an existing record. The stored id always wins over
// an id in the body.
func (s *Store) Replace(ctx context.Context, resource string, id int64, rec Record) (Record, error) {
	var replaced Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.get(ctx, tx, resource, id); err != nil {
			return err
		}
		var err error
		replaced, err = s.write(ctx, tx, resource, id, rec)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("replace %s/%d: %w", resource, id, err)
	}
	return replaced, nil
}

// Patch merges the top-level fields of patch into an existing record.
func (s *Store) Patch(ctx context.Context, resource string, id int64, patch Record) (Record, error) {
	var patched Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := s.get(ctx, tx, resource, id)
		if err != nil {
			return err
		}
		maps.Copy(cur, patch)
		patched, err = s.write(ctx, tx, resource, id, cur)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("patch %s/%d: %w", resource, id, err)
	}
	return patched, nil
}

// Put creates or overwrites the record with rec's id.
func (s *Store) Put(ctx context.Context, resource string, rec Record) (Record, error) {
	id, err := ParseID(rec["id"])
	if err != nil {
		return nil, fmt.Errorf("put %s: %w", resource, err)
	}
	stored, err := s.write(ctx, s.db, resource, id, rec)
	if err != nil {
		return nil, fmt.Errorf("put %s/%d: %w", resource, id, err)
	}
	return stored, nil
}

// Delete removes a record, ErrNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, resource string, id int64) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM records WHERE resource = ? AND id = ?`, resource, id)
	if err != nil {
		return fmt.Errorf("delete %s/%d: %w", resource, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%d: %w", resource, id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s/%d: %w", resource, id, ErrNotFound)
	}
	return nil
}

// Resources returns the names of all resources holding records, sorted.
func (s *Store) Resources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT resource FROM records ORDER BY resource ASC`)
	if err != nil {
		return nil, fmt.Errorf("resources: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("resources: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// write upserts rec under id and returns it as stored.
func (s *Store) write(ctx context.Context, q querier, resource string, id int64, rec Record) (Record, error) {
	body := make(Record, len(rec)+1)
	maps.Copy(body, rec)
	body["id"] = id

	data, err := marshalCanonical(body)
	if err != nil {
		return nil, err
	}
	_, err = s.exec(ctx, q, `
		INSERT INTO records (resource, id, body) VALUES (?, ?, ?)
		ON CONFLICT (resource, id) DO UPDATE SET body = excluded.body
	`, resource, id, string(data))
	if err != nil {
		return nil, err
	}
	return unmarshalRecord(data)
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
