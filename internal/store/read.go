package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/queryir"
)

// Fetch returns the records matching req.
// Results are ordered deterministically: ORDER BY <sort>, seq ASC, id COLLATE BINARY ASC.
//
// With req.BatchSize > 0 the rows are read in pages of that size inside one
// read transaction, so paging never observes a concurrent commit.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Fetch(ctx context.Context, req queryir.FetchRequest) ([]ir.Record, error) {
	if req.BatchSize <= 0 {
		sqlText, params, err := s.compiler.Compile(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", req.Entity, err)
		}
		records, _, err := s.queryRecords(ctx, s.db, sqlText, params)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", req.Entity, err)
		}
		return records, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: begin: %w", req.Entity, err)
	}
	defer tx.Rollback()

	records := []ir.Record{}
	for offset := 0; ; offset += req.BatchSize {
		sqlText, params, ok, err := s.compiler.CompileBatch(req, offset, req.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", req.Entity, err)
		}
		if !ok {
			break
		}
		page, n, err := s.queryRecords(ctx, tx, sqlText, params)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: batch at %d: %w", req.Entity, offset, err)
		}
		records = append(records, page...)
		if n < req.BatchSize {
			break
		}
	}

	return records, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryRecords runs one compiled query and returns its records and row count.
func (s *Store) queryRecords(ctx context.Context, q querier, sqlText string, params []any) ([]ir.Record, int, error) {
	rows, err := q.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, 0, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	records := []ir.Record{}
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate objects: %w", err)
	}

	return records, len(records), nil
}

func (s *Store) scanRecord(rows *sql.Rows) (ir.Record, error) {
	var (
		rec  ir.Record
		id   string
		data sql.NullString
	)
	if err := rows.Scan(&id, &rec.Entity, &rec.Seq, &data); err != nil {
		return ir.Record{}, fmt.Errorf("scan object: %w", err)
	}
	rec.ID = ir.ObjectID(id)

	if data.Valid {
		values, err := s.unmarshalValues(rec.Entity, data.String)
		if err != nil {
			return ir.Record{}, fmt.Errorf("object %s: %w", id, err)
		}
		rec.Values = values
	}
	return rec, nil
}
