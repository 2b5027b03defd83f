// Package pgstore provides a Postgres-backed document store. Documents live
// in a single JSONB table; Update takes a row lock so concurrent mutations of
// the same document serialize instead of losing writes.
package pgstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kehilla-app/accounts/docstore"
)

type Store struct {
	pg *pgxpool.Pool
}

func New(pg *pgxpool.Pool) *Store {
	return &Store{pg: pg}
}

// Migrate creates the documents table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pg.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection text NOT NULL,
			id         text NOT NULL,
			data       jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)
	`)
	return err
}

func (s *Store) Get(ctx context.Context, collection, id string) ([]byte, bool, error) {
	var data []byte
	err := s.pg.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, doc []byte) error {
	_, err := s.pg.Exec(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, collection, id, doc)
	return err
}

func (s *Store) Update(ctx context.Context, collection, id string, fn docstore.UpdateFunc) error {
	tx, err := s.pg.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var current []byte
	found := true
	err = tx.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		current, found = nil, false
	} else if err != nil {
		return err
	}

	next, err := fn(current, found)
	if errors.Is(err, docstore.ErrUnchanged) {
		return tx.Commit(ctx)
	}
	if err != nil {
		return err
	}
	if next == nil {
		if _, err := tx.Exec(ctx,
			`DELETE FROM documents WHERE collection = $1 AND id = $2`,
			collection, id,
		); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, collection, id, next); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.pg.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	return err
}

func (s *Store) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	rows, err := s.pg.Query(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 ORDER BY id`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []docstore.Document
	for rows.Next() {
		var d docstore.Document
		if err := rows.Scan(&d.ID, &d.Data); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.pg.QueryRow(ctx,
		`SELECT count(*) FROM documents WHERE collection = $1`,
		collection,
	).Scan(&n)
	return n, err
}
