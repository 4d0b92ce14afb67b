package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional write did not apply, e.g. a
// stock decrement larger than the remaining quantity.
var ErrConflict = errors.New("conflict")

// Store implements the product, order and user repositories on database/sql.
// The driver name selects the placeholder dialect.
type Store struct {
	db     *sql.DB
	driver string
}

func New(db *sql.DB, driver string) *Store {
	if driver == "" {
		driver = "sqlite"
	}
	return &Store{db: db, driver: driver}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ph(i int) string {
	if strings.Contains(s.driver, "pgx") || strings.Contains(s.driver, "postgres") {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// insertIgnore returns the prefix and suffix of an INSERT that skips rows
// colliding with an existing key.
func (s *Store) insertIgnore() (string, string) {
	if s.driver == "mysql" {
		return "INSERT IGNORE INTO ", ""
	}
	return "INSERT INTO ", " ON CONFLICT DO NOTHING"
}

// args collects query arguments and hands out matching placeholders.
type args struct {
	s    *Store
	vals []any
}

func (s *Store) newArgs() *args { return &args{s: s} }

func (a *args) add(v any) string {
	a.vals = append(a.vals, v)
	return a.s.ph(len(a.vals))
}

func (a *args) list(vs []string) string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = a.add(v)
	}
	return strings.Join(out, ",")
}

// ClampPage applies the default page size of 50 and the maximum of 200.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
