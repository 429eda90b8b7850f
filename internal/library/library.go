// Package library stores named CEL expressions in a SQLite database.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sandrolain/gocel/pkg/parser"
)

var (
	// ErrNotFound is returned when no expression has the requested name.
	ErrNotFound = errors.New("expression not found")
	// ErrExists is returned when an expression with the name already exists.
	ErrExists = errors.New("expression already exists")
)

const schema = `
CREATE TABLE IF NOT EXISTS expressions (
	name        TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	expression  TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
)`

// Entry is a saved expression.
type Entry struct {
	Name        string
	Description string
	Expression  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Library is a saved-expression store. It is safe for concurrent use.
type Library struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the library database at path. Use
// ":memory:" for a throwaway store.
func Open(path string) (*Library, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("library: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("library: open %s: %w", path, err)
	}
	// ":memory:" databases live per connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("library: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("library: create schema: %w", err)
	}
	return &Library{db: db, now: time.Now}, nil
}

// Close releases the database.
func (l *Library) Close() error {
	return l.db.Close()
}

func validate(e Entry) error {
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("library: name must not be empty")
	}
	if strings.ContainsAny(e.Name, " \t\n") {
		return fmt.Errorf("library: name %q must not contain white space", e.Name)
	}
	if _, err := parser.Compile(e.Expression); err != nil {
		return fmt.Errorf("library: expression %q: %w", e.Name, err)
	}
	return nil
}

func isConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Add saves a new expression. The expression must compile.
func (l *Library) Add(ctx context.Context, e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	ts := l.now().UnixNano()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO expressions (name, description, expression, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		e.Name, e.Description, e.Expression, ts, ts)
	if isConstraint(err) {
		return fmt.Errorf("%w: %s", ErrExists, e.Name)
	}
	if err != nil {
		return fmt.Errorf("library: add %s: %w", e.Name, err)
	}
	return nil
}

func scanEntry(row interface{ Scan(...any) error }) (Entry, error) {
	var e Entry
	var created, updated int64
	if err := row.Scan(&e.Name, &e.Description, &e.Expression, &created, &updated); err != nil {
		return Entry{}, err
	}
	e.CreatedAt = time.Unix(0, created).UTC()
	e.UpdatedAt = time.Unix(0, updated).UTC()
	return e, nil
}

// Get returns the expression saved under name.
func (l *Library) Get(ctx context.Context, name string) (Entry, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT name, description, expression, created_at, updated_at FROM expressions WHERE name = ?`, name)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("library: get %s: %w", name, err)
	}
	return e, nil
}

// List returns every saved expression ordered by name.
func (l *Library) List(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT name, description, expression, created_at, updated_at FROM expressions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("library: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("library: list: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Update replaces the expression saved under name with e, renaming it when
// e.Name differs. The creation time is kept.
func (l *Library) Update(ctx context.Context, name string, e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE expressions SET name = ?, description = ?, expression = ?, updated_at = ? WHERE name = ?`,
		e.Name, e.Description, e.Expression, l.now().UnixNano(), name)
	if isConstraint(err) {
		return fmt.Errorf("%w: %s", ErrExists, e.Name)
	}
	if err != nil {
		return fmt.Errorf("library: update %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// Remove deletes the expression saved under name.
func (l *Library) Remove(ctx context.Context, name string) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM expressions WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("library: remove %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}
