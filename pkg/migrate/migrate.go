// Package migrate applies numbered SQL files from an fs.FS and records them
// in a bookkeeping table.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

const defaultTable = "schema_migrations"

// ErrNothingApplied is returned by Down when no migration has been applied.
var ErrNothingApplied = errors.New("no migrations applied")

// Manager runs migrations against a database.
type Manager struct {
	db    *sqlx.DB
	files fs.FS
	table string
}

// NewManager constructs a Manager reading *.up.sql and *.down.sql from files.
func NewManager(db *sqlx.DB, files fs.FS) *Manager {
	return &Manager{db: db, files: files, table: defaultTable}
}

// Up applies every pending migration in name order and returns the names applied.
func (m *Manager) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	executed := make(map[string]bool, len(done))
	for _, name := range done {
		executed[name] = true
	}

	names, err := fs.Glob(m.files, "*.up.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var applied []string
	for _, name := range names {
		if executed[name] {
			continue
		}
		if err := m.apply(ctx, name, fmt.Sprintf(`INSERT INTO %s (name) VALUES ($1)`, m.table)); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", name, err)
		}
		applied = append(applied, name)
	}
	return applied, nil
}

// Down rolls back the most recently applied migration and returns its name.
func (m *Manager) Down(ctx context.Context) (string, error) {
	done, err := m.Status(ctx)
	if err != nil {
		return "", err
	}
	if len(done) == 0 {
		return "", ErrNothingApplied
	}
	last := done[len(done)-1]
	downName := strings.TrimSuffix(last, ".up.sql") + ".down.sql"
	if _, err := fs.Stat(m.files, downName); err != nil {
		return "", fmt.Errorf("missing down migration for %s", last)
	}
	if err := m.applyFile(ctx, downName, last, fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, m.table)); err != nil {
		return "", fmt.Errorf("rollback migration %s: %w", last, err)
	}
	return last, nil
}

// Status lists applied migrations in the order they were applied.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	var names []string
	query := fmt.Sprintf(`SELECT name FROM %s ORDER BY applied_at ASC, name ASC`, m.table)
	if err := m.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return names, nil
}

func (m *Manager) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`, m.table)
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure %s: %w", m.table, err)
	}
	return nil
}

func (m *Manager) apply(ctx context.Context, name, record string) error {
	return m.applyFile(ctx, name, name, record)
}

// applyFile runs the SQL in file and the bookkeeping statement for name in
// one transaction.
func (m *Manager) applyFile(ctx context.Context, file, name, record string) error {
	body, err := fs.ReadFile(m.files, file)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, record, name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
