package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// migration is one versioned schema step. File naming follows
// golang-migrate: {version}_{name}.up.sql / {version}_{name}.down.sql.
// Every step must carry both directions so the log schema stays
// reversible.
type migration struct {
	version  string
	upFile   string
	downFile string
}

// Migrator applies the vault schema steps in version order and records
// them in public.vault_schema_migrations.
type Migrator struct {
	db            *sql.DB
	migrationsDir string
	logger        zerolog.Logger
}

func NewMigrator(db *sql.DB, migrationsDir string, logger zerolog.Logger) *Migrator {
	return &Migrator{db: db, migrationsDir: migrationsDir, logger: logger}
}

// Up applies every pending migration in version order.
func (m *Migrator) Up(ctx context.Context) error {
	steps, err := m.prepare(ctx)
	if err != nil {
		return err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("load applied versions: %w", err)
	}

	for _, step := range steps {
		if applied[step.version] {
			continue
		}
		record := recordStep{
			stmt: `INSERT INTO public.vault_schema_migrations (version, filename) VALUES ($1, $2)`,
			args: []any{step.version, step.upFile},
		}
		if err := m.execFile(ctx, step.upFile, record); err != nil {
			return err
		}
		m.logger.Info().Str("file", step.upFile).Msg("applied migration")
	}

	return nil
}

// Down rolls back the most recently applied migration, if any.
func (m *Migrator) Down(ctx context.Context) error {
	steps, err := m.prepare(ctx)
	if err != nil {
		return err
	}

	var latest string
	err = m.db.QueryRowContext(ctx,
		`SELECT version FROM public.vault_schema_migrations ORDER BY version DESC LIMIT 1`,
	).Scan(&latest)
	if err == sql.ErrNoRows {
		m.logger.Info().Msg("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load latest version: %w", err)
	}

	for _, step := range steps {
		if step.version != latest {
			continue
		}
		record := recordStep{
			stmt: `DELETE FROM public.vault_schema_migrations WHERE version = $1`,
			args: []any{step.version},
		}
		if err := m.execFile(ctx, step.downFile, record); err != nil {
			return err
		}
		m.logger.Info().Str("file", step.downFile).Msg("rolled back migration")
		return nil
	}

	return fmt.Errorf("applied version %s has no migration file on disk", latest)
}

// prepare ensures the record table exists and loads the on-disk steps.
func (m *Migrator) prepare(ctx context.Context) ([]migration, error) {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS public.vault_schema_migrations (
			version    TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}
	return m.loadSteps()
}

// loadSteps scans the migrations directory once and pairs each up file
// with its down counterpart. An up file without a down file is an
// error: the schema must stay walkable in both directions.
func (m *Migrator) loadSteps() ([]migration, error) {
	entries, err := os.ReadDir(m.migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	downs := make(map[string]string)
	var steps []migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".down.sql"):
			downs[migrationVersion(name)] = name
		case strings.HasSuffix(name, ".up.sql"):
			steps = append(steps, migration{version: migrationVersion(name), upFile: name})
		}
	}

	seen := make(map[string]bool, len(steps))
	for i := range steps {
		v := steps[i].version
		if seen[v] {
			return nil, fmt.Errorf("duplicate migration version %s", v)
		}
		seen[v] = true
		down, ok := downs[v]
		if !ok {
			return nil, fmt.Errorf("migration %s has no down file", steps[i].upFile)
		}
		steps[i].downFile = down
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM public.vault_schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// recordStep is the bookkeeping statement committed atomically with a
// migration file.
type recordStep struct {
	stmt string
	args []any
}

// execFile runs one migration file and its record statement in a single
// transaction.
func (m *Migrator) execFile(ctx context.Context, file string, record recordStep) error {
	content, err := os.ReadFile(filepath.Join(m.migrationsDir, file))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for %s: %w", file, err)
	}

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		tx.Rollback()
		return fmt.Errorf("exec migration %s: %w", file, err)
	}

	if _, err := tx.ExecContext(ctx, record.stmt, record.args...); err != nil {
		tx.Rollback()
		return fmt.Errorf("record migration %s: %w", file, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file, err)
	}
	return nil
}

// migrationVersion returns the numeric prefix of a migration filename,
// e.g. "000001_vault_log.up.sql" -> "000001".
func migrationVersion(filename string) string {
	if i := strings.IndexByte(filename, '_'); i > 0 {
		return filename[:i]
	}
	return filename
}
