// Package sqlite - database migrations
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is a single monotone schema step. Steps are keyed by
// PRAGMA user_version: a database at version N runs every step with
// Version > N, in order, and ends at the last step's version.
type Migration struct {
	Version int
	Name    string
	Func    func(ctx context.Context, conn *sql.Conn) error
}

var migrationsList = []Migration{
	{1, "core_tables_and_fts", migrateV1},
	{2, "groups_and_failures", migrateV2},
}

// SchemaVersion is the user_version a fully migrated database reports.
const SchemaVersion = 2

// RunMigrations brings the database schema up to SchemaVersion.
// Each pending step runs inside BEGIN IMMEDIATE so concurrent openers
// serialize on the write lock instead of racing check-then-create.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire migration connection: %w", err)
	}
	defer conn.Close()

	var current int
	if err := conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read user_version: %w", err)
	}

	for _, migration := range migrationsList {
		if migration.Version <= current {
			continue
		}
		if err := runMigration(ctx, conn, migration); err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.Name, err)
		}
		current = migration.Version
	}
	return nil
}

func runMigration(ctx context.Context, conn *sql.Conn, m Migration) error {
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
		}
	}()

	if err := m.Func(ctx, conn); err != nil {
		return err
	}

	// user_version lives in the database header and rolls back with the
	// transaction, so a failed step leaves the version untouched.
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("failed to stamp user_version: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	committed = true
	return nil
}

func migrateV1(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, schemaV1)
	return err
}

func migrateV2(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, schemaV2)
	return err
}
