package db

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// testDSN mirrors testutil.PostgresDSN, which this package cannot import.
func testDSN(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("DEXKEEPER_TEST_PG_DSN"); dsn != "" {
		return dsn
	}
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("no list database configured (DEXKEEPER_TEST_PG_DSN or TEST_PG_DSN)")
	}
	return dsn
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := testDSN(t)
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRow(`SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_name = $1
	)`, table).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check table %s: %v", table, err)
	}
	return exists
}

// TestRunMigrations tests that migrations can be applied to an empty database
func TestRunMigrations(t *testing.T) {
	db := openTestDB(t)
	cleanDatabase(t, context.Background(), db)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	for _, table := range []string{"release_ids", "evolve_ids"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s does not exist after migration", table)
		}
	}

	version, dirty, err := GetMigrationVersion(db)
	if err != nil {
		t.Fatalf("GetMigrationVersion() error = %v", err)
	}
	if dirty {
		t.Errorf("migration version is dirty")
	}
	if version < 2 {
		t.Errorf("migration version = %d, want >= 2", version)
	}
}

// TestMigrationsIdempotent tests that running migrations multiple times is safe
func TestMigrationsIdempotent(t *testing.T) {
	db := openTestDB(t)
	cleanDatabase(t, context.Background(), db)

	for i := 0; i < 3; i++ {
		if err := RunMigrations(db); err != nil {
			t.Fatalf("RunMigrations() run %d error = %v", i+1, err)
		}
	}
}

func TestMigrationUpDown(t *testing.T) {
	db := openTestDB(t)
	cleanDatabase(t, context.Background(), db)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if err := MigrateDown(db); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	for _, table := range []string{"release_ids", "evolve_ids"} {
		if tableExists(t, db, table) {
			t.Errorf("%s still exists after rollback", table)
		}
	}
	version, _, err := GetMigrationVersion(db)
	if err != nil {
		t.Fatalf("GetMigrationVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("version after full rollback = %d, want 0", version)
	}

	// Re-apply so later tests see a migrated schema.
	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() after rollback error = %v", err)
	}
}

// cleanDatabase drops all tables and the schema_migrations table to start fresh
func cleanDatabase(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()

	statements := []string{
		`DROP TABLE IF EXISTS release_ids CASCADE`,
		`DROP TABLE IF EXISTS evolve_ids CASCADE`,
		`DROP TABLE IF EXISTS schema_migrations CASCADE`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Logf("warning: clean database statement failed (may be expected): %v", err)
		}
	}
}
