package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/onnwee/dexkeeper/db"
)

// PostgresDSN returns the DSN of the throwaway list database used by tests.
// DEXKEEPER_TEST_PG_DSN wins over the shared TEST_PG_DSN.
func PostgresDSN() string {
	if dsn := os.Getenv("DEXKEEPER_TEST_PG_DSN"); dsn != "" {
		return dsn
	}
	return os.Getenv("TEST_PG_DSN")
}

// SetupTestDB connects to the list database and applies the release and
// evolve migrations. Tests are skipped when no DSN is configured; callers
// delete the rows of the users they create.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := PostgresDSN()
	if dsn == "" {
		t.Skip("no list database configured (DEXKEEPER_TEST_PG_DSN or TEST_PG_DSN)")
	}
	database, err := db.Connect(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect list database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate list database: %v", err)
	}
	return database
}
