// Package schematest opens migrated in-memory SQLite databases for tests.
package schematest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/JaimeStill/tawarruq/internal/schema"
	"github.com/JaimeStill/tawarruq/pkg/database"
)

// Open returns a private in-memory SQLite database with all migrations applied.
// The database is closed when the test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open(database.DriverSQLite, "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	t.Cleanup(func() { db.Close() })

	if err := schema.Migrate(context.Background(), db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}

// InsertTransaction writes a PENDING transaction row with the given reference
// and returns its id. It does not create stage records.
func InsertTransaction(t testing.TB, db *sql.DB, reference string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	now := time.Now().UTC()

	_, err := db.Exec(
		`INSERT INTO transactions(id, reference, customer_name, customer_id, commodity_type, amount, currency, status, shariah_status, violation_count, created_at, updated_at)
		VALUES ($1, $2, 'Test Customer', 'CUST-001', 'CPO', '100000', 'MYR', 'PENDING', 'PENDING_REVIEW', 0, $3, $3)`,
		id, reference, now,
	)
	if err != nil {
		t.Fatalf("insert transaction: %v", err)
	}

	return id
}
