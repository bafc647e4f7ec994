// Package testdb connects integration tests to a real Postgres.
package testdb

import (
	"context"
	"os"
	"testing"

	"nomadHubAPI/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestEmailDomain marks rows owned by integration tests.
const TestEmailDomain = "@integration.test"

// SetupTestDB connects to TEST_DATABASE_URL and applies migrations. The test
// is skipped when the variable is unset.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if _, err := db.ApplyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { CleanupTestDB(t, pool) })
	return pool
}

// CleanupTestDB removes test subscribers and their payments, then closes the pool.
func CleanupTestDB(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	_, err := pool.Exec(ctx, `
		DELETE FROM payments
		WHERE metadata->>'email' LIKE '%' || $1
		   OR subscriber_id IN (SELECT id FROM subscribers WHERE email LIKE '%' || $1)
	`, TestEmailDomain)
	if err != nil {
		t.Logf("Warning: failed to cleanup payments: %v", err)
	}
	_, err = pool.Exec(ctx, `DELETE FROM subscribers WHERE email LIKE '%' || $1`, TestEmailDomain)
	if err != nil {
		t.Logf("Warning: failed to cleanup subscribers: %v", err)
	}
	pool.Close()
}
