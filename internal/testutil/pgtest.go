// README: Shared Postgres fixture for DB-backed store tests; skips when PICKLEHEART_TEST_DSN is unset.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"pickleheart/internal/infra"
)

const dsnEnv = "PICKLEHEART_TEST_DSN"

// Postgres connects to the test database, applies migrations and empties
// every table. The pool is closed on test cleanup.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skip(dsnEnv + " not set; skipping DB-backed test")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	root, err := infra.RepoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	if err := infra.ApplyMigrations(ctx, db, filepath.Join(root, "migrations")); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE friendships, matching_preferences, presence, profiles, parks"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

// SeedPark inserts a park row; nil coordinates leave it ungeocoded.
func SeedPark(t *testing.T, db *pgxpool.Pool, id, name string, lat, lng *float64) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO parks (id, name, address, latitude, longitude) VALUES ($1, $2, $3, $4, $5)`,
		id, name, name+" address", lat, lng)
	if err != nil {
		t.Fatalf("seed park %s: %v", id, err)
	}
}

// SeedProfile inserts a profile row with only the sharing flag set.
func SeedProfile(t *testing.T, db *pgxpool.Pool, id string, sharing bool) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO profiles (id, display_name, location_sharing) VALUES ($1, $2, $3)`,
		id, "player "+id, sharing)
	if err != nil {
		t.Fatalf("seed profile %s: %v", id, err)
	}
}

func Float(v float64) *float64 { return &v }
