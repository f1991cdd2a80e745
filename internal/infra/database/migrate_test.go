package database

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/arklim/account-auth/internal/infra/config"
	"github.com/arklim/account-auth/internal/infra/database/migrations"
)

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected embedded migrations")
	}

	raw, err := fs.ReadFile(migrations.FS, entries[0])
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	body := string(raw)
	for _, fragment := range []string{"-- +goose Up", "-- +goose Down", "lower(username)", "ON DELETE CASCADE"} {
		if !strings.Contains(body, fragment) {
			t.Fatalf("migration %s missing %q", entries[0], fragment)
		}
	}
}

func TestEmailIndexIsUnique(t *testing.T) {
	raw, err := fs.ReadFile(migrations.FS, "00002_unique_email.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if !strings.Contains(string(raw), "CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_key ON users (lower(email))") {
		t.Fatalf("expected unique lower(email) index, got:\n%s", raw)
	}
}

func TestRunMigrationsUsesEmbeddedRoot(t *testing.T) {
	orig := gooseUp
	defer func() { gooseUp = orig }()

	var gotDir string
	gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}

	if err := runMigrations(context.Background(), nil); err != nil {
		t.Fatalf("runMigrations returned error: %v", err)
	}
	if gotDir != "." {
		t.Fatalf("expected embedded root, got %q", gotDir)
	}
}

func TestRunMigrationsWrapsError(t *testing.T) {
	orig := gooseUp
	defer func() { gooseUp = orig }()

	boom := errors.New("boom")
	gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
		return boom
	}

	if err := runMigrations(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestSchemaNameDefault(t *testing.T) {
	if got := schemaName(config.PostgresSettings{}); got != "auth" {
		t.Fatalf("expected default schema auth, got %q", got)
	}
	if got := schemaName(config.PostgresSettings{Schema: "accounts"}); got != "accounts" {
		t.Fatalf("expected configured schema, got %q", got)
	}
}
