// README: DB-backed tests for account lookup (not-found, single, ambiguous).
package identity

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"antar/internal/types"
)

func setupTestAccountStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("ANTAR_TEST_DSN")
	if dsn == "" {
		t.Skip("ANTAR_TEST_DSN not set; skipping DB-backed identity tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyAccountMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE accounts"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	return NewStore(db)
}

func seedAccount(t *testing.T, store *Store, id, key string, role types.Role) {
	t.Helper()
	_, err := store.db.Exec(context.Background(), `
        INSERT INTO accounts (account_id, human_key, role, name)
        VALUES ($1, $2, $3, $4)`,
		id, key, string(role), "test "+key)
	if err != nil {
		t.Fatalf("seed account %s: %v", key, err)
	}
}

func TestFindByHumanKeyAgainstPostgres(t *testing.T) {
	store := setupTestAccountStore(t)
	ctx := context.Background()

	seedAccount(t, store, "acc-1", "STU001", types.RoleCustomer)
	seedAccount(t, store, "acc-2", "DRV001", types.RoleDriver)

	acct, err := store.FindByHumanKey(ctx, types.RoleCustomer, "STU001")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if acct.ID != "acc-1" {
		t.Errorf("expected acc-1, got %s", acct.ID)
	}

	// Same key under the other role is a different namespace.
	if _, err := store.FindByHumanKey(ctx, types.RoleDriver, "STU001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for driver STU001, got %v", err)
	}

	if _, err := store.FindByHumanKey(ctx, types.RoleCustomer, "GHOST"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByHumanKeyAmbiguous(t *testing.T) {
	store := setupTestAccountStore(t)
	ctx := context.Background()

	// Duplicate keys can exist in legacy data; the store must refuse to pick.
	seedAccount(t, store, "dup-1", "STU042", types.RoleCustomer)
	seedAccount(t, store, "dup-2", "STU042", types.RoleCustomer)

	if _, err := store.FindByHumanKey(ctx, types.RoleCustomer, "STU042"); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("expected ErrAmbiguous, got %v", err)
	}
}

func applyAccountMigration(ctx context.Context, db *pgxpool.Pool) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	for i := 0; i < 6; i++ {
		if _, statErr := os.Stat(filepath.Join(dir, "go.mod")); statErr == nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	content, err := os.ReadFile(filepath.Join(dir, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}

	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
