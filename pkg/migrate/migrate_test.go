package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/edurewards/edurewards-backend/pkg/migrate"
)

func TestRedemptionMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_redemptions.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no redemptions migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS redemptions",
		"CHECK (expiry_ms > timestamp_ms)",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_redemptions_token",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_redemptions_code",
		"DROP TABLE IF EXISTS redemptions",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Verifier Index")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_verifier_index.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestRunEmbeddedAgainstSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_test?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	defer sqlDB.Close()

	ctx := context.Background()
	if err := migrate.RunEmbedded(ctx, sqlDB, migrate.DialectFor(true), "up"); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	insert := `INSERT INTO redemptions (id, student_id, product_id, product_name, coins_redeemed, timestamp_ms, expiry_ms, one_time_token, redemption_code, status, created_at, updated_at)
VALUES (?, 's', 'p', 'n', 1, 1, 2, ?, ?, 'pending', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
	if _, err := sqlDB.ExecContext(ctx, insert, "id-1", "tok-1", "EDU-AAA-0001"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := sqlDB.ExecContext(ctx, insert, "id-2", "tok-2", "EDU-AAA-0001"); err == nil {
		t.Fatal("expected duplicate redemption code to be rejected")
	}
	if _, err := sqlDB.ExecContext(ctx, `UPDATE redemptions SET verifier_id = 'teacher-1' WHERE id = 'id-1'`); err != nil {
		t.Fatalf("audit columns missing: %v", err)
	}
	if _, err := sqlDB.ExecContext(ctx, `UPDATE redemptions SET status = 'lost' WHERE id = 'id-1'`); err == nil {
		t.Fatal("expected status check constraint")
	}

	if err := migrate.RunEmbedded(ctx, sqlDB, migrate.DialectSQLite, "down-to", "0"); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
}

func TestDialectFor(t *testing.T) {
	if migrate.DialectFor(false) != migrate.DialectPostgres || migrate.DialectFor(true) != migrate.DialectSQLite {
		t.Fatal("unexpected dialect mapping")
	}
}
