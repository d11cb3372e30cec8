package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	tenancy "github.com/goliatone/go-tenancy"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		if label != SourceLabel {
			t.Fatalf("expected source label %q, got %q", SourceLabel, label)
		}
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestCoreSchemaMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := tenancy.GetCoreMigrationsFS()
	paths := []string{
		"data/sql/migrations/20260301000000_create_tenancy_core.up.sql",
		"data/sql/migrations/20260301000000_create_tenancy_core.down.sql",
		"data/sql/migrations/sqlite/20260301000000_create_tenancy_core.up.sql",
		"data/sql/migrations/sqlite/20260301000000_create_tenancy_core.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteCoreSchemaMigration_EnforcesAdmissionIndexes(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-admission-test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	db.SetMaxOpenConns(1)
	defer func() { _ = db.Close() }()

	root := tenancy.GetCoreMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	if err := execSQLMigration(context.Background(), db, sqliteMigrations, "20260301000000_create_tenancy_core.up.sql"); err != nil {
		t.Fatalf("apply core schema up: %v", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO resources (id, tenant_id, name, resource_type, slot_rule)
		VALUES ('res_1', 'tenant_1', 'Court A', 'court', '{}')
	`); err != nil {
		t.Fatalf("insert resource: %v", err)
	}

	insertBooking := `
		INSERT INTO bookings (
			id, resource_id, tenant_id, user_id,
			start_at, end_at, status,
			verification_code, idempotency_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(ctx, insertBooking,
		"bk_1", "res_1", "tenant_1", "user_1",
		"2026-03-02T10:00:00Z", "2026-03-02T10:30:00Z", "CONFIRMED",
		"AAAA1111", "key-1",
	); err != nil {
		t.Fatalf("insert confirmed booking: %v", err)
	}

	// Second CONFIRMED row over the same interval hits the admitted-set index.
	if _, err := db.ExecContext(ctx, insertBooking,
		"bk_2", "res_1", "tenant_1", "user_2",
		"2026-03-02T10:00:00Z", "2026-03-02T10:30:00Z", "CONFIRMED",
		"BBBB2222", "key-2",
	); err == nil {
		t.Fatalf("expected admitted-set unique violation")
	}

	// A PENDING row over the same interval is allowed.
	if _, err := db.ExecContext(ctx, insertBooking,
		"bk_3", "res_1", "tenant_1", "user_3",
		"2026-03-02T10:00:00Z", "2026-03-02T10:30:00Z", "PENDING",
		"", "key-3",
	); err != nil {
		t.Fatalf("insert pending booking over confirmed interval: %v", err)
	}

	// Duplicate active verification code within the tenant is rejected.
	if _, err := db.ExecContext(ctx, insertBooking,
		"bk_4", "res_1", "tenant_1", "user_4",
		"2026-03-02T11:00:00Z", "2026-03-02T11:30:00Z", "CONFIRMED",
		"AAAA1111", "key-4",
	); err == nil {
		t.Fatalf("expected verification code unique violation")
	}

	// Duplicate idempotency key within the tenant is rejected regardless of status.
	if _, err := db.ExecContext(ctx, insertBooking,
		"bk_5", "res_1", "tenant_1", "user_5",
		"2026-03-02T12:00:00Z", "2026-03-02T12:30:00Z", "PENDING",
		"", "key-1",
	); err == nil {
		t.Fatalf("expected idempotency key unique violation")
	}

	if err := execSQLMigration(context.Background(), db, sqliteMigrations, "20260301000000_create_tenancy_core.down.sql"); err != nil {
		t.Fatalf("apply core schema down: %v", err)
	}
}

func TestSQLiteCoreSchemaMigration_SinglePublishedConfig(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-published-test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	db.SetMaxOpenConns(1)
	defer func() { _ = db.Close() }()

	root := tenancy.GetCoreMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	if err := execSQLMigration(context.Background(), db, sqliteMigrations, "20260301000000_create_tenancy_core.up.sql"); err != nil {
		t.Fatalf("apply core schema up: %v", err)
	}

	ctx := context.Background()
	insertConfig := `
		INSERT INTO tenant_module_configs (id, tenant_id, module_key, config, version, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(ctx, insertConfig, "cfg_1", "tenant_1", "bookings", "{}", 3, "published"); err != nil {
		t.Fatalf("insert published config: %v", err)
	}
	if _, err := db.ExecContext(ctx, insertConfig, "cfg_2", "tenant_1", "bookings", "{}", 4, "published"); err == nil {
		t.Fatalf("expected single-published unique violation")
	}
	if _, err := db.ExecContext(ctx, insertConfig, "cfg_3", "tenant_1", "bookings", "{}", 4, "archived"); err != nil {
		t.Fatalf("insert archived config alongside published: %v", err)
	}
	if _, err := db.ExecContext(ctx, insertConfig, "cfg_4", "tenant_2", "bookings", "{}", 1, "published"); err != nil {
		t.Fatalf("insert published config for other tenant: %v", err)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
