package sqlite_test

import (
	"database/sql"
	"testing"

	"github.com/matiasleandrokruk/macrometer/internal/infra/sqlite"
)

func TestMigrate_RunsAllMigrations(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v; want nil", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("SELECT COUNT(*) FROM schema_migrations error = %v", err)
	}
	if count == 0 {
		t.Error("schema_migrations has 0 rows after MigrateUp; want > 0")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() first run error = %v; want nil", err)
	}
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() second run error = %v; want nil (idempotent)", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count error = %v", err)
	}
	if count != 1 {
		t.Errorf("schema_migrations rows = %d after two runs; want 1", count)
	}
}

func TestMigrate_NutritionCacheTableCreated(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	assertTableExists(t, db, "nutrition_cache")
}

func TestMigrationVersion_FreshDB_IsZero(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	v, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if v != 0 {
		t.Errorf("MigrationVersion() = %d on fresh DB; want 0", v)
	}
}

func TestMigrationVersion_AfterMigrate(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	v, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if v != 1 {
		t.Errorf("MigrationVersion() = %d; want 1", v)
	}
}

func assertTableExists(t *testing.T, db *sql.DB, table string) {
	t.Helper()
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	if err != nil {
		t.Fatalf("table %q not found: %v", table, err)
	}
}
