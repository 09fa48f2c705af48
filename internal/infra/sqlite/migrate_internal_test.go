package sqlite

import (
	"testing"
	"testing/fstest"
)

func TestVersionFromFilename(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		want   int
		wantOK bool
	}{
		{"001_nutrition_cache.up.sql", 1, true},
		{"042_add_index.up.sql", 42, true},
		{"nutrition_cache.up.sql", 0, false},
		{"000_zero.up.sql", 0, false},
	}
	for _, tc := range cases {
		got, ok := versionFromFilename(tc.name)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("versionFromFilename(%q) = (%d, %v); want (%d, %v)", tc.name, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestLoadMigrationFiles_SortsByVersion(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/010_later.up.sql":    {Data: []byte("SELECT 10;")},
		"migrations/002_second.up.sql":   {Data: []byte("SELECT 2;")},
		"migrations/002_second.down.sql": {Data: []byte("SELECT -2;")},
	}

	files, err := loadMigrationFiles(fsys)
	if err != nil {
		t.Fatalf("loadMigrationFiles error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 up migrations, got %d", len(files))
	}
	if files[0].version != 2 || files[1].version != 10 {
		t.Errorf("unexpected order: %d, %d", files[0].version, files[1].version)
	}
}

func TestLoadMigrationFiles_MissingPrefix_ReturnsError(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/cache.up.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := loadMigrationFiles(fsys); err == nil {
		t.Error("expected error for migration without version prefix")
	}
}
