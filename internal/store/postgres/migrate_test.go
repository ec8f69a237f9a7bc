package postgres

import (
	"strings"
	"testing"
	"testing/fstest"

	"bookingdesk/backend/migrations"
)

func TestExtractGooseUp(t *testing.T) {
	sql := "-- +goose Up\nCREATE TABLE a (id int);\n\n-- +goose Down\nDROP TABLE a;\n"
	up, err := extractGooseUp(sql)
	if err != nil {
		t.Fatalf("extractGooseUp error: %v", err)
	}
	if up != "CREATE TABLE a (id int);" {
		t.Fatalf("up = %q", up)
	}

	if _, err := extractGooseUp("CREATE TABLE a (id int);"); err == nil {
		t.Fatalf("expected error for missing up marker")
	}
}

func TestSplitSQLStatements(t *testing.T) {
	got := splitSQLStatements("-- header\nCREATE TABLE a (id int);\n\n  ;\nCREATE INDEX a_idx ON a (id);\n")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (id int)" || got[1] != "CREATE INDEX a_idx ON a (id)" {
		t.Fatalf("statements = %q", got)
	}
}

func TestLoadMigrations(t *testing.T) {
	files := fstest.MapFS{
		"0010_later.sql":  {Data: []byte("-- +goose Up\nSELECT 10;\n")},
		"0002_second.sql": {Data: []byte("-- +goose Up\nSELECT 2;\n-- +goose Down\nSELECT -2;\n")},
		"0001_first.sql":  {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		"README.md":       {Data: []byte("ignored")},
		"seed.sql":        {Data: []byte("ignored")},
	}

	migs, err := LoadMigrations(files)
	if err != nil {
		t.Fatalf("LoadMigrations error: %v", err)
	}
	if len(migs) != 3 {
		t.Fatalf("len = %d, want 3", len(migs))
	}
	for i, want := range []int{1, 2, 10} {
		if migs[i].Version != want {
			t.Fatalf("migs[%d].Version = %d, want %d", i, migs[i].Version, want)
		}
	}
	if len(migs[1].Up) != 1 || migs[1].Up[0] != "SELECT 2" {
		t.Fatalf("down section leaked into up: %q", migs[1].Up)
	}
}

func TestLoadMigrationsRejectsDuplicateVersions(t *testing.T) {
	files := fstest.MapFS{
		"0001_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		"001_b.sql":  {Data: []byte("-- +goose Up\nSELECT 1;\n")},
	}
	if _, err := LoadMigrations(files); err == nil {
		t.Fatalf("expected duplicate version error")
	}
}

func TestEmbeddedMigrationsDeclarePendingSlotIndex(t *testing.T) {
	migs, err := LoadMigrations(migrations.FS)
	if err != nil {
		t.Fatalf("LoadMigrations error: %v", err)
	}
	if len(migs) == 0 {
		t.Fatalf("no embedded migrations")
	}

	found := false
	for _, m := range migs {
		for _, stmt := range m.Up {
			if strings.Contains(stmt, pendingSlotConstraint) && strings.Contains(stmt, "WHERE status = 'PENDING'") {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("partial unique index %s not found in migrations", pendingSlotConstraint)
	}
}
