package persistence

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPendingMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_images.sql", "001_init.sql", "003_views.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "004_dir.sql"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := pendingMigrations(dir, map[string]bool{"001_init.sql": true})
	if err != nil {
		t.Fatalf("pendingMigrations: %v", err)
	}
	want := []string{"002_images.sql", "003_views.sql"}
	if len(got) != len(want) {
		t.Fatalf("pending = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pending = %v, want %v", got, want)
		}
	}

	none, err := pendingMigrations(dir, map[string]bool{"001_init.sql": true, "002_images.sql": true, "003_views.sql": true})
	if err != nil {
		t.Fatalf("pendingMigrations: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("pending after all applied = %v", none)
	}

	if _, err := pendingMigrations(filepath.Join(dir, "missing"), nil); err == nil {
		t.Errorf("missing dir err = nil")
	}
}
