package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	d := New("/tmp/docselect-test")
	if d.Root() != "/tmp/docselect-test" {
		t.Errorf("expected root /tmp/docselect-test, got %s", d.Root())
	}
}

func TestDefault(t *testing.T) {
	d, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if filepath.Base(d.Root()) != "docselect" {
		t.Errorf("expected root to end with 'docselect', got %s", d.Root())
	}
}

func TestPaths(t *testing.T) {
	d := New("/data")
	tests := []struct {
		name, got, want string
	}{
		{"schema", d.SchemaPath(), "/data/schema.json"},
		{"store", d.StorePath(), "/data/docs.db"},
		{"feeds", d.FeedDir(), "/data/feeds"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, tt.got, tt.want)
		}
	}
}

func TestEnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "docselect")
	d := New(root)
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory")
	}

	// Calling again should be idempotent.
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists (idempotent): %v", err)
	}
}

func TestInstanceID(t *testing.T) {
	d := New(t.TempDir())
	first, err := d.InstanceID()
	if err != nil {
		t.Fatal(err)
	}
	if first == "" {
		t.Fatal("empty instance id")
	}
	second, err := d.InstanceID()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("instance id changed: %s then %s", first, second)
	}
}
