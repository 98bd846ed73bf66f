package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureStateDirs(t *testing.T) {
	dir := t.TempDir()
	l, err := EnsureStateDirs(dir)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	for _, p := range []string{l.Store, l.Crash, l.Tmp} {
		fi, err := os.Stat(p)
		if err != nil || !fi.IsDir() {
			t.Fatalf("%s missing: %v", p, err)
		}
	}
	if l.Store != filepath.Join(dir, "store") {
		t.Fatalf("unexpected store path %s", l.Store)
	}
	// idempotent
	if _, err := EnsureStateDirs(dir); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
}

func TestEnsureStateDirsRejectsFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "store"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := EnsureStateDirs(dir); err == nil {
		t.Fatalf("expected an error when store is a file")
	}
}

func TestEnsureStateDirsRejectsPermissive(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "store")
	if err := os.Mkdir(p, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(p, 0o777); err != nil {
		t.Fatal(err)
	}
	if _, err := EnsureStateDirs(dir); err == nil {
		t.Fatalf("expected an error for a world-writable dir")
	}
}

func TestResolveRoot(t *testing.T) {
	if resolveRoot("  ") != "" {
		t.Fatalf("blank should resolve to empty")
	}
	if got := resolveRoot("rel/dir"); !filepath.IsAbs(got) {
		t.Fatalf("expected absolute path, got %s", got)
	}
}
