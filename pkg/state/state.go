package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout is the runtime folder tree under the data directory.
type Layout struct {
	Root  string
	Store string // pebble files
	Crash string // startup crash dumps
	Tmp   string
}

// LayoutFor returns the layout rooted at dataDir without touching disk.
func LayoutFor(dataDir string) Layout {
	statePath := filepath.Join(dataDir, "state")
	return Layout{
		Root:  dataDir,
		Store: filepath.Join(dataDir, "store"),
		Crash: filepath.Join(statePath, "crash"),
		Tmp:   filepath.Join(statePath, "tmp"),
	}
}

// EnsureStateDirs creates the layout under dataDir. Existing entries must be
// real directories without group or other write permission, and every
// directory must be writable by the process.
func EnsureStateDirs(dataDir string) (Layout, error) {
	l := LayoutFor(dataDir)
	for _, p := range []string{l.Store, l.Crash, l.Tmp} {
		if err := ensureDir(p); err != nil {
			return l, err
		}
	}
	return l, nil
}

func ensureDir(p string) error {
	if fi, err := os.Lstat(p); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("path is a symlink: %s", p)
		}
		if !fi.IsDir() {
			return fmt.Errorf("path exists and is not a directory: %s", p)
		}
		if fi.Mode().Perm()&0o022 != 0 {
			return fmt.Errorf("path has permissive mode (group/other write): %s", p)
		}
	}
	if err := os.MkdirAll(p, 0o700); err != nil {
		return fmt.Errorf("cannot create path %s: %w", p, err)
	}
	tmp, err := os.CreateTemp(p, ".validate-*")
	if err != nil {
		return fmt.Errorf("path not writable: %s: %w", p, err)
	}
	tmp.Close()
	_ = os.Remove(tmp.Name())
	return nil
}
