package shutdown

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteCrashDump(t *testing.T) {
	t.Setenv("TRANSRELAY_TELEGRAM_TOKEN", "123:abc")
	dir := filepath.Join(t.TempDir(), "crash")
	p, err := WriteCrashDump(dir, "open store", errors.New("boom"))
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	s := string(data)
	for _, want := range []string{"reason: open store", "error: boom", "goroutine stacks", "TRANSRELAY_TELEGRAM_TOKEN=***"} {
		if !strings.Contains(s, want) {
			t.Fatalf("dump missing %q", want)
		}
	}
	if strings.Contains(s, "123:abc") {
		t.Fatalf("token leaked into the dump")
	}
	left, _ := filepath.Glob(filepath.Join(dir, ".crash-*"))
	if len(left) != 0 {
		t.Fatalf("temp files left behind: %v", left)
	}
}

func TestCrashDirFromDataDir(t *testing.T) {
	if got := CrashDir("/var/lib/transrelay"); !strings.HasSuffix(got, "crash") {
		t.Fatalf("unexpected crash dir %s", got)
	}
	if CrashDir("") == "" {
		t.Fatalf("crash dir should never be empty")
	}
}
