package state

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	artifactOnce sync.Once
	artifactRoot string
)

// ArtifactRoot is the absolute path named by TRANSRELAY_ARTIFACT_ROOT, or
// empty when unset. It is resolved once per process.
func ArtifactRoot() string {
	artifactOnce.Do(func() {
		artifactRoot = resolveRoot(os.Getenv("TRANSRELAY_ARTIFACT_ROOT"))
	})
	return artifactRoot
}

func resolveRoot(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if abs, err := filepath.Abs(v); err == nil {
		return abs
	}
	return v
}

// ArtifactPath joins elem onto ArtifactRoot; empty when no root is set.
func ArtifactPath(elem ...string) string {
	root := ArtifactRoot()
	if root == "" {
		return ""
	}
	return filepath.Join(append([]string{root}, elem...)...)
}
