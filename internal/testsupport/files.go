package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteText writes body to path, creating parent directories.
func WriteText(t testing.TB, path, body string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadText returns the contents of path or fails the test.
func ReadText(t testing.TB, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// CopyFixture copies a file (typically from a package testdata directory)
// into dir and returns the new path.
func CopyFixture(t testing.TB, src, dir string) string {
	t.Helper()

	target := filepath.Join(dir, filepath.Base(src))
	WriteText(t, target, ReadText(t, src))
	return target
}
