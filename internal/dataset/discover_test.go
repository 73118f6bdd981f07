package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverPartsBasic(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "part-000000.csv"), "")
	mustWrite(t, filepath.Join(dir, "nested", "part-000001.csv"), "")
	mustWrite(t, filepath.Join(dir, "ignore.txt"), "")

	parts, err := DiscoverParts(dir)
	if err != nil {
		t.Fatalf("DiscoverParts error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "nested", "part-000001.csv"),
		filepath.Join(dir, "part-000000.csv"),
	}
	if len(parts) != len(want) {
		t.Fatalf("expected %d parts, got %d", len(want), len(parts))
	}
	for i, part := range want {
		if parts[i] != part {
			t.Fatalf("part[%d]=%s want %s", i, parts[i], part)
		}
	}
}

func TestDiscoverPartsSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "letters.csv")
	mustWrite(t, path, "1,0,0\n")

	parts, err := DiscoverParts(path)
	if err != nil {
		t.Fatalf("DiscoverParts error: %v", err)
	}
	if len(parts) != 1 || parts[0] != path {
		t.Fatalf("expected [%s], got %v", path, parts)
	}
}

func TestDiscoverPartsMissing(t *testing.T) {
	if _, err := DiscoverParts(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
