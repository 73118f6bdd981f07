package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

func TestLoadPreservesPartOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for p := 0; p < 5; p++ {
		path := filepath.Join(dir, fmt.Sprintf("part-%06d.csv", p))
		content := ""
		for r := 0; r < 3; r++ {
			content += fmt.Sprintf("%d,%d\n", p, p*10+r)
		}
		mustWrite(t, path, content)
		paths = append(paths, path)
	}

	opts := LoadOptions{
		Paths:      paths,
		NumWorkers: 3,
		Part:       PartOptions{Labeled: true, LabelColumn: 0},
	}
	rows, err := Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(rows) != 15 {
		t.Fatalf("expected 15 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if want := float64((i/3)*10 + i%3); row.Values[0] != want {
			t.Fatalf("row %d value %v want %v", i, row.Values[0], want)
		}
	}

	again, err := Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Load error: %v", err)
	}
	if !reflect.DeepEqual(rows, again) {
		t.Fatalf("load order not deterministic")
	}
}

func TestLoadPropagatesPartError(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "part-000000.csv")
	bad := filepath.Join(dir, "part-000001.csv")
	mustWrite(t, good, "1,2\n")
	mustWrite(t, bad, "1,oops\n")

	_, err := Load(context.Background(), LoadOptions{
		Paths:      []string{good, bad},
		NumWorkers: 2,
		Part:       PartOptions{Labeled: true},
	})
	if err == nil {
		t.Fatal("expected error from malformed part")
	}
}

func TestLoadNoParts(t *testing.T) {
	if _, err := Load(context.Background(), LoadOptions{}); err == nil {
		t.Fatal("expected error without parts")
	}
}

func TestLoadRejectsMixedWidthParts(t *testing.T) {
	dir := t.TempDir()
	wide := filepath.Join(dir, "part-000000.csv")
	narrow := filepath.Join(dir, "part-000001.csv")
	mustWrite(t, wide, "1,0.1,0.2,0.3\n")
	mustWrite(t, narrow, "1,0.1\n")

	_, err := Load(context.Background(), LoadOptions{
		Paths:      []string{wide, narrow},
		NumWorkers: 2,
		Part:       PartOptions{Labeled: true},
	})
	if !errors.Is(err, ErrWidthMismatch) {
		t.Fatalf("expected ErrWidthMismatch, got %v", err)
	}
}
