package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wincrt/xwin"
)

func TestResolveCachedWritesAndReusesMemo(t *testing.T) {
	dir := t.TempDir()
	pkgs := []Package{
		{ID: "root", Version: "1.0", Dependencies: map[string]struct {
			Chip   string   `json:"chip"`
			Select []string `json:"select"`
		}{"leaf": {}}},
		{ID: "leaf", Version: "1.0"},
	}
	sel := xwin.Selection{Archs: []xwin.Arch{xwin.ArchX86_64}}

	out, err := ResolveCached(dir, pkgs, []string{"root"}, sel)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d packages, want 2", len(out))
	}
	if _, err := os.Stat(filepath.Join(dir, "ctx.json")); err != nil {
		t.Fatalf("ctx.json not written: %v", err)
	}

	// A second call with identical inputs matches the memo's digest and
	// must return a closure of the same size as the first call's.
	out2, err := ResolveCached(dir, pkgs, []string{"root"}, sel)
	if err != nil {
		t.Fatal(err)
	}
	if len(out2) != len(out) {
		t.Fatalf("memoized result mismatch: got %d, want %d", len(out2), len(out))
	}
}

func TestResolveCachedInvalidatesOnSelectionChange(t *testing.T) {
	dir := t.TempDir()
	pkgs := []Package{{ID: "root", Version: "1.0"}}

	selA := xwin.Selection{Archs: []xwin.Arch{xwin.ArchX86}}
	selB := xwin.Selection{Archs: []xwin.Arch{xwin.ArchX86_64}}

	if _, err := ResolveCached(dir, pkgs, []string{"root"}, selA); err != nil {
		t.Fatal(err)
	}
	digestA, err := closureDigest(pkgs, []string{"root"}, selA)
	if err != nil {
		t.Fatal(err)
	}
	digestB, err := closureDigest(pkgs, []string{"root"}, selB)
	if err != nil {
		t.Fatal(err)
	}
	if digestA == digestB {
		t.Fatal("digests for different selections must differ")
	}
}
