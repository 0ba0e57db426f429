package symlink

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCreateAddsUppercaseLibAlias(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "crt/lib/x86_64/libcmt.lib"), "x")

	if err := Create(dir, []string{"crt/lib/x86_64/libcmt.lib"}, Options{}); err != nil {
		t.Fatal(err)
	}

	aliasPath := filepath.Join(dir, "crt/lib/x86_64/LIBCMT.LIB")
	target, err := os.Readlink(aliasPath)
	if err != nil {
		t.Fatalf("expected alias symlink, got %v", err)
	}
	if target != "libcmt.lib" {
		t.Fatalf("alias points at %q, want libcmt.lib", target)
	}
}

func TestCreateAddsFixedAlias(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sdk/include/um/basetsd.h"), "x")

	if err := Create(dir, []string{"sdk/include/um/basetsd.h"}, Options{}); err != nil {
		t.Fatal(err)
	}

	aliasPath := filepath.Join(dir, "sdk/include/um/BaseTsd.h")
	target, err := os.Readlink(aliasPath)
	if err != nil {
		t.Fatalf("expected fixed alias symlink, got %v", err)
	}
	if target != "basetsd.h" {
		t.Fatalf("alias points at %q, want basetsd.h", target)
	}
}

func TestCreateDisabled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "crt/lib/x86_64/libcmt.lib"), "x")

	if err := Create(dir, []string{"crt/lib/x86_64/libcmt.lib"}, Options{Disabled: true}); err != nil {
		t.Fatal(err)
	}

	aliasPath := filepath.Join(dir, "crt/lib/x86_64/LIBCMT.LIB")
	if _, err := os.Lstat(aliasPath); !os.IsNotExist(err) {
		t.Fatalf("expected no alias when disabled, got err=%v", err)
	}
}

func TestCreateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "crt/lib/x86_64/libcmt.lib"), "x")

	if err := Create(dir, []string{"crt/lib/x86_64/libcmt.lib"}, Options{}); err != nil {
		t.Fatal(err)
	}
	if err := Create(dir, []string{"crt/lib/x86_64/libcmt.lib"}, Options{}); err != nil {
		t.Fatalf("second run should be a no-op, got %v", err)
	}
}
