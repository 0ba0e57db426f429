package unpack

import (
	"archive/zip"
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func buildVSIXBlob(t *testing.T, dir string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("Contents/include/stdio.h")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("#pragma once\n"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "pkg.vsix")
	if err := ioutil.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUnpackWritesFilesAndManifest(t *testing.T) {
	scratch := t.TempDir()
	blob := buildVSIXBlob(t, scratch)
	root := filepath.Join(scratch, "unpack")

	pkg := Package{Key: "crt-headers-1.0-x64", BlobPath: blob, PayloadHash: "abc123"}
	records, err := Unpack(root, pkg)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Path != "include/stdio.h" {
		t.Fatalf("records = %+v, want one include/stdio.h entry", records)
	}

	got, err := ioutil.ReadFile(filepath.Join(Dir(root, pkg.Key), "include/stdio.h"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "#pragma once\n" {
		t.Fatalf("content = %q", got)
	}

	if !IsUnpacked(root, pkg) {
		t.Fatal("expected IsUnpacked to be true after a successful unpack")
	}
}

func TestUnpackIsNoOpWhenManifestMatches(t *testing.T) {
	scratch := t.TempDir()
	blob := buildVSIXBlob(t, scratch)
	root := filepath.Join(scratch, "unpack")
	pkg := Package{Key: "crt-headers-1.0-x64", BlobPath: blob, PayloadHash: "abc123"}

	if _, err := Unpack(root, pkg); err != nil {
		t.Fatal(err)
	}

	sentinel := filepath.Join(Dir(root, pkg.Key), "include", "sentinel")
	if err := ioutil.WriteFile(sentinel, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Unpack(root, pkg); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(sentinel); err != nil {
		t.Fatal("re-running Unpack with a matching manifest must not touch the existing directory")
	}
}

func TestUnpackRedoesOnHashMismatch(t *testing.T) {
	scratch := t.TempDir()
	blob := buildVSIXBlob(t, scratch)
	root := filepath.Join(scratch, "unpack")
	pkg := Package{Key: "crt-headers-1.0-x64", BlobPath: blob, PayloadHash: "abc123"}

	if _, err := Unpack(root, pkg); err != nil {
		t.Fatal(err)
	}

	sentinel := filepath.Join(Dir(root, pkg.Key), "stale")
	if err := ioutil.WriteFile(sentinel, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	pkg.PayloadHash = "def456"
	if _, err := Unpack(root, pkg); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(sentinel); !os.IsNotExist(err) {
		t.Fatal("a changed payload hash must cause the stale directory to be cleaned")
	}
}
