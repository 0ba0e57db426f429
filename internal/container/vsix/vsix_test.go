package vsix_test

import (
	"archive/zip"
	"bytes"
	"io/ioutil"
	"testing"

	"github.com/wincrt/xwin/internal/container/vsix"
)

func buildVSIX(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"Contents/VC/Tools/MSVC/include/stdio.h": "#pragma once\n",
		"Contents/VC/Tools/MSVC/include/vadefs.h\\nested.h": "should not happen",
		"extension.vsixmanifest": "<PackageManifest/>",
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeStripsPrefixAndNormalizes(t *testing.T) {
	data := buildVSIX(t)
	r, err := vsix.Open("test.vsix", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	seen := map[string]string{}
	for r.Next() {
		f := r.File()
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, err := ioutil.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		seen[f.Path] = string(b)
	}
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}

	if _, ok := seen["extension.vsixmanifest"]; ok {
		t.Fatal("files outside Contents/ must be skipped")
	}
	if got, want := seen["VC/Tools/MSVC/include/stdio.h"], "#pragma once\n"; got != want {
		t.Fatalf("stdio.h content = %q, want %q", got, want)
	}
	if _, ok := seen["VC/Tools/MSVC/include/vadefs.h/nested.h"]; !ok {
		t.Fatalf("backslash-separated path was not normalized to /, got %v", seen)
	}
}
