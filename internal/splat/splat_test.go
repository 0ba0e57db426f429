package splat

import (
	"io"
	"io/ioutil"
	"sort"
	"testing"

	"github.com/wincrt/xwin"
)

func fileOf(pkg, path, content string) SourceFile {
	return SourceFile{
		PackageID: pkg,
		Path:      path,
		Size:      int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return ioutil.NopCloser(stringsReader(content)), nil
		},
	}
}

type stringsReaderT struct {
	s string
	i int
}

func stringsReader(s string) *stringsReaderT { return &stringsReaderT{s: s} }

func (r *stringsReaderT) Read(p []byte) (int, error) {
	if r.i >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.i:])
	r.i += n
	return n, nil
}

func TestRunCanonicalizesCRTHeaderPath(t *testing.T) {
	files := []SourceFile{
		fileOf("Microsoft.VC.14.36.17.6.CRT.Headers", "include/stdio.h", "#pragma once\n"),
	}
	out, err := Run(files, Options{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Path != "crt/include/stdio.h" {
		t.Fatalf("got %+v, want crt/include/stdio.h", out)
	}
}

func TestRunLowercasesOutputPaths(t *testing.T) {
	files := []SourceFile{
		fileOf("Microsoft.VC.14.36.17.6.CRT.Headers", "include/VaDefs.h", "x"),
	}
	out, err := Run(files, Options{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Path != "crt/include/vadefs.h" {
		t.Fatalf("got %q, want lowercased path", out[0].Path)
	}
}

func TestRunDedupesIdenticalContent(t *testing.T) {
	files := []SourceFile{
		fileOf("Microsoft.VC.14.36.17.6.CRT.Headers", "include/stdio.h", "same"),
		fileOf("Microsoft.VC.14.36.17.6.CRT.Headers", "include/stdio.h", "same"),
	}
	out, err := Run(files, Options{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d files, want 1 after dedupe", len(out))
	}
}

func TestRunFailsOnConflictingDuplicateContent(t *testing.T) {
	files := []SourceFile{
		fileOf("Microsoft.VC.14.36.17.6.CRT.Headers", "include/stdio.h", "version A"),
		fileOf("Microsoft.VC.14.36.17.6.CRT.Headers", "include/stdio.h", "version B"),
	}
	_, err := Run(files, Options{OutputDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected a DuplicateContentConflict")
	}
	if _, ok := err.(*xwin.DuplicateContentConflict); !ok {
		t.Fatalf("got %T, want *xwin.DuplicateContentConflict", err)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	files := []SourceFile{
		fileOf("Microsoft.VC.14.36.17.6.CRT.Headers", "include/b.h", "b"),
		fileOf("Microsoft.VC.14.36.17.6.CRT.Headers", "include/a.h", "a"),
	}
	out1, err := Run(files, Options{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	out2, err := Run(files, Options{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if len(out1) != len(out2) {
		t.Fatalf("non-deterministic output count: %d vs %d", len(out1), len(out2))
	}
	for i := range out1 {
		if out1[i] != out2[i] {
			t.Fatalf("non-deterministic entry %d: %+v vs %+v", i, out1[i], out2[i])
		}
	}
	if !sort.SliceIsSorted(out1, func(i, j int) bool { return out1[i].Path < out1[j].Path }) {
		t.Fatal("output must be sorted by path")
	}
}

func TestRunFiltersDebugLibsByDefault(t *testing.T) {
	files := []SourceFile{
		{PackageID: "Microsoft.VC.14.36.17.6.CRT.amd64.Desktop.debug", Arch: xwin.ArchX86_64, Path: "lib/x64/libcmtd.lib", Size: 1,
			Open: func() (io.ReadCloser, error) { return ioutil.NopCloser(stringsReader("d")), nil }},
	}
	out, err := Run(files, Options{OutputDir: t.TempDir(), Selection: xwin.Selection{Archs: []xwin.Arch{xwin.ArchX86_64}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("expected debug libs to be filtered out by default, got %+v", out)
	}
}

func TestRunUsageMapMatchesMixedCaseSourceFilename(t *testing.T) {
	files := []SourceFile{
		{PackageID: "Windows SDK Desktop Headers x86-x86_en-us.msi", Path: "include/um/Windows.h", Size: 1,
			Open: func() (io.ReadCloser, error) { return ioutil.NopCloser(stringsReader("w")), nil }},
		{PackageID: "Windows SDK Desktop Headers x86-x86_en-us.msi", Path: "include/um/unrelated.h", Size: 1,
			Open: func() (io.ReadCloser, error) { return ioutil.NopCloser(stringsReader("u")), nil }},
	}
	out, err := Run(files, Options{
		OutputDir: t.TempDir(),
		UsageMap:  map[string]bool{"sdk/include/um/windows.h": true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Path != "sdk/include/um/windows.h" {
		t.Fatalf("got %+v, want only sdk/include/um/windows.h to survive the usage map", out)
	}
}

func TestRunDedupesAcrossCaseOnlyPathCollision(t *testing.T) {
	files := []SourceFile{
		{PackageID: "Windows SDK Desktop Headers x86-x86_en-us.msi", Path: "include/um/Windows.h", Size: 1,
			Open: func() (io.ReadCloser, error) { return ioutil.NopCloser(stringsReader("same")), nil }},
		{PackageID: "Windows SDK Desktop Headers x86-x86_en-us.msi", Path: "include/um/windows.h", Size: 1,
			Open: func() (io.ReadCloser, error) { return ioutil.NopCloser(stringsReader("same")), nil }},
	}
	out, err := Run(files, Options{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected case-only collision to dedupe to 1 file, got %+v", out)
	}
}

func TestRunKeepsDebugLibsWhenRequested(t *testing.T) {
	files := []SourceFile{
		{PackageID: "Microsoft.VC.14.36.17.6.CRT.amd64.Desktop.debug", Arch: xwin.ArchX86_64, Path: "lib/x64/libcmtd.lib", Size: 1,
			Open: func() (io.ReadCloser, error) { return ioutil.NopCloser(stringsReader("d")), nil }},
	}
	out, err := Run(files, Options{
		OutputDir: t.TempDir(),
		Selection: xwin.Selection{Archs: []xwin.Arch{xwin.ArchX86_64}, IncludeDebugLibs: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected the debug lib to survive, got %+v", out)
	}
}
