// Package symlink creates the post-emission alias layer: uppercase .lib
// names and a fixed table of mixed-case header/library spellings that
// Windows source commonly uses (spec.md §4.H).
package symlink

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/wincrt/xwin"
)

// fixedAliases maps a canonical (lowercased, emitted) output path to the
// additional mixed-case name Windows sources spell it as. Sourced from
// headers/libs observed to be #included/linked by name in their
// Microsoft-authored casing rather than all lowercase.
var fixedAliases = map[string]string{
	"sdk/include/um/basetsd.h":    "BaseTsd.h",
	"sdk/include/um/iphlpapi.h":   "Iphlpapi.h",
	"sdk/lib/um/x86_64/iphlpapi.lib": "Iphlpapi.lib",
}

// Options mirrors the subset of spec.md §6 Splat flags this layer reads.
type Options struct {
	Disabled bool
}

// Create walks every emitted file under outputDir and materializes its
// aliases: an UPPERCASE name for every .lib, plus any entry from
// fixedAliases. Skips entirely (not per-file) once the output
// filesystem is found to be case-insensitive, since every alias would
// already resolve there without a symlink.
func Create(outputDir string, emittedPaths []string, opts Options) error {
	if opts.Disabled {
		return nil
	}
	insensitive, err := probeCaseInsensitive(outputDir)
	if err != nil {
		return err
	}
	if insensitive {
		return nil
	}

	for _, p := range emittedPaths {
		if strings.HasSuffix(p, ".lib") {
			if err := alias(outputDir, p, upper(filepath.Base(p))); err != nil {
				return err
			}
		}
		if mixed, ok := fixedAliases[p]; ok {
			if err := alias(outputDir, p, mixed); err != nil {
				return err
			}
		}
	}
	return nil
}

func upper(name string) string { return strings.ToUpper(name) }

// alias creates a symlink named aliasName alongside canonicalPath's
// basename, pointing at canonicalPath. It follows symlinkfarm.go's
// temp-name-then-rename pattern so a concurrent reader of the output
// directory never observes a half-created link, and treats an
// already-existing correct link as success rather than an error (splat
// re-runs are idempotent, spec.md §4.G stage 7).
func alias(outputDir, canonicalPath, aliasName string) error {
	dir := filepath.Dir(canonicalPath)
	newname := filepath.Join(outputDir, dir, aliasName)
	oldname := filepath.Base(canonicalPath)

	if existing, err := os.Readlink(newname); err == nil && existing == oldname {
		return nil
	}

	tmp, err := ioutil.TempFile(filepath.Dir(newname), "xwin-alias-")
	if err != nil {
		return &xwin.FilesystemError{Path: newname, Err: err}
	}
	tmp.Close()
	if err := os.Remove(tmp.Name()); err != nil {
		return &xwin.FilesystemError{Path: newname, Err: err}
	}
	if err := os.Symlink(oldname, tmp.Name()); err != nil {
		// Symlink creation can fail on filesystems without symlink
		// support; spec.md §4.H treats that the same as
		// --disable-symlinks for this one alias rather than failing the
		// whole run.
		return nil
	}
	if err := os.Rename(tmp.Name(), newname); err != nil {
		return &xwin.FilesystemError{Path: newname, Err: err}
	}
	return nil
}

// probeCaseInsensitive creates "a" and checks whether "A" resolves to the
// same file, inside dir itself (spec.md §4.H: "probe by creating a/A and
// checking equivalence"), then removes both.
func probeCaseInsensitive(dir string) (bool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, &xwin.FilesystemError{Path: dir, Err: err}
	}
	lower := filepath.Join(dir, ".xwin-case-probe-a")
	upperPath := filepath.Join(dir, ".xwin-case-probe-A")
	if err := ioutil.WriteFile(lower, []byte("a"), 0o644); err != nil {
		return false, &xwin.FilesystemError{Path: lower, Err: err}
	}
	defer os.Remove(lower)

	li, err := os.Stat(lower)
	if err != nil {
		return false, &xwin.FilesystemError{Path: lower, Err: err}
	}
	ui, err := os.Stat(upperPath)
	if err != nil {
		return false, nil // distinct file (or absent): case-sensitive
	}
	return os.SameFile(li, ui), nil
}
