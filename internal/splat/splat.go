// Package splat implements the final pipeline stage that turns the
// unpacked packages' logical files into a deterministic sysroot tree
// (spec.md §4.G): classify, filter, canonicalize paths, lowercase,
// resolve an optional usage map's #include closure, dedupe, and emit.
//
// Each stage lives in its own file, mirroring internal/build's
// one-concern-per-file layout (glob.go, shlibdeps.go, ...).
package splat

import (
	"io"
	"sort"

	"github.com/wincrt/xwin"
)

// SourceFile is one logical file as produced by the unpack stage: a path
// relative to its package's unpack directory, tagged with the id of the
// package (and, where relevant, architecture) it came from.
type SourceFile struct {
	PackageID string
	Arch      xwin.Arch // zero value for architecture-neutral packages
	Path      string    // forward-slash path inside the package, as yielded by the container decoder
	Size      int64
	Open      func() (io.ReadCloser, error)
}

// Options configures one splat run (spec.md §6 Splat flags).
type Options struct {
	Selection        xwin.Selection
	OutputDir        string
	UsageMap         map[string]bool // nil disables usage-map filtering entirely
	PreserveMSLayout bool
}

// Emitted is one file actually written to the output tree, for snapshot
// testing and for driving the symlink/case layer afterward.
type Emitted struct {
	Path string // output-relative, lowercased, forward-slash
	Size int64
	Hash string
}

// Run executes the full pipeline and returns the sorted list of files
// written under opts.OutputDir.
func Run(files []SourceFile, opts Options) ([]Emitted, error) {
	classified := classifyAll(files)
	classified = filterArchVariant(classified, opts.Selection)
	mapped := mapPaths(classified, opts.PreserveMSLayout)

	// Lowercasing must happen before both the usage-map filter and dedupe:
	// usage-map entries are specified as already-canonicalized lowercase
	// paths (spec.md §6, §8 scenario 6), and on-disk SDK/CRT headers
	// routinely carry mixed case, so comparing against a raw OutputPath
	// here would silently drop correctly-listed files and let
	// case-only collisions slip past dedupe.
	lowercased := lowercaseAll(mapped)

	if opts.UsageMap != nil {
		reachable := includeClosure(lowercased, opts.UsageMap)
		lowercased = filterByReachability(lowercased, reachable)
	}

	deduped, err := dedupe(lowercased)
	if err != nil {
		return nil, err
	}

	emitted, err := emit(deduped, opts.OutputDir)
	if err != nil {
		return nil, err
	}
	sort.Slice(emitted, func(i, j int) bool { return emitted[i].Path < emitted[j].Path })
	return emitted, nil
}
