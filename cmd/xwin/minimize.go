package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// cmdminimize consumes an external build trace (one referenced file path
// per line — e.g. the include list a `clang-cl -MD` depfile or a verbose
// `-v`/`/showIncludes` build log would yield once reduced to bare paths)
// and writes a usage map: the set of sysroot-relative paths it actually
// touched, for a later `splat --map` to restrict output to (spec.md §6
// "minimize (consume an external build trace, write a usage map)").
func cmdminimize(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("minimize", flag.ExitOnError)
	root := fset.String("root", ".", "sysroot directory the trace's paths are rooted under")
	trace := fset.String("trace", "", "path to the build trace file (default: stdin)")
	out := fset.String("out", "", "path to write the usage map to (default: stdout)")
	fset.Usage = usage(fset, "xwin minimize [-flags]\n\nReduces a build trace to the usage map format splat --map consumes.")
	if err := fset.Parse(args); err != nil {
		return err
	}

	in := os.Stdin
	if *trace != "" {
		f, err := os.Open(*trace)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	paths, err := minimizeTrace(in, *root)
	if err != nil {
		return err
	}

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)
	for _, p := range paths {
		if _, err := bw.WriteString(p + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// minimizeTrace reduces every line of r to a deduplicated, sorted,
// sysroot-relative, forward-slash, lowercased path — matching the
// canonical form splat's output paths already take (spec.md §4.G stage 5),
// so a later --map lookup is a plain set membership test. Lines outside
// root are dropped.
func minimizeTrace(r io.Reader, root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		abs, err := filepath.Abs(line)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absRoot, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		seen[strings.ToLower(filepath.ToSlash(rel))] = true
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
