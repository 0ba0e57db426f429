package splat

import (
	"bufio"
	"path"
	"regexp"
	"strings"
)

// sdkRootOrder is the tie-break order spec.md §4.G stage 6 names for
// ambiguous #include resolution across SDK sub-roots.
var sdkRootOrder = []string{"shared", "um", "ucrt", "winrt", "cppwinrt"}

var includeRE = regexp.MustCompile(`^\s*#\s*include\s*[<"]([^>"]+)[>"]`)

// includeClosure computes the set of output paths reachable from the
// usage map's explicit entries by following #include directives to a
// fixed point (spec.md §4.G stage 6). Only header Kinds are scanned; libs
// and already-excluded files pass through untouched by this stage (the
// caller's filterByReachability still requires a lib to be listed in the
// map directly).
func includeClosure(files []lowercased, usageMap map[string]bool) map[string]bool {
	byOutputPath := make(map[string]lowercased, len(files))
	headersByDir := make(map[string][]lowercased) // output dir -> headers in it, for "same root as includer" resolution
	for _, f := range files {
		byOutputPath[f.OutputPath] = f
		if !isLibKind(f.Kind) {
			dir := path.Dir(f.OutputPath)
			headersByDir[dir] = append(headersByDir[dir], f)
		}
	}

	reachable := make(map[string]bool, len(usageMap))
	var queue []string
	for p := range usageMap {
		if reachable[p] {
			continue
		}
		reachable[p] = true
		queue = append(queue, p)
	}
	// Libs in the usage map don't need scanning but must stay reachable
	// even if they have no corresponding Mapped entry (a stale map
	// entry); filterByReachability only keeps paths matching an actual
	// Mapped file, so that's harmless here.

	visited := make(map[string]bool) // canonical (lowercased) paths already scanned, per spec.md §9's cycle guard
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		canon := strings.ToLower(p)
		if visited[canon] {
			continue
		}
		visited[canon] = true

		f, ok := byOutputPath[p]
		if !ok || isLibKind(f.Kind) {
			continue
		}
		includes, err := scanIncludes(f)
		if err != nil {
			continue // unreadable header: skip rather than fail the whole splat run
		}
		for _, inc := range includes {
			target, ok := resolveInclude(inc, f.OutputPath, headersByDir, byOutputPath)
			if !ok {
				continue
			}
			if !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}
	return reachable
}

func scanIncludes(f lowercased) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var includes []string
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		m := includeRE.FindStringSubmatch(sc.Text())
		if m != nil {
			includes = append(includes, m[1])
		}
	}
	return includes, sc.Err()
}

// resolveInclude maps an #include argument to an output path, case
// insensitively, preferring a header in the includer's own directory,
// then falling back to the fixed SDK root order, and last to a header of
// that name anywhere in the output tree.
func resolveInclude(name, includerPath string, headersByDir map[string][]lowercased, byOutputPath map[string]lowercased) (string, bool) {
	lowerName := strings.ToLower(path.Base(name))

	dir := path.Dir(includerPath)
	if target, ok := findInDir(dir, lowerName, headersByDir); ok {
		return target, true
	}
	// Included with a relative subdirectory component, e.g.
	// "shared/foo.h": try it joined directly against every known root.
	joined := strings.ToLower(name)
	for p := range byOutputPath {
		if strings.Contains(joined, "/") && (strings.HasSuffix(strings.ToLower(p), "/"+joined) || strings.ToLower(p) == joined) {
			return p, true
		}
	}
	for _, root := range sdkRootOrder {
		for candidateDir := range headersByDir {
			if path.Base(candidateDir) == root || strings.Contains(candidateDir, "/"+root+"/") || strings.HasSuffix(candidateDir, "/"+root) {
				if target, ok := findInDir(candidateDir, lowerName, headersByDir); ok {
					return target, true
				}
			}
		}
	}
	// A plain name found under none of the SDK roots (e.g. a CRT or ATL
	// header): match it by file name anywhere in the output tree.
	for p := range byOutputPath {
		if strings.HasSuffix(strings.ToLower(p), "/"+joined) || strings.ToLower(p) == joined {
			return p, true
		}
	}
	return "", false
}

func findInDir(dir, lowerName string, headersByDir map[string][]lowercased) (string, bool) {
	for _, h := range headersByDir[dir] {
		if strings.ToLower(path.Base(h.OutputPath)) == lowerName {
			return h.OutputPath, true
		}
	}
	return "", false
}
