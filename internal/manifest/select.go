package manifest

import (
	"sort"
	"strings"

	"github.com/wincrt/xwin"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// index groups packages by id, filtered to the best-matching language for
// each id (spec.md §4.D step 3: "en-US or language-neutral... preferred;
// other languages are filtered out unless none match").
type index struct {
	byID map[string][]Package
}

func newIndex(pkgs []Package) *index {
	idx := &index{byID: make(map[string][]Package)}
	for _, p := range pkgs {
		idx.byID[p.ID] = append(idx.byID[p.ID], p)
	}
	for id, variants := range idx.byID {
		idx.byID[id] = preferredLanguage(variants)
	}
	return idx
}

func preferredLanguage(variants []Package) []Package {
	var preferred []Package
	for _, v := range variants {
		if v.Language == "" || v.Language == "en-US" || v.Language == "neutral" {
			preferred = append(preferred, v)
		}
	}
	if len(preferred) > 0 {
		return preferred
	}
	return variants
}

// forArch returns the package variant matching id and chip (or the only
// variant, if the id isn't architecture-split). When several variants
// match, the newest by xwin.CompareVersions wins.
func (idx *index) forArch(id, chip string) (Package, bool) {
	variants, ok := idx.byID[id]
	if !ok {
		return Package{}, false
	}
	if len(variants) == 1 {
		return variants[0], true
	}
	best := -1
	for i, v := range variants {
		if v.Chip != chip {
			continue
		}
		if best == -1 || xwin.CompareVersions(v.Version, variants[best].Version) > 0 {
			best = i
		}
	}
	if best == -1 {
		return Package{}, false
	}
	return variants[best], true
}

// node adapts a resolved Package for use as a gonum graph.Node, keyed by
// its position in the closure's dedupe map — mirrors internal/batch's
// *node wrapping a build package for the same reason (gonum requires a
// stable int64 ID, not a string key).
type node struct {
	id  int64
	key string
	pkg Package
}

func (n *node) ID() int64 { return n.id }

// Closure computes the full set of packages required by the selection
// (spec.md §4.D steps 4-6): root packages chosen by id pattern, expanded
// by following `dependencies` and de-duplicated by (id, version, chip).
// The returned slice is in dependency order (a depended-on package never
// follows its dependent), ready to become []work.PackageJob.
func Closure(pkgs []Package, roots []string) ([]Package, error) {
	idx := newIndex(pkgs)

	g := simple.NewDirectedGraph()
	byKey := make(map[string]*node)
	var nextID int64

	var addNode func(id, chip string) (*node, error)
	addNode = func(id, chip string) (*node, error) {
		pkg, ok := idx.forArch(id, chip)
		if !ok {
			return nil, &xwin.ManifestError{MissingID: id, Reason: "not present in resolved manifest"}
		}
		key := dedupeKey(pkg)
		if n, ok := byKey[key]; ok {
			return n, nil
		}
		n := &node{id: nextID, key: key, pkg: pkg}
		nextID++
		byKey[key] = n
		g.AddNode(n)

		for depID, dep := range pkg.Dependencies {
			depChip := dep.Chip
			if depChip == "" {
				depChip = chip
			}
			dn, err := addNode(depID, depChip)
			if err != nil {
				return nil, err
			}
			g.SetEdge(g.NewEdge(n, dn))
		}
		return n, nil
	}

	for _, rootID := range roots {
		if _, err := addNode(rootID, ""); err != nil {
			return nil, err
		}
	}

	ordered, err := topo.SortStabilized(g, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].(*node).key < nodes[j].(*node).key })
	})
	if err != nil {
		if uo, ok := err.(topo.Unorderable); ok {
			// A dependency cycle among packages is manifest drift, not a
			// program bug: break it deterministically by dropping every
			// outgoing edge of the lexically last node of each cyclic
			// component, same remedy
			// internal/batch/batch.go applies to stale build-graph
			// cycles, rather than failing the whole run.
			for _, component := range uo {
				sort.Slice(component, func(i, j int) bool {
					return component[i].(*node).key < component[j].(*node).key
				})
				last := component[len(component)-1].(*node)
				from := g.From(last.ID())
				for from.Next() {
					g.RemoveEdge(last.ID(), from.Node().ID())
				}
			}
			ordered, err = topo.Sort(g)
			if err != nil {
				return nil, &xwin.ManifestError{Reason: "dependency graph has an unbreakable cycle: " + err.Error()}
			}
		} else {
			return nil, &xwin.ManifestError{Reason: err.Error()}
		}
	}

	// topo.Sort yields dependents before their dependencies; reverse so
	// the result is safe to process in order (a package is only ever
	// needed once everything it depends on is already unpacked).
	out := make([]Package, len(ordered))
	for i, n := range ordered {
		out[len(ordered)-1-i] = n.(*node).pkg
	}
	return out, nil
}

func dedupeKey(p Package) string {
	return strings.Join([]string{p.ID, p.Version, p.Chip}, "\x00")
}
