package splat

import "github.com/wincrt/xwin"

// filterArchVariant drops Store-only files when no OneCore/Store variant
// is selected, debug libs unless requested, and files tagged for an
// architecture the Selection didn't ask for (spec.md §4.G stage 2).
func filterArchVariant(files []Classified, sel xwin.Selection) []Classified {
	out := make([]Classified, 0, len(files))
	for _, f := range files {
		if f.Kind == KindIgnore {
			continue
		}
		if f.Store && !sel.HasVariant(xwin.VariantOneCore) {
			continue
		}
		if f.Kind == KindCRTLibDebug && !sel.IncludeDebugLibs {
			continue
		}
		if f.Arch != "" && !archSelected(f.Arch, sel) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func archSelected(a xwin.Arch, sel xwin.Selection) bool {
	if len(sel.Archs) == 0 {
		return true // no restriction configured: keep everything
	}
	return sel.HasArch(a)
}

// filterByReachability keeps only files whose output path was marked
// reachable by includeClosure: explicitly listed in the usage map, or
// pulled in transitively by #include (spec.md §4.G stage 2's usage-map
// clause, resolved against stage 6's closure over already-mapped,
// already-lowercased output paths — see splat.go's Run for why
// lowercaseAll runs before this filter: a usage map's entries are
// specified lowercase, and on-disk SDK/CRT headers are often not).
func filterByReachability(files []lowercased, reachable map[string]bool) []lowercased {
	out := make([]lowercased, 0, len(files))
	for _, f := range files {
		if reachable[f.OutputPath] {
			out = append(out, f)
		}
	}
	return out
}

func isLibKind(k Kind) bool {
	switch k {
	case KindCRTLib, KindCRTLibDebug, KindATLLib, KindSDKLib, KindUCRTLib:
		return true
	default:
		return false
	}
}
