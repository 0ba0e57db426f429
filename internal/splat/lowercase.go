package splat

import "strings"

// lowercased pairs a Mapped file with its lowercased output path; the
// original mixed-case path is kept (CasePreserved) so the symlink layer
// (spec.md §4.H) knows what alias, if any, a Windows-authored #include
// or .lib reference would expect.
type lowercased struct {
	Mapped
	CasePreserved string
}

// lowercaseAll forces every output path to lowercase (spec.md §4.G stage
// 5) right after path mapping, before the usage-map filter and dedupe both
// of which key off OutputPath: Windows-authored sources routinely spell
// `#include <Windows.h>` or link `Kernel32.lib`, and a usage map lists
// those paths already lowercased, so comparisons against a mixed-case
// OutputPath would miss them.
func lowercaseAll(files []Mapped) []lowercased {
	out := make([]lowercased, len(files))
	for i, f := range files {
		casePreserved := f.OutputPath
		lower := strings.ToLower(f.OutputPath)
		f.OutputPath = lower
		out[i] = lowercased{Mapped: f, CasePreserved: casePreserved}
	}
	return out
}
