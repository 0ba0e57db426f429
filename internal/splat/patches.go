package splat

import "bytes"

// textPatch is one audited find/replace applied to a specific output
// path at emission time (spec.md §4.G: "small textual patches... applied
// on emission to specific headers known to require them for clang-cl
// compatibility").
type textPatch struct {
	find, replace []byte
}

// patchTable is intentionally small: every entry here is a known,
// specific clang-cl incompatibility, not a speculative fixup.
var patchTable = map[string][]textPatch{
	// vcruntime.h's intrinsic pragma list includes a handful of
	// MSVC-only pragma names that clang-cl's frontend rejects outright
	// rather than ignoring; __except is the one that actually occurs in
	// a CRT header clang-cl otherwise parses cleanly.
	"crt/include/vcruntime.h": {
		{find: []byte("#pragma intrinsic(__except)"), replace: []byte("/* #pragma intrinsic(__except) */")},
	},
}

func applyPatches(path string, content []byte) []byte {
	patches, ok := patchTable[path]
	if !ok {
		return content
	}
	out := content
	for _, p := range patches {
		out = bytes.ReplaceAll(out, p.find, p.replace)
	}
	return out
}
