package splat

import "strings"

// Kind is the category splat assigns a source file to based on its
// package id and intra-package path (spec.md §4.G stage 1).
type Kind int

const (
	KindIgnore Kind = iota
	KindCRTHeader
	KindCRTLib
	KindCRTLibDebug
	KindATLHeader
	KindATLLib
	KindSDKHeader // shared/um/winrt/cppwinrt
	KindSDKLib    // um
	KindUCRTHeader
	KindUCRTLib
)

// Classified is a SourceFile with its inferred Kind and, for SDK headers,
// the sub-root directory it lives under (shared, um, winrt, cppwinrt...).
type Classified struct {
	SourceFile
	Kind    Kind
	SubRoot string
	// Store marks a file only relevant to UWP/Store-style (OneCore)
	// targets, for stage 2's variant filter.
	Store bool
}

// classifyAll infers each file's Kind from the package id it came from
// and its path within that package. Files outside every known prefix
// (tools, samples, localized resources, …) classify as KindIgnore and
// are dropped by the caller.
func classifyAll(files []SourceFile) []Classified {
	out := make([]Classified, 0, len(files))
	for _, f := range files {
		out = append(out, classifyOne(f))
	}
	return out
}

func classifyOne(f SourceFile) Classified {
	pkg := f.PackageID
	path := f.Path
	lower := strings.ToLower(path)

	switch {
	case strings.Contains(pkg, ".CRT.Headers"):
		if !strings.HasSuffix(lower, ".h") && !strings.HasSuffix(lower, ".inl") {
			return Classified{SourceFile: f, Kind: KindIgnore}
		}
		return Classified{SourceFile: f, Kind: KindCRTHeader}

	case strings.Contains(pkg, ".ATL.Headers"):
		if !strings.HasSuffix(lower, ".h") && !strings.HasSuffix(lower, ".inl") {
			return Classified{SourceFile: f, Kind: KindIgnore}
		}
		return Classified{SourceFile: f, Kind: KindATLHeader}

	case strings.Contains(pkg, ".ATL.") && isLib(lower):
		return Classified{SourceFile: f, Kind: KindATLLib}

	case strings.Contains(pkg, ".CRT.") && isLib(lower):
		store := strings.Contains(pkg, ".Store")
		if strings.Contains(pkg, ".debug") {
			return Classified{SourceFile: f, Kind: KindCRTLibDebug, Store: store}
		}
		return Classified{SourceFile: f, Kind: KindCRTLib, Store: store}

	case strings.Contains(pkg, "Universal CRT") && (strings.HasSuffix(lower, ".h") || strings.HasSuffix(lower, ".inl")):
		return Classified{SourceFile: f, Kind: KindUCRTHeader}

	case strings.Contains(pkg, "Universal CRT") && isLib(lower):
		return Classified{SourceFile: f, Kind: KindUCRTLib}

	case strings.Contains(pkg, "Windows SDK Desktop Headers"):
		root, ok := sdkSubRoot(lower)
		if !ok {
			return Classified{SourceFile: f, Kind: KindIgnore}
		}
		return Classified{SourceFile: f, Kind: KindSDKHeader, SubRoot: root}

	case strings.Contains(pkg, "Windows SDK for Windows Store Apps Headers"):
		root, ok := sdkSubRoot(lower)
		if !ok {
			return Classified{SourceFile: f, Kind: KindIgnore}
		}
		return Classified{SourceFile: f, Kind: KindSDKHeader, SubRoot: root, Store: true}

	case strings.Contains(pkg, "Windows SDK Desktop Libs") && isLib(lower):
		return Classified{SourceFile: f, Kind: KindSDKLib}

	default:
		return Classified{SourceFile: f, Kind: KindIgnore}
	}
}

func isLib(lowerPath string) bool {
	return strings.HasSuffix(lowerPath, ".lib")
}

// sdkSubRoot maps an SDK header's package-relative path to its
// canonical sub-root (shared, um, winrt, cppwinrt, ucrt), matching the
// prefixes the real Windows SDK Desktop Headers package ships under
// Include/<version>/<subroot>/....
func sdkSubRoot(lowerPath string) (string, bool) {
	for _, root := range []string{"shared", "um", "winrt", "cppwinrt", "ucrt"} {
		marker := "/" + root + "/"
		if idx := strings.Index(lowerPath, marker); idx >= 0 {
			return root, true
		}
	}
	return "", false
}
