package splat

import (
	"path"
	"strings"

	"github.com/wincrt/xwin"
)

// Mapped is a Classified file with its output path resolved (spec.md
// §4.G stage 3).
type Mapped struct {
	Classified
	OutputPath string
}

// msWinsysrootVersion names the VC toolset folder used by
// --preserve-ms-layout's VC/Tools/MSVC/<ver>/ tree. It tracks the same VS
// package family internal/manifest.vsVersion targets; the two are not the
// same value by construction (one is a manifest package-id fragment, the
// other an on-disk toolset folder name) so it is kept local rather than
// imported, but both need bumping together when a new VS release ships.
const msWinsysrootVersion = "14.36.17.6"

func mapPaths(files []Classified, preserveMS bool) []Mapped {
	out := make([]Mapped, 0, len(files))
	for _, f := range files {
		if f.Kind == KindIgnore {
			continue
		}
		var op string
		if preserveMS {
			op = msLayoutPath(f)
		} else {
			op = standardLayoutPath(f)
		}
		if op == "" {
			continue
		}
		out = append(out, Mapped{Classified: f, OutputPath: op})
	}
	return out
}

func standardLayoutPath(f Classified) string {
	switch f.Kind {
	case KindCRTHeader:
		return "crt/include/" + relAfter(f.Path, "include/")
	case KindCRTLib, KindCRTLibDebug:
		return "crt/lib/" + archDir(f.Arch) + "/" + path.Base(f.Path)
	case KindATLHeader:
		return "crt/atlmfc/include/" + relAfter(f.Path, "include/")
	case KindATLLib:
		return "crt/atlmfc/lib/" + archDir(f.Arch) + "/" + path.Base(f.Path)
	case KindUCRTHeader:
		return "sdk/include/ucrt/" + relAfter(f.Path, "include/")
	case KindUCRTLib:
		return "sdk/lib/ucrt/" + archDir(f.Arch) + "/" + path.Base(f.Path)
	case KindSDKHeader:
		return "sdk/include/" + f.SubRoot + "/" + relAfterSubRoot(f.Path, f.SubRoot)
	case KindSDKLib:
		return "sdk/lib/um/" + archDir(f.Arch) + "/" + path.Base(f.Path)
	default:
		return ""
	}
}

func msLayoutPath(f Classified) string {
	switch f.Kind {
	case KindCRTHeader:
		return "VC/Tools/MSVC/" + msWinsysrootVersion + "/include/" + relAfter(f.Path, "include/")
	case KindCRTLib, KindCRTLibDebug:
		return "VC/Tools/MSVC/" + msWinsysrootVersion + "/lib/" + msArchDir(f.Arch) + "/" + path.Base(f.Path)
	case KindATLHeader:
		return "VC/Tools/MSVC/" + msWinsysrootVersion + "/atlmfc/include/" + relAfter(f.Path, "include/")
	case KindATLLib:
		return "VC/Tools/MSVC/" + msWinsysrootVersion + "/atlmfc/lib/" + msArchDir(f.Arch) + "/" + path.Base(f.Path)
	case KindUCRTHeader:
		return "Windows Kits/10/Include/10.0/ucrt/" + relAfter(f.Path, "include/")
	case KindUCRTLib:
		return "Windows Kits/10/Lib/10.0/ucrt/" + msArchDir(f.Arch) + "/" + path.Base(f.Path)
	case KindSDKHeader:
		return "Windows Kits/10/Include/10.0/" + f.SubRoot + "/" + relAfterSubRoot(f.Path, f.SubRoot)
	case KindSDKLib:
		return "Windows Kits/10/Lib/10.0/um/" + msArchDir(f.Arch) + "/" + path.Base(f.Path)
	default:
		return ""
	}
}

// relAfter returns the part of p after the last occurrence of marker
// (case-insensitive), or the whole path if marker isn't found.
func relAfter(p, marker string) string {
	lower := strings.ToLower(p)
	idx := strings.LastIndex(lower, "/"+marker)
	if idx < 0 {
		if strings.HasPrefix(lower, marker) {
			return p[len(marker):]
		}
		return p
	}
	return p[idx+1+len(marker):]
}

func relAfterSubRoot(p, subRoot string) string {
	lower := strings.ToLower(p)
	marker := "/" + subRoot + "/"
	idx := strings.Index(lower, marker)
	if idx < 0 {
		return path.Base(p)
	}
	return p[idx+len(marker):]
}

func archDir(a xwin.Arch) string {
	if a == "" {
		return "x86_64"
	}
	return string(a)
}

// msArchDir maps to the token the real winsysroot layout uses (x64
// rather than x86_64, arm64 rather than aarch64).
func msArchDir(a xwin.Arch) string {
	switch a {
	case xwin.ArchX86_64:
		return "x64"
	case xwin.ArchAarch:
		return "arm"
	case xwin.ArchAarch64:
		return "arm64"
	case xwin.ArchX86, "":
		return "x86"
	default:
		return string(a)
	}
}
