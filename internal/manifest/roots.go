package manifest

import (
	"fmt"

	"github.com/wincrt/xwin"
)

// vsVersion is the CRT package family version embedded in VS manifest ids
// (e.g. "Microsoft.VC.14.36.17.6.CRT.x64.Desktop"); every recent VS 2022
// channel uses this family, so it is fixed here rather than threaded
// through Selection — a later VS major version bump would need a new
// constant, the same way spec.md §9 calls out SDK package-id drift as an
// ongoing maintenance fact of this domain rather than something to design
// around up front.
const vsVersion = "14.36.17.6"

// RootIDs expands a Selection into the VS manifest id patterns spec.md
// §4.D step 4 names for CRT, SDK and (optionally) ATL packages.
func RootIDs(sel xwin.Selection) []string {
	var ids []string
	ids = append(ids, crtRootIDs(sel)...)
	ids = append(ids, sdkRootIDs(sel)...)
	if sel.IncludeATL {
		ids = append(ids, atlRootIDs(sel)...)
	}
	return ids
}

func crtRootIDs(sel xwin.Selection) []string {
	ids := []string{fmt.Sprintf("Microsoft.VC.%s.CRT.Headers", vsVersion)}
	for _, arch := range sel.Archs {
		archID := archManifestID(arch)
		ids = append(ids, fmt.Sprintf("Microsoft.VC.%s.CRT.%s.Desktop", vsVersion, archID))
		if sel.HasVariant(xwin.VariantOneCore) {
			ids = append(ids, fmt.Sprintf("Microsoft.VC.%s.CRT.%s.Store", vsVersion, archID))
		}
		if sel.IncludeDebugLibs {
			ids = append(ids, fmt.Sprintf("Microsoft.VC.%s.CRT.%s.Desktop.debug", vsVersion, archID))
		}
		if sel.HasVariant(xwin.VariantSpectre) {
			ids = append(ids, fmt.Sprintf("Microsoft.VC.%s.CRT.%s.Desktop.Spectre", vsVersion, archID))
		}
	}
	return ids
}

func sdkRootIDs(sel xwin.Selection) []string {
	ids := []string{
		"Windows SDK Desktop Headers x86-x86_en-us.msi",
		"Universal CRT Headers Libraries and Sources-x86_en-us.msi",
		"Windows SDK for Windows Store Apps Headers-x86_en-us.msi",
		"Windows SDK for Windows Store Apps Tools-x86_en-us.msi",
		"Windows SDK Desktop Tools x86-x86_en-us.msi",
		"Windows SDK AppCompat Tools-x86_en-us.msi",
		"Windows SDK Signing Tools-x86_en-us.msi",
	}
	for _, arch := range sel.Archs {
		archID := archManifestID(arch)
		ids = append(ids, fmt.Sprintf("Windows SDK Desktop Libs %s-x86_en-us.msi", archID))
		if sel.HasVariant(xwin.VariantOneCore) {
			ids = append(ids, fmt.Sprintf("Universal CRT Headers Libraries and Sources-%s_en-us.msi", archID))
		}
	}
	return ids
}

func atlRootIDs(sel xwin.Selection) []string {
	ids := []string{fmt.Sprintf("Microsoft.VC.%s.ATL.Headers", vsVersion)}
	for _, arch := range sel.Archs {
		ids = append(ids, fmt.Sprintf("Microsoft.VC.%s.ATL.%s", vsVersion, archManifestID(arch)))
	}
	return ids
}

// archManifestID maps a Selection arch to the token the VS manifest uses
// in package ids (distinct from the chip token used in the payload
// filter, even though they're often the same string — see xwin.Arch.Chips
// for the latter).
func archManifestID(a xwin.Arch) string {
	switch a {
	case xwin.ArchX86:
		return "x86"
	case xwin.ArchX86_64:
		return "amd64"
	case xwin.ArchAarch:
		return "arm"
	case xwin.ArchAarch64:
		return "arm64"
	default:
		return string(a)
	}
}
