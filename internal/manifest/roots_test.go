package manifest

import (
	"strings"
	"testing"

	"github.com/wincrt/xwin"
)

func TestRootIDsCRTAndSDK(t *testing.T) {
	sel := xwin.Selection{Archs: []xwin.Arch{xwin.ArchX86_64}}
	ids := RootIDs(sel)

	want := "Microsoft.VC." + vsVersion + ".CRT.amd64.Desktop"
	if !contains(ids, want) {
		t.Fatalf("RootIDs() = %v, want to contain %q", ids, want)
	}
	if contains(ids, "Microsoft.VC."+vsVersion+".CRT.amd64.Desktop.debug") {
		t.Fatal("debug libs should not be selected by default")
	}
}

func TestRootIDsDebugAndATL(t *testing.T) {
	sel := xwin.Selection{
		Archs:            []xwin.Arch{xwin.ArchX86_64},
		IncludeDebugLibs: true,
		IncludeATL:       true,
	}
	ids := RootIDs(sel)
	if !contains(ids, "Microsoft.VC."+vsVersion+".CRT.amd64.Desktop.debug") {
		t.Fatal("expected debug CRT id when IncludeDebugLibs is set")
	}
	found := false
	for _, id := range ids {
		if strings.HasPrefix(id, "Microsoft.VC."+vsVersion+".ATL") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an ATL id when IncludeATL is set")
	}
}

func contains(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
