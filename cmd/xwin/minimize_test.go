package main

import (
	"strings"
	"testing"
)

func TestMinimizeTraceDedupesAndCanonicalizes(t *testing.T) {
	trace := strings.Join([]string{
		"/sysroot/crt/include/STDIO.H",
		"/sysroot/crt/include/stdio.h",
		"/sysroot/sdk/include/um/Windows.h",
		"/outside/root/unrelated.h",
	}, "\n")

	out, err := minimizeTrace(strings.NewReader(trace), "/sysroot")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"crt/include/stdio.h", "sdk/include/um/windows.h"}
	if len(out) != len(want) {
		t.Fatalf("got %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("got %v, want %v", out, want)
		}
	}
}

func TestMinimizeTraceIgnoresBlankLines(t *testing.T) {
	out, err := minimizeTrace(strings.NewReader("\n\n/sysroot/crt/include/a.h\n\n"), "/sysroot")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0] != "crt/include/a.h" {
		t.Fatalf("got %v", out)
	}
}
