package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/wincrt/xwin"
	internaltrace "github.com/wincrt/xwin/internal/trace"
)

var (
	debug      = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")
	ctracefile = flag.String("ctracefile", "", "path to store a chrome trace event file at (load in chrome://tracing)")
)

func funcmain() (int, error) {
	flag.Parse()

	if *ctracefile != "" {
		f, err := os.Create(*ctracefile)
		if err != nil {
			return 1, err
		}
		internaltrace.Sink(f)
	}

	type cmd struct {
		fn func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"list":     {cmdlist},
		"download": {cmddownload},
		"unpack":   {cmdunpack},
		"splat":    {cmdsplat},
		"minimize": {cmdminimize},
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "xwin [-flags] <command> [-flags] <args>")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "\tlist     - print the resolved package closure as a table")
		fmt.Fprintln(os.Stderr, "\tdownload - fetch and verify every package payload")
		fmt.Fprintln(os.Stderr, "\tunpack   - download, then decode every package into the cache")
		fmt.Fprintln(os.Stderr, "\tsplat    - run the full pipeline and write a sysroot tree")
		fmt.Fprintln(os.Stderr, "\tminimize - reduce a build trace to a usage map")
		return 2, nil
	}
	verb, rest := args[0], args[1:]

	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintln(os.Stderr, "syntax: xwin <command> [options]")
		return 2, nil
	}

	ctx, canc := xwin.InterruptibleContext()
	defer canc()

	if err := v.fn(ctx, rest); err != nil {
		if ue, ok := err.(*xwin.UserError); ok {
			return 2, ue
		}
		if *debug {
			return 1, fmt.Errorf("%s: %+v", verb, err)
		}
		return 1, fmt.Errorf("%s: %v", verb, err)
	}

	if err := xwin.RunAtExit(); err != nil {
		return 1, err
	}
	return 0, nil
}

func main() {
	code, err := funcmain()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}
