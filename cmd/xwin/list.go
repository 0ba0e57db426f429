package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/wincrt/xwin/internal/fetch"
)

func cmdlist(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("list", flag.ExitOnError)
	c := registerCommon(fset)
	fset.Usage = usage(fset, "xwin list [-flags]\n\nResolves the package closure for the selection and prints it. No network fetch of payload bodies occurs beyond the manifest itself.")
	if err := fset.Parse(args); err != nil {
		return err
	}

	f, err := fetch.New(0, c.httpsProxy)
	if err != nil {
		return err
	}
	pkgs, err := resolvePackages(ctx, f, c)
	if err != nil {
		return err
	}

	if c.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pkgs)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVERSION\tTYPE\tCHIP")
	for _, p := range pkgs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Version, p.Type, p.Chip)
	}
	return tw.Flush()
}
