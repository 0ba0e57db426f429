package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/wincrt/xwin/internal/cache"
	"github.com/wincrt/xwin/internal/fetch"
	"github.com/wincrt/xwin/internal/splat"
	"github.com/wincrt/xwin/internal/symlink"
)

func cmdsplat(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("splat", flag.ExitOnError)
	c := registerCommon(fset)
	output := fset.String("output", "./.xwin", "directory to write the sysroot tree to")
	disableSymlinks := fset.Bool("disable-symlinks", false, "skip the uppercase/mixed-case alias layer")
	preserveMSLayout := fset.Bool("preserve-ms-layout", false, "lay out files under the Microsoft-native VC/Tools + Windows Kits tree instead of crt/+sdk/")
	// --use-winsysroot-style is the /winsysroot-compatible spelling of
	// --preserve-ms-layout; xwin-style tools have only ever implemented
	// one Microsoft-native layout, so both flags drive the same switch.
	useWinsysrootStyle := fset.Bool("use-winsysroot-style", false, "alias for --preserve-ms-layout")
	usageMapPath := fset.String("map", "", "path to a usage map restricting output to referenced files plus their #include closure")
	fset.Usage = usage(fset, "xwin splat [-flags]\n\nRuns the full pipeline: resolve, download, unpack, classify/filter/canonicalize/dedupe/lowercase/emit, then the symlink/case alias layer.")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if err := requireLicense(c); err != nil {
		return err
	}

	dir, err := c.resolveCacheDir()
	if err != nil {
		return err
	}
	bc, err := cache.New(dir)
	if err != nil {
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

	logger := c.logger()
	keys, err := fetchAndUnpack(ctx, logger, bc, f, pkgs, true)
	if err != nil {
		return err
	}

	files, err := collectSourceFiles(bc, pkgs, keys)
	if err != nil {
		return err
	}

	var usageMap map[string]bool
	if *usageMapPath != "" {
		usageMap, err = readUsageMap(*usageMapPath)
		if err != nil {
			return err
		}
	}

	emitted, err := splat.Run(files, splat.Options{
		Selection:        c.selection(),
		OutputDir:        *output,
		UsageMap:         usageMap,
		PreserveMSLayout: *preserveMSLayout || *useWinsysrootStyle,
	})
	if err != nil {
		return err
	}

	paths := make([]string, len(emitted))
	for i, e := range emitted {
		paths[i] = e.Path
	}
	if err := symlink.Create(*output, paths, symlink.Options{Disabled: *disableSymlinks}); err != nil {
		return err
	}

	logger.Printf("wrote %d files to %s", len(emitted), *output)
	return nil
}

// readUsageMap parses spec.md §6's usage-map persisted format: newline
// separated canonicalized relative output paths.
func readUsageMap(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		m[line] = true
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading usage map %s: %w", path, err)
	}
	return m, nil
}
