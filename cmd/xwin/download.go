package main

import (
	"context"
	"flag"

	"github.com/wincrt/xwin/internal/cache"
	"github.com/wincrt/xwin/internal/fetch"
)

func cmddownload(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("download", flag.ExitOnError)
	c := registerCommon(fset)
	fset.Usage = usage(fset, "xwin download [-flags]\n\nResolves the package closure and downloads every payload into the cache, verifying hash and size. Does not decode or unpack archives.")
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
	_, err = fetchAndUnpack(ctx, logger, bc, f, pkgs, false)
	return err
}
