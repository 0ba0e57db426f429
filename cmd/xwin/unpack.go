package main

import (
	"context"
	"flag"

	"github.com/wincrt/xwin/internal/cache"
	"github.com/wincrt/xwin/internal/fetch"
)

func cmdunpack(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("unpack", flag.ExitOnError)
	c := registerCommon(fset)
	fset.Usage = usage(fset, "xwin unpack [-flags]\n\nResolves the package closure, downloads every payload and decodes it into the cache's unpack/ tree. Does not produce an output sysroot; use splat for that.")
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
	_, err = fetchAndUnpack(ctx, logger, bc, f, pkgs, true)
	return err
}
