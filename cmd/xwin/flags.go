package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strings"

	"github.com/wincrt/xwin"
	"github.com/wincrt/xwin/internal/env"
)

// archList and variantList implement flag.Value so --arch/--variant can be
// repeated (flag standard library has no built-in repeatable flag type).
type archList []xwin.Arch

func (l *archList) String() string {
	if l == nil {
		return ""
	}
	ss := make([]string, len(*l))
	for i, a := range *l {
		ss[i] = string(a)
	}
	return strings.Join(ss, ",")
}

func (l *archList) Set(v string) error {
	a, ok := xwin.ParseArch(v)
	if !ok {
		return fmt.Errorf("unrecognized --arch %q", v)
	}
	*l = append(*l, a)
	return nil
}

type variantList []xwin.Variant

func (l *variantList) String() string {
	if l == nil {
		return ""
	}
	ss := make([]string, len(*l))
	for i, v := range *l {
		ss[i] = string(v)
	}
	return strings.Join(ss, ",")
}

func (l *variantList) Set(v string) error {
	variant, ok := xwin.ParseVariant(v)
	if !ok {
		return fmt.Errorf("unrecognized --variant %q", v)
	}
	*l = append(*l, variant)
	return nil
}

// common holds the flags shared by every verb (spec.md §6 "Common flags").
type common struct {
	acceptLicense   bool
	archs           archList
	variants        variantList
	channel         string
	manifestVersion string
	manifestFile    string
	cacheDir        string
	temp            bool
	json            bool
	logLevel        string
	httpsProxy      string

	includeATL       bool
	includeDebugLibs bool
}

func registerCommon(fset *flag.FlagSet) *common {
	c := &common{}
	fset.BoolVar(&c.acceptLicense, "accept-license", false, "accept the Microsoft Software License Terms non-interactively")
	fset.Var(&c.archs, "arch", "target architecture (x86, x86_64, aarch, aarch64); repeatable")
	fset.Var(&c.variants, "variant", "package variant (desktop, onecore, spectre); repeatable")
	fset.StringVar(&c.channel, "channel", "release", "Visual Studio release channel name")
	fset.StringVar(&c.manifestVersion, "manifest-version", "", "manifest major[.minor] version (default: current)")
	fset.StringVar(&c.manifestFile, "manifest", "", "path to a local VS manifest JSON file, skipping the CDN channel lookup")
	fset.StringVar(&c.cacheDir, "cache-dir", env.CacheDir(), "directory to cache downloaded payloads and unpacked packages in")
	fset.BoolVar(&c.temp, "temp", false, "use a scratch cache directory under os.TempDir, removed on exit")
	fset.BoolVar(&c.json, "json", false, "emit machine-readable JSON instead of a table")
	fset.StringVar(&c.logLevel, "log-level", "info", "log verbosity: debug, info, warn, error")
	fset.StringVar(&c.httpsProxy, "https-proxy", env.HTTPSProxy(), "HTTPS proxy URL for CDN fetches")
	fset.BoolVar(&c.includeATL, "include-atl", false, "include ATL packages in the resolved closure")
	fset.BoolVar(&c.includeDebugLibs, "include-debug-libs", false, "include debug-build CRT packages in the resolved closure")
	return c
}

// selection is shared by every verb: it decides both which packages enter
// the manifest closure (internal/manifest.RootIDs) and which files survive
// the splat filter (spec.md §3 "Selection"), so include-atl/
// include-debug-libs must be common flags, not splat-only ones — resolving
// a closure without them would silently never fetch the packages splat
// later asks to keep.
func (c *common) selection() xwin.Selection {
	return xwin.Selection{
		Archs:            []xwin.Arch(c.archs),
		Variants:         []xwin.Variant(c.variants),
		IncludeATL:       c.includeATL,
		IncludeDebugLibs: c.includeDebugLibs,
	}
}

// logger returns a *log.Logger writing to stderr, or one discarding
// everything when logLevel asks for less output than "info" — the same
// Ctx.Log threading the teacher's batch.Ctx/install.Ctx use, just gated by
// a verbosity flag the teacher itself doesn't have.
func (c *common) logger() *log.Logger {
	switch c.logLevel {
	case "warn", "error":
		return log.New(ioutil.Discard, "", 0)
	default:
		return log.New(os.Stderr, "", log.Ltime)
	}
}

// resolveCacheDir applies --temp (spec.md §6), registering cleanup via
// xwin.RegisterAtExit the way cmd/distri's verbs register teardown hooks.
func (c *common) resolveCacheDir() (string, error) {
	if !c.temp {
		return c.cacheDir, nil
	}
	dir, err := ioutil.TempDir("", "xwin-cache-")
	if err != nil {
		return "", err
	}
	xwin.RegisterAtExit(func() error { return os.RemoveAll(dir) })
	return dir, nil
}
