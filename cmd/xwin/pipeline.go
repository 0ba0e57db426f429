package main

import (
	"context"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/xerrors"

	"github.com/wincrt/xwin"
	"github.com/wincrt/xwin/internal/cache"
	"github.com/wincrt/xwin/internal/fetch"
	"github.com/wincrt/xwin/internal/manifest"
	"github.com/wincrt/xwin/internal/splat"
	"github.com/wincrt/xwin/internal/unpack"
	"github.com/wincrt/xwin/internal/work"
)

// defaultChannelURL is the well-known Visual Studio "current release"
// channel document every xwin-style tool defaults to.
const defaultChannelURL = "https://aka.ms/vs/17/release/channel"

// archivePayload picks pkg's primary archive payload: the first one whose
// filename matches a known container suffix (spec.md §4.F).
func archivePayload(pkg manifest.Package) (manifest.Payload, bool) {
	for _, p := range pkg.Payloads {
		lower := strings.ToLower(p.FileName)
		if strings.HasSuffix(lower, ".vsix") || strings.HasSuffix(lower, ".msi") {
			return p, true
		}
	}
	if len(pkg.Payloads) > 0 {
		return pkg.Payloads[0], true
	}
	return manifest.Payload{}, false
}

// packageKey names a package's unpack directory; sanitized because
// manifest ids contain characters (spaces, parens) that are awkward as
// path components on some filesystems.
func packageKey(pkg manifest.Package) string {
	key := pkg.ID + "-" + pkg.Version
	if pkg.Chip != "" {
		key += "-" + pkg.Chip
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}

// archFromChip reverses xwin.Architectures to recover the Arch a
// manifest's chip string names, or "" for architecture-neutral packages
// (e.g. headers-only packages have no chip).
func archFromChip(chip string) xwin.Arch {
	for a, chips := range xwin.Architectures {
		for _, c := range chips {
			if c == chip {
				return a
			}
		}
	}
	return ""
}

// resolvePackages runs manifest resolution (spec.md §4.D steps 1-6): load
// the package list (from --manifest or the CDN channel), expand the
// selection into root ids, and compute the dependency closure. The
// closure itself is memoized in the cache root's ctx.json (spec.md §3), so
// repeated invocations with an unchanged manifest and selection skip
// re-walking the dependency graph.
func resolvePackages(ctx context.Context, f *fetch.Fetcher, c *common) ([]manifest.Package, error) {
	var pkgs []manifest.Package
	if c.manifestFile != "" {
		b, err := ioutil.ReadFile(c.manifestFile)
		if err != nil {
			return nil, err
		}
		pkgs, err = manifest.ParseManifest(b)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		pkgs, err = manifest.ResolveChannel(ctx, f, defaultChannelURL)
		if err != nil {
			return nil, err
		}
	}

	roots := manifest.RootIDs(c.selection())
	dir, err := c.resolveCacheDir()
	if err != nil {
		return manifest.Closure(pkgs, roots)
	}
	return manifest.ResolveCached(dir, pkgs, roots, c.selection())
}

// fetchAndUnpack runs the work-scheduler stage (spec.md §4.E) over the
// resolved closure: every package's primary payload is downloaded into bc,
// then (when doUnpack is set) unpacked under bc's unpack/ tree. It returns
// the package-key of every package that has a payload, in closure order,
// whether or not doUnpack is set.
func fetchAndUnpack(ctx context.Context, logger *log.Logger, bc *cache.Cache, f *fetch.Fetcher, pkgs []manifest.Package, doUnpack bool) ([]string, error) {
	type jobInfo struct {
		key string
		has bool
	}
	infos := make([]jobInfo, len(pkgs))
	jobs := make([]work.PackageJob, 0, len(pkgs))

	for i, pkg := range pkgs {
		pkg := pkg
		payload, ok := archivePayload(pkg)
		if !ok {
			// Group/Component entries that exist only to carry
			// dependencies have no payload of their own.
			continue
		}
		key := packageKey(pkg)
		infos[i] = jobInfo{key: key, has: true}

		job := work.PackageJob{
			ID:         pkg.ID,
			Version:    pkg.Version,
			TotalBytes: payload.Size,
			Download: func(ctx context.Context, progress func(delta int64)) error {
				return fetchPayload(ctx, bc, f, payload, progress)
			},
		}
		if doUnpack {
			job.Unpack = func(ctx context.Context) error {
				_, err := unpack.Unpack(unpackRoot(bc), unpack.Package{
					Key:         key,
					BlobPath:    bc.BlobPath(payload.SHA256),
					PayloadHash: payload.SHA256,
				})
				return err
			}
		}
		jobs = append(jobs, job)
	}

	sched := &work.Scheduler{Workers: schedulerWorkers()}
	var firstErr error
	for res := range sched.Run(ctx, jobs) {
		if res.Err != nil {
			if firstErr == nil {
				firstErr = xerrors.Errorf("%s %s: %w", res.Job.ID, res.Job.Version, res.Err)
			}
			continue
		}
		logger.Printf("%s %s: done", res.Job.ID, res.Job.Version)
	}
	if firstErr != nil {
		return nil, firstErr
	}

	keys := make([]string, 0, len(infos))
	for _, inf := range infos {
		if inf.has {
			keys = append(keys, inf.key)
		}
	}
	return keys, nil
}

func unpackRoot(bc *cache.Cache) string { return filepath.Join(bc.Dir, "unpack") }

// fetchPayload downloads payload into bc, retrying once on an integrity
// failure after evicting the bad blob (spec.md §7: "Integrity errors on
// downloads trigger one re-fetch").
func fetchPayload(ctx context.Context, bc *cache.Cache, f *fetch.Fetcher, payload manifest.Payload, progress func(delta int64)) error {
	produce := func(w io.Writer) error {
		_, err := f.Get(ctx, payload.URL, progressWriter{w: w, progress: progress})
		return err
	}
	_, err := bc.GetOrInsert(payload.SHA256, payload.Size, produce)
	if _, ok := err.(*xwin.IntegrityError); ok {
		if rerr := bc.Remove(payload.SHA256); rerr != nil {
			return err
		}
		_, err = bc.GetOrInsert(payload.SHA256, payload.Size, produce)
	}
	return err
}

// schedulerWorkers bounds the download/unpack worker pool at the host's
// CPU count (spec.md §4.E default).
func schedulerWorkers() int { return runtime.NumCPU() }

type progressWriter struct {
	w        io.Writer
	progress func(delta int64)
}

func (p progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if p.progress != nil {
		p.progress(int64(n))
	}
	return n, err
}

// collectSourceFiles walks every unpacked package directory and turns its
// files into splat.SourceFile records, feeding the splat engine (spec.md
// §4.G stage 1 input).
func collectSourceFiles(bc *cache.Cache, pkgs []manifest.Package, keys []string) ([]splat.SourceFile, error) {
	byKey := make(map[string]manifest.Package, len(pkgs))
	for _, pkg := range pkgs {
		byKey[packageKey(pkg)] = pkg
	}

	var out []splat.SourceFile
	for _, key := range keys {
		pkg := byKey[key]
		dir := unpack.Dir(unpackRoot(bc), key)
		err := filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() || fi.Name() == ".xwin-unpack-manifest" {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			relSlash := filepath.ToSlash(rel)
			size := fi.Size()
			out = append(out, splat.SourceFile{
				PackageID: pkg.ID,
				Arch:      archFromChip(pkg.Chip),
				Path:      relSlash,
				Size:      size,
				Open:      func() (io.ReadCloser, error) { return os.Open(path) },
			})
			return nil
		})
		if err != nil {
			return nil, &xwin.FilesystemError{Path: dir, Err: err}
		}
	}
	return out, nil
}
