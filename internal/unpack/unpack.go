// Package unpack drives a container decoder (vsix or msi) over a cached
// payload blob and materializes its logical files under
// unpack/<package-key>/, recording a manifest that serves as the
// idempotency witness for re-runs (spec.md §4.F).
package unpack

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/renameio"
	"golang.org/x/exp/mmap"

	"github.com/wincrt/xwin"
	"github.com/wincrt/xwin/internal/container"
	"github.com/wincrt/xwin/internal/container/msi"
	"github.com/wincrt/xwin/internal/container/vsix"
)

const manifestName = ".xwin-unpack-manifest"

// FileRecord is one entry of a package's unpack manifest: a logical path
// relative to the package's unpack directory, and its size.
type FileRecord struct {
	Path string
	Size int64
}

// Package bundles what Unpack needs to know about one payload: where its
// cached blob lives on disk, its content hash, and the directory key to
// unpack it under.
type Package struct {
	Key         string // package id + version + chip, used as the directory name
	BlobPath    string // path to the cached, verified payload blob
	PayloadHash string // the blob's content hash, stored in the manifest for staleness checks
}

// Dir returns the directory a package's files are (or will be) unpacked
// into under root.
func Dir(root, key string) string { return filepath.Join(root, key) }

// IsUnpacked reports whether pkg's unpack directory already carries a
// manifest matching payloadHash — spec.md §4.F's "presence of this
// manifest is the cache's unpacked witness... re-running unpack is a
// no-op when the manifest is present and the payload hash matches".
func IsUnpacked(root string, pkg Package) bool {
	hash, _, err := readManifest(filepath.Join(Dir(root, pkg.Key), manifestName))
	return err == nil && hash == pkg.PayloadHash
}

// Unpack extracts pkg's blob into root/pkg.Key, first into a scratch
// directory, then an atomic rename into place — mirroring
// internal/build/build.go's Extract (extract into a temp dir, verify,
// rename over the final location) rather than writing member-by-member
// directly into a possibly-stale directory.
func Unpack(root string, pkg Package) ([]FileRecord, error) {
	dir := Dir(root, pkg.Key)
	if IsUnpacked(root, pkg) {
		_, records, err := readManifest(filepath.Join(dir, manifestName))
		return records, err
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, &xwin.FilesystemError{Path: dir, Err: err}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &xwin.FilesystemError{Path: root, Err: err}
	}
	tmp, err := ioutil.TempDir(root, "unpack-")
	if err != nil {
		return nil, &xwin.FilesystemError{Path: root, Err: err}
	}
	defer os.RemoveAll(tmp)

	it, err := openDecoder(pkg.BlobPath)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var records []FileRecord
	for it.Next() {
		lf := it.File()
		dest := filepath.Join(tmp, filepath.FromSlash(lf.Path))
		if err := writeLogicalFile(dest, lf); err != nil {
			return nil, err
		}
		records = append(records, FileRecord{Path: lf.Path, Size: lf.Size})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	if err := writeManifest(filepath.Join(tmp, manifestName), pkg.PayloadHash, records); err != nil {
		return nil, err
	}

	if err := os.Rename(tmp, dir); err != nil {
		return nil, &xwin.FilesystemError{Path: dir, Err: err}
	}
	return records, nil
}

func writeLogicalFile(dest string, lf container.LogicalFile) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &xwin.FilesystemError{Path: dest, Err: err}
	}
	rc, err := lf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := renameio.TempFile("", dest)
	if err != nil {
		return &xwin.FilesystemError{Path: dest, Err: err}
	}
	defer w.Cleanup()
	if _, err := io.Copy(w, rc); err != nil {
		return &xwin.FilesystemError{Path: dest, Err: err}
	}
	if err := w.CloseAtomicallyReplace(); err != nil {
		return &xwin.FilesystemError{Path: dest, Err: err}
	}
	return nil
}

// openDecoder picks vsix or msi by the blob's leading signature bytes
// ("PK" for ZIP, D0 CF 11 E0 for an OLE compound file): cached blobs are
// named by hash and carry no suffix, so the suffix match on the payload's
// file name happens earlier, in cmd/xwin's archivePayload. The blob is
// mapped rather than streamed, the same
// way internal/install.go mmaps `.squashfs` files before handing them to a
// binary-format reader: both VSIX central-directory lookups and MSI's
// sector-chasing need random access, not a forward-only stream.
func openDecoder(blobPath string) (container.Iterator, error) {
	r, err := mmap.Open(blobPath)
	if err != nil {
		return nil, &xwin.FilesystemError{Path: blobPath, Err: err}
	}
	size := int64(r.Len())

	magic := make([]byte, 4)
	n, rerr := r.ReadAt(magic, 0)
	if rerr != nil && rerr != io.EOF {
		r.Close()
		return nil, &xwin.CorruptArchive{Path: blobPath, Reason: "too short to identify"}
	}
	magic = magic[:n]

	switch {
	case len(magic) >= 2 && string(magic[:2]) == "PK":
		it, err := vsix.Open(blobPath, r, size)
		if err != nil {
			r.Close()
			return nil, err
		}
		return &closingIterator{Iterator: it, c: r}, nil
	case len(magic) == 4 && string(magic) == "\xD0\xCF\x11\xE0":
		it, err := msi.Open(blobPath, r, size)
		if err != nil {
			r.Close()
			return nil, err
		}
		return &closingIterator{Iterator: it, c: r}, nil
	default:
		r.Close()
		return nil, &xwin.UnsupportedArchive{Path: blobPath, Reason: "unrecognized container signature"}
	}
}

// closingIterator closes the backing mapped file alongside the decoder.
type closingIterator struct {
	container.Iterator
	c io.Closer
}

func (c *closingIterator) Close() error {
	err := c.Iterator.Close()
	if cerr := c.c.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeManifest(path, payloadHash string, records []FileRecord) error {
	w, err := renameio.TempFile("", path)
	if err != nil {
		return &xwin.FilesystemError{Path: path, Err: err}
	}
	defer w.Cleanup()
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "hash %s\n", payloadHash)
	for _, r := range records {
		fmt.Fprintf(bw, "%d %s\n", r.Size, r.Path)
	}
	if err := bw.Flush(); err != nil {
		return &xwin.FilesystemError{Path: path, Err: err}
	}
	return w.CloseAtomicallyReplace()
}

func readManifest(path string) (hash string, records []FileRecord, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "hash ") {
			hash = strings.TrimPrefix(line, "hash ")
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		size, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			continue
		}
		records = append(records, FileRecord{Path: parts[1], Size: size})
	}
	return hash, records, sc.Err()
}
