// Package vsix decodes VSIX packages (a ZIP archive with a VS-specific
// content layout), used for CRT payloads and generic VSIX packages
// (spec.md §4.C).
package vsix

import (
	"archive/zip"
	"io"
	"strings"

	kflate "github.com/klauspost/compress/flate"

	"github.com/wincrt/xwin"
	"github.com/wincrt/xwin/internal/container"
)

// contentsPrefix is the directory VSIX payloads of interest live under;
// it is stripped from every yielded Path.
const contentsPrefix = "Contents/"

func init() {
	// Swap in klauspost/compress's flate implementation for DEFLATE
	// decoding: it is a drop-in io.ReadCloser-returning decompressor,
	// faster than compress/flate for the tens of thousands of small
	// header files a CRT VSIX contains.
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return kflate.NewReader(r)
	})
}

// Reader iterates the logical files of a VSIX archive.
type Reader struct {
	path string // for error messages

	zr    *zip.Reader
	files []*zip.File
	idx   int
	cur   container.LogicalFile
	err   error
}

// Open opens a VSIX (ZIP) archive of the given size from r.
func Open(path string, r io.ReaderAt, size int64) (*Reader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &xwin.CorruptArchive{Path: path, Reason: err.Error()}
	}
	return &Reader{path: path, zr: zr, files: zr.File}, nil
}

// Next implements container.Iterator. Iteration follows archive order, as
// required by spec.md §4.C.
func (r *Reader) Next() bool {
	for r.idx < len(r.files) {
		f := r.files[r.idx]
		r.idx++

		if f.Method != zip.Deflate && f.Method != zip.Store {
			r.err = &xwin.UnsupportedArchive{Path: r.path, Reason: "only DEFLATE and stored entries are supported"}
			return false
		}

		name := normalize(f.Name)
		trimmed := strings.TrimPrefix(name, contentsPrefix)
		if trimmed == name {
			// Not under Contents/: tools, samples, localization, etc. —
			// not a file of interest to the splat stage (spec.md §4.G
			// stage 1 classification rejects these anyway, but skipping
			// here keeps the iterator's output focused on payload
			// content).
			continue
		}
		if strings.HasSuffix(trimmed, "/") {
			continue // directory entry
		}

		f := f // capture for closure
		r.cur = container.LogicalFile{
			Path: trimmed,
			Size: int64(f.UncompressedSize64),
			Open: func() (io.ReadCloser, error) {
				return f.Open()
			},
		}
		return true
	}
	return false
}

// normalize converts Windows-style backslashes to forward slashes, as
// required by spec.md §4.C ("may include Windows-style backslashes —
// normalize to /").
func normalize(name string) string {
	return strings.ReplaceAll(name, `\`, "/")
}

func (r *Reader) File() container.LogicalFile { return r.cur }
func (r *Reader) Err() error                  { return r.err }
func (r *Reader) Close() error                { return nil }

var _ container.Iterator = (*Reader)(nil)
