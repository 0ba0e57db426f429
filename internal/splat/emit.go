package splat

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/wincrt/xwin"
)

// emit is the single-threaded writer stage (spec.md §4.G stage 7): it
// owns the output path space, so unlike every earlier stage it does not
// fan out across the worker pool (internal/work's scheduler barrier
// exists precisely so splat sees a stable, complete input set here).
// Each file is read fully (to apply patchTable and compute its final
// hash for the snapshot-test contract) and written via
// renameio's temp-file-then-rename, matching every other atomic writer
// in this codebase (internal/cache, internal/unpack).
func emit(files []dedupedFile, outputDir string) ([]Emitted, error) {
	out := make([]Emitted, 0, len(files))
	for _, f := range files {
		dest := filepath.Join(outputDir, filepath.FromSlash(f.OutputPath))
		content, err := readAll(f)
		if err != nil {
			return nil, err
		}
		content = applyPatches(f.OutputPath, content)

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, &xwin.FilesystemError{Path: dest, Err: err}
		}
		w, err := renameio.TempFile("", dest)
		if err != nil {
			return nil, &xwin.FilesystemError{Path: dest, Err: err}
		}
		if _, err := w.Write(content); err != nil {
			w.Cleanup()
			return nil, &xwin.FilesystemError{Path: dest, Err: err}
		}
		if err := w.CloseAtomicallyReplace(); err != nil {
			return nil, &xwin.FilesystemError{Path: dest, Err: err}
		}

		h := sha256.Sum256(content)
		out = append(out, Emitted{
			Path: f.OutputPath,
			Size: int64(len(content)),
			Hash: hex.EncodeToString(h[:]),
		})
	}
	return out, nil
}

func readAll(f dedupedFile) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
