package splat

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/wincrt/xwin"
)

// duplicateWhitelist lists output paths where a content mismatch between
// contributing packages is known and accepted; the most recently seen
// copy wins instead of failing the run (spec.md §4.G stage 4). Sourced
// from observed cross-package header drift in live Windows SDK releases.
var duplicateWhitelist = map[string]bool{
	"sdk/include/shared/appnotify.h": true,
}

type dedupedFile struct {
	lowercased
	Hash string
}

// dedupe keys files by OutputPath, which by this stage is already
// lowercased (splat.go's Run runs lowercaseAll before dedupe) so that two
// files differing only by case collide here instead of surviving past
// emit. Identical content collapses to one entry, differing content fails
// unless the path is whitelisted (spec.md §4.G stage 4).
func dedupe(files []lowercased) ([]dedupedFile, error) {
	byPath := make(map[string]dedupedFile, len(files))
	order := make([]string, 0, len(files))

	for _, f := range files {
		hash, err := hashFile(f)
		if err != nil {
			return nil, err
		}
		existing, ok := byPath[f.OutputPath]
		if !ok {
			byPath[f.OutputPath] = dedupedFile{lowercased: f, Hash: hash}
			order = append(order, f.OutputPath)
			continue
		}
		if existing.Hash == hash {
			continue // identical content: keep the first copy
		}
		if duplicateWhitelist[f.OutputPath] {
			byPath[f.OutputPath] = dedupedFile{lowercased: f, Hash: hash} // latest copy wins
			continue
		}
		return nil, &xwin.DuplicateContentConflict{
			Path:  f.OutputPath,
			HashA: existing.Hash,
			HashB: hash,
		}
	}

	out := make([]dedupedFile, len(order))
	for i, p := range order {
		out[i] = byPath[p]
	}
	return out, nil
}

func hashFile(f lowercased) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
