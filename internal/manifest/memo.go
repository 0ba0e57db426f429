package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/wincrt/xwin"
)

// resolvedCache is the on-disk shape of ctx.json (spec.md §3 Cache layout:
// "ctx.json — memoized manifest resolution (optional)").
type resolvedCache struct {
	Digest   string    `json:"digest"`
	Packages []Package `json:"packages"`
}

// closureDigest fingerprints the inputs that determine a closure's result:
// the resolved package list (order-sensitive, so a JSON marshal of it
// doubles as a content fingerprint of the manifest document itself), the
// root id list (order matters: it's the selection's channel-derived root
// set) and the selection tuple.
func closureDigest(pkgs []Package, roots []string, sel xwin.Selection) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	if err := enc.Encode(pkgs); err != nil {
		return "", err
	}
	for _, r := range roots {
		h.Write([]byte{0})
		h.Write([]byte(r))
	}
	fmt.Fprintf(h, "\x00%v", sel)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ResolveCached resolves pkgs's dependency closure for roots, memoizing the
// result in <cacheDir>/ctx.json keyed by closureDigest. A digest match skips
// re-running Closure entirely; any cache miss, decode failure, digest
// error, or stale digest falls back to a fresh Closure call and rewrites
// the memo. The memo is advisory: a read or write failure never fails
// resolution, only the speedup it would have provided.
func ResolveCached(cacheDir string, pkgs []Package, roots []string, sel xwin.Selection) ([]Package, error) {
	path := filepath.Join(cacheDir, "ctx.json")
	digest, derr := closureDigest(pkgs, roots, sel)
	if derr != nil {
		return Closure(pkgs, roots)
	}

	if data, err := ioutil.ReadFile(path); err == nil {
		var rc resolvedCache
		if json.Unmarshal(data, &rc) == nil && rc.Digest == digest {
			return rc.Packages, nil
		}
	}

	out, err := Closure(pkgs, roots)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(resolvedCache{Digest: digest, Packages: out}); err == nil {
		if os.MkdirAll(cacheDir, 0755) == nil {
			renameio.WriteFile(path, data, 0644)
		}
	}
	return out, nil
}
