// Package cache implements the content-addressed blob store described in
// spec.md §4.A: payload blobs are written atomically under dl/, keyed by
// their SHA-256 hex digest, and concurrent writers for the same hash never
// observe a torn file.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio"

	"github.com/wincrt/xwin"
)

// Cache is a content-addressed blob store rooted at Dir.
type Cache struct {
	Dir string

	mu     sync.Mutex
	hashMu map[string]*sync.Mutex
}

// New returns a Cache rooted at dir, creating dl/, unpack/ and the root
// itself if they do not yet exist.
func New(dir string) (*Cache, error) {
	for _, sub := range []string{"", "dl", "unpack"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, err
		}
	}
	return &Cache{Dir: dir, hashMu: make(map[string]*sync.Mutex)}, nil
}

// BlobPath returns the path a blob with the given SHA-256 hex digest would
// be stored at, whether or not it exists yet.
func (c *Cache) BlobPath(hash string) string {
	return filepath.Join(c.Dir, "dl", hash)
}

// UnpackDir returns the directory a package's unpacked payload tree is
// stored under (spec.md §3 Cache layout: unpack/<package-key>/).
func (c *Cache) UnpackDir(packageKey string) string {
	return filepath.Join(c.Dir, "unpack", packageKey)
}

// Has reports whether a blob with the given hash is already present.
func (c *Cache) Has(hash string) bool {
	_, err := os.Stat(c.BlobPath(hash))
	return err == nil
}

// lockFor returns the mutex serializing get_or_insert calls for hash,
// creating it on first use. This coordinates concurrent producers for the
// same hash without requiring a separate lock service (spec.md §4.A: "at
// most one thread writes a given cache hash at a time").
func (c *Cache) lockFor(hash string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	mu, ok := c.hashMu[hash]
	if !ok {
		mu = &sync.Mutex{}
		c.hashMu[hash] = mu
	}
	return mu
}

// GetOrInsert returns the path to the blob named hash, producing it by
// calling produce(w) if it does not already exist. produce must write
// exactly size bytes whose SHA-256 digest is hash; GetOrInsert verifies
// both while streaming the write to a temp sibling of the final path and
// only renames it into place atomically once verification succeeds. On a
// hash or size mismatch the temp file is discarded and an
// *xwin.IntegrityError is returned; losers of a concurrent race for the
// same hash observe the winner's final file.
func (c *Cache) GetOrInsert(hash string, size int64, produce func(w io.Writer) error) (string, error) {
	dest := c.BlobPath(hash)
	mu := c.lockFor(hash)
	mu.Lock()
	defer mu.Unlock()

	if st, err := os.Stat(dest); err == nil {
		if st.Size() != size {
			return "", &xwin.IntegrityError{Path: dest, ExpectedSize: size, ActualSize: st.Size()}
		}
		return dest, nil
	}

	t, err := renameio.TempFile("", dest)
	if err != nil {
		return "", err
	}
	defer t.Cleanup()

	h := sha256.New()
	var written int64
	cw := &countingHasher{w: io.MultiWriter(t, h), n: &written}
	if err := produce(cw); err != nil {
		return "", err
	}

	actualHash := hex.EncodeToString(h.Sum(nil))
	if actualHash != hash {
		return "", &xwin.IntegrityError{Path: dest, ExpectedHash: hash, ActualHash: actualHash}
	}
	if written != size {
		return "", &xwin.IntegrityError{Path: dest, ExpectedSize: size, ActualSize: written}
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return "", err
	}
	return dest, nil
}

type countingHasher struct {
	w io.Writer
	n *int64
}

func (c *countingHasher) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	*c.n += int64(n)
	return n, err
}

// Read opens the blob named hash for reading.
func (c *Cache) Read(hash string) (io.ReadCloser, error) {
	return os.Open(c.BlobPath(hash))
}

// Remove deletes a blob, used to force a re-fetch after an integrity
// failure (spec.md §7: "Integrity errors on downloads trigger one
// re-fetch (the cached blob is removed first)").
func (c *Cache) Remove(hash string) error {
	err := os.Remove(c.BlobPath(hash))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
