package cache_test

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wincrt/xwin/internal/cache"
)

func hashOf(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func TestGetOrInsert(t *testing.T) {
	dir, err := ioutil.TempDir("", "xwincache")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	c, err := cache.New(dir)
	if err != nil {
		t.Fatal(err)
	}

	content := []byte("hello, msvc\n")
	hash := hashOf(content)

	path, err := c.GetOrInsert(hash, int64(len(content)), func(w io.Writer) error {
		_, err := w.Write(content)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(content), string(got)); diff != "" {
		t.Fatalf("blob content mismatch (-want +got):\n%s", diff)
	}

	if path != c.BlobPath(hash) {
		t.Fatalf("GetOrInsert path = %s, want %s", path, c.BlobPath(hash))
	}
}

func TestGetOrInsertIntegrityMismatch(t *testing.T) {
	dir, err := ioutil.TempDir("", "xwincache")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	c, err := cache.New(dir)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.GetOrInsert("deadbeef", 5, func(w io.Writer) error {
		_, err := w.Write([]byte("wrong"))
		return err
	})
	if err == nil {
		t.Fatal("expected an integrity error, got nil")
	}
	if _, err := os.Stat(c.BlobPath("deadbeef")); !os.IsNotExist(err) {
		t.Fatalf("temp file with bad content should not have been renamed into place")
	}
}

// TestConcurrentGetOrInsertSameHash verifies that racing producers for the
// same hash never corrupt the final blob: every loser observes the
// winner's finished file (spec.md §4.A).
func TestConcurrentGetOrInsertSameHash(t *testing.T) {
	dir, err := ioutil.TempDir("", "xwincache")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	c, err := cache.New(dir)
	if err != nil {
		t.Fatal(err)
	}

	content := []byte("concurrent payload")
	hash := hashOf(content)

	var wg sync.WaitGroup
	paths := make([]string, 8)
	errs := make([]error, 8)
	for i := range paths {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			paths[i], errs[i] = c.GetOrInsert(hash, int64(len(content)), func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("producer %d: %v", i, err)
		}
		if paths[i] != filepath.Clean(c.BlobPath(hash)) && paths[i] != c.BlobPath(hash) {
			t.Fatalf("producer %d: path = %s, want %s", i, paths[i], c.BlobPath(hash))
		}
	}
	got, err := ioutil.ReadFile(c.BlobPath(hash))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("final blob content = %q, want %q", got, content)
	}
}
