// Package manifest parses a Visual Studio release channel document and
// its referenced VS manifest, and resolves a selection tuple (architectures,
// variants, optional components) to the closed set of packages that must
// be fetched (spec.md §4.D).
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/wincrt/xwin"
)

// Payload is one downloadable file belonging to a Package.
type Payload struct {
	URL      string `json:"url"`
	SHA256   string `json:"sha256"`
	Size     int64  `json:"size"`
	FileName string `json:"fileName"`
}

// Package is one entry of the VS manifest's package list. Unknown JSON
// fields are ignored by encoding/json by default, which is what spec.md
// §9's "Manifest schema drift" calls for — no explicit discard logic is
// needed beyond not declaring fields we don't use.
type Package struct {
	ID           string    `json:"id"`
	Version      string    `json:"version"`
	Type         string    `json:"type"` // Vsix, Msi, Exe, Component, Group, ...
	Language     string    `json:"language"`
	Chip         string    `json:"chip"`
	Payloads     []Payload `json:"payloads"`
	Dependencies map[string]struct {
		Chip   string   `json:"chip"`
		Select []string `json:"select"` // required sub-component ids
	} `json:"dependencies"`
}

// channelDoc is the top-level channel manifest: it exists only to point
// at the real VS manifest's URL and hash.
type channelDoc struct {
	ChannelItems []struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Payloads []struct {
			URL    string `json:"url"`
			SHA256 string `json:"sha256"`
		} `json:"payloads"`
	} `json:"channelItems"`
}

type vsManifestDoc struct {
	Packages []Package `json:"packages"`
}

// Fetcher is the subset of *fetch.Fetcher a manifest load needs; declared
// here so this package doesn't import internal/fetch, keeping the
// dependency direction the teacher uses throughout (narrow interfaces
// defined by the consumer, e.g. build.Ctx's GlobHook).
type Fetcher interface {
	Get(ctx context.Context, url string, sink io.Writer) (int64, error)
}

// ResolveChannel fetches the top-level channel document at channelURL,
// locates its embedded VS manifest item, and fetches that in turn,
// returning the parsed package list (spec.md §4.D steps 1-2).
func ResolveChannel(ctx context.Context, f Fetcher, channelURL string) ([]Package, error) {
	var buf bytes.Buffer
	if _, err := f.Get(ctx, channelURL, &buf); err != nil {
		return nil, err
	}
	var chanDoc channelDoc
	if err := json.Unmarshal(buf.Bytes(), &chanDoc); err != nil {
		return nil, &xwin.ManifestError{Reason: "channel document: " + err.Error()}
	}

	var manifestURL string
	for _, item := range chanDoc.ChannelItems {
		if item.Type != "Manifest" {
			continue
		}
		if len(item.Payloads) == 0 {
			continue
		}
		manifestURL = item.Payloads[0].URL
		break
	}
	if manifestURL == "" {
		return nil, &xwin.ManifestError{Reason: "channel document has no Manifest item"}
	}

	var mbuf bytes.Buffer
	if _, err := f.Get(ctx, manifestURL, &mbuf); err != nil {
		return nil, err
	}
	var doc vsManifestDoc
	if err := json.Unmarshal(mbuf.Bytes(), &doc); err != nil {
		return nil, &xwin.ManifestError{Reason: "vs manifest: " + err.Error()}
	}
	return doc.Packages, nil
}

// ParseManifest parses a VS manifest document already on disk, for
// --manifest <file> (spec.md §6), skipping the channel lookup entirely.
func ParseManifest(data []byte) ([]Package, error) {
	var doc vsManifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &xwin.ManifestError{Reason: "vs manifest: " + err.Error()}
	}
	return doc.Packages, nil
}
