// Package msi decodes Windows Installer (.msi) packages: an OLE compound
// file holding database tables plus one or more embedded CAB cabinets
// (spec.md §4.C). It resolves each File table row to the install-time
// directory tree described by the Directory/Component tables, matches it
// to its compressed bytes in the cabinet named by the Media table, and
// yields the result through the same container.Iterator used by the
// VSIX decoder.
package msi

import (
	"bytes"
	"io"
	"io/ioutil"
	"sort"
	"strings"

	"github.com/wincrt/xwin"
	"github.com/wincrt/xwin/internal/container"
)

// msidbFileAttributesNoncompressed is the File.Attributes bit documented by
// the Windows Installer SDK: the file's bytes are not packed into a
// cabinet, so the cabinet/Media lookup in Open must be skipped for it
// (spec.md §4.C).
const msidbFileAttributesNoncompressed = 0x2000

// Reader iterates the logical files of an MSI package in lexical order
// by resolved path, as required by spec.md §4.C.
type Reader struct {
	path    string
	entries []resolvedFile
	idx     int
	cur     container.LogicalFile
	err     error
}

type resolvedFile struct {
	path string
	size int64
	open func() (io.ReadCloser, error)
}

// Open parses the MSI container in r (size bytes long) and resolves
// every File table row to its target path and cabinet-backed content.
func Open(path string, r io.ReaderAt, size int64) (*Reader, error) {
	ole, err := openCompoundFile(path, r, size)
	if err != nil {
		return nil, err
	}
	dirs, comps, files, media, err := loadTables(ole, path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return &Reader{path: path}, nil
	}

	dirByID := make(map[string]DirectoryRow, len(dirs))
	for _, d := range dirs {
		dirByID[d.Directory] = d
	}
	pathCache := make(map[string]string, len(dirs))
	var resolveDir func(id string) string
	resolveDir = func(id string) string {
		if id == "" || id == "TARGETDIR" {
			return ""
		}
		if p, ok := pathCache[id]; ok {
			return p
		}
		d, ok := dirByID[id]
		if !ok {
			return ""
		}
		name := longName(d.DefaultDir)
		parent := resolveDir(d.DirectoryParent)
		p := name
		if parent != "" {
			p = parent + "/" + name
		}
		if name == "." || name == "" {
			p = parent
		}
		pathCache[id] = p
		return p
	}

	dirOfComponent := make(map[string]string, len(comps))
	for _, c := range comps {
		dirOfComponent[c.Component] = c.Directory
	}

	sortedMedia := append([]MediaRow(nil), media...)
	sort.Slice(sortedMedia, func(i, j int) bool { return sortedMedia[i].LastSequence < sortedMedia[j].LastSequence })

	cabEntries := make(map[int16]map[string]Entry) // keyed by media index into sortedMedia
	entryFor := func(mediaIdx int, fileID string) (Entry, bool, error) {
		m, ok := cabEntries[int16(mediaIdx)]
		if !ok {
			cab := sortedMedia[mediaIdx].Cabinet
			if !strings.HasPrefix(cab, "#") {
				return Entry{}, false, &xwin.UnsupportedArchive{Path: path, Reason: "external (non-embedded) cabinet " + cab + " is not supported"}
			}
			raw, err := ole.Stream(cab)
			if err != nil {
				return Entry{}, false, &xwin.MissingCabinet{Name: cab}
			}
			entries, err := DecodeCabinet(path, raw)
			if err != nil {
				return Entry{}, false, err
			}
			m = make(map[string]Entry, len(entries))
			for _, e := range entries {
				m[e.Name] = e
			}
			cabEntries[int16(mediaIdx)] = m
		}
		e, ok := m[fileID]
		return e, ok, nil
	}

	var resolved []resolvedFile
	for _, f := range files {
		dirID := dirOfComponent[f.Component]
		dir := resolveDir(dirID)
		name := longName(f.FileName)
		full := name
		if dir != "" {
			full = dir + "/" + name
		}

		if f.Attributes&msidbFileAttributesNoncompressed != 0 {
			// Stored loose rather than cabinet-packed: the bytes live in a
			// top-level stream of their own, named by packing the File
			// key the same way every other stream name in this container
			// is packed (names.go), just without the table-stream marker.
			data, err := ole.Stream(packName(f.File))
			if err != nil {
				return nil, &xwin.CorruptArchive{Path: path, Reason: "uncompressed stream missing for file " + f.File}
			}
			resolved = append(resolved, resolvedFile{
				path: full,
				size: int64(len(data)),
				open: func() (io.ReadCloser, error) { return ioutil.NopCloser(bytes.NewReader(data)), nil },
			})
			continue
		}

		mediaIdx := sort.Search(len(sortedMedia), func(i int) bool { return sortedMedia[i].LastSequence >= f.Sequence })
		if mediaIdx >= len(sortedMedia) {
			return nil, &xwin.CorruptArchive{Path: path, Reason: "File.Sequence exceeds every Media.LastSequence"}
		}
		entry, ok, err := entryFor(mediaIdx, f.File)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &xwin.CorruptArchive{Path: path, Reason: "cabinet entry missing for file " + f.File}
		}
		entryCopy := entry
		resolved = append(resolved, resolvedFile{
			path: full,
			size: entryCopy.Size,
			open: entryCopy.Open,
		})
	}

	sort.Slice(resolved, func(i, j int) bool { return resolved[i].path < resolved[j].path })
	return &Reader{path: path, entries: resolved}, nil
}

// longName extracts the long-filename half of an MSI "short|long" packed
// name column (Directory.DefaultDir, File.FileName); columns without a
// '|' hold only the long name.
func longName(packed string) string {
	if idx := strings.IndexByte(packed, '|'); idx >= 0 {
		return packed[idx+1:]
	}
	return packed
}

func (r *Reader) Next() bool {
	if r.idx >= len(r.entries) {
		return false
	}
	e := r.entries[r.idx]
	r.idx++
	r.cur = container.LogicalFile{Path: e.path, Size: e.size, Open: e.open}
	return true
}

func (r *Reader) File() container.LogicalFile { return r.cur }
func (r *Reader) Err() error                  { return r.err }
func (r *Reader) Close() error                { return nil }

var _ container.Iterator = (*Reader)(nil)
