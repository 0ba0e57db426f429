package msi

// MSI table streams are stored column-major: one value array per column,
// concatenated in column-definition order, rather than row by row. This
// file decodes the four tables the splat pipeline's unpack step needs —
// Directory, Component, File and Media — using their well-known fixed
// schemas rather than parsing the database's self-describing _Columns
// table, which this decoder never reads.

import (
	"encoding/binary"

	"github.com/wincrt/xwin"
)

const stringRefSize = 2 // assumes a string pool under 65536 entries

// stringPool resolves MSI string-table references to their text.
type stringPool struct {
	values []string
}

func readStringPool(poolRaw, dataRaw []byte) *stringPool {
	sp := &stringPool{values: []string{""}} // id 0 is always empty
	var off int
	for i := 0; i+4 <= len(poolRaw); i += 4 {
		length := binary.LittleEndian.Uint16(poolRaw[i:])
		if off+int(length) > len(dataRaw) {
			break
		}
		sp.values = append(sp.values, string(dataRaw[off:off+int(length)]))
		off += int(length)
	}
	return sp
}

func (sp *stringPool) get(id uint16) string {
	if int(id) >= len(sp.values) {
		return ""
	}
	return sp.values[id]
}

type column struct {
	name   string
	width  int // bytes per row
	isStr  bool
}

// columnSlice extracts column c's N raw row values out of a column-major
// table stream of the given row count.
func columnSlice(data []byte, cols []column, c int, rows int) []byte {
	off := 0
	for i := 0; i < c; i++ {
		off += cols[i].width * rows
	}
	w := cols[c].width
	end := off + w*rows
	if end > len(data) {
		end = len(data)
	}
	if off > end {
		return nil
	}
	return data[off:end]
}

func rowCount(data []byte, cols []column) int {
	width := 0
	for _, c := range cols {
		width += c.width
	}
	if width == 0 {
		return 0
	}
	return len(data) / width
}

func strAt(data []byte, cols []column, c, row int, sp *stringPool) string {
	s := columnSlice(data, cols, c, rowCountFrom(data, cols))
	off := row * cols[c].width
	if off+2 > len(s) {
		return ""
	}
	return sp.get(binary.LittleEndian.Uint16(s[off:]))
}

func int16At(data []byte, cols []column, c, row int) int16 {
	s := columnSlice(data, cols, c, rowCountFrom(data, cols))
	off := row * cols[c].width
	if off+2 > len(s) {
		return 0
	}
	return int16(binary.LittleEndian.Uint16(s[off:]) - 0x8000)
}

func int32At(data []byte, cols []column, c, row int) int32 {
	s := columnSlice(data, cols, c, rowCountFrom(data, cols))
	off := row * cols[c].width
	if off+4 > len(s) {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(s[off:]) - 0x80000000)
}

func rowCountFrom(data []byte, cols []column) int { return rowCount(data, cols) }

var directoryColumns = []column{
	{"Directory", stringRefSize, true},
	{"Directory_Parent", stringRefSize, true},
	{"DefaultDir", stringRefSize, true},
}

var componentColumns = []column{
	{"Component", stringRefSize, true},
	{"ComponentId", stringRefSize, true},
	{"Directory_", stringRefSize, true},
	{"Attributes", 2, false},
	{"Condition", stringRefSize, true},
	{"KeyPath", stringRefSize, true},
}

var fileColumns = []column{
	{"File", stringRefSize, true},
	{"Component_", stringRefSize, true},
	{"FileName", stringRefSize, true},
	{"FileSize", 4, false},
	{"Version", stringRefSize, true},
	{"Language", stringRefSize, true},
	{"Attributes", 2, false},
	{"Sequence", 2, false},
}

var mediaColumns = []column{
	{"DiskId", 2, false},
	{"LastSequence", 2, false},
	{"DiskPrompt", stringRefSize, true},
	{"Cabinet", stringRefSize, true},
	{"VolumeLabel", stringRefSize, true},
	{"Source", stringRefSize, true},
}

// DirectoryRow is one row of the MSI Directory table.
type DirectoryRow struct {
	Directory       string
	DirectoryParent string
	DefaultDir      string // "targetshort|targetlong" or "targetlong" form
}

// ComponentRow is one row of the MSI Component table.
type ComponentRow struct {
	Component string
	Directory string
}

// FileRow is one row of the MSI File table.
type FileRow struct {
	File       string
	Component  string
	FileName   string // "shortname|longname" or "longname" form
	FileSize   int64
	Attributes int16
	Sequence   int16
}

// MediaRow is one row of the MSI Media table: one row per cabinet.
type MediaRow struct {
	DiskID       int16
	LastSequence int16
	Cabinet      string // "#name" for an embedded stream, external otherwise
}

func readTable(ole *compoundFile, path, tableName string) ([]byte, bool, error) {
	raw, err := ole.Stream(encodeTableName(tableName))
	if err != nil {
		return nil, false, nil // table absent: optional in some editions
	}
	return raw, true, nil
}

// loadTables reads the fixed schema tables this decoder understands. Any
// table the particular MSI lacks (e.g. no Media table in a merge module)
// is simply empty in the result, not an error.
func loadTables(ole *compoundFile, path string) (dirs []DirectoryRow, comps []ComponentRow, files []FileRow, media []MediaRow, err error) {
	poolRaw, err := ole.Stream(encodeTableName("_StringPool"))
	if err != nil {
		return nil, nil, nil, nil, &xwin.CorruptArchive{Path: path, Reason: "missing _StringPool stream"}
	}
	dataRaw, err := ole.Stream(encodeTableName("_StringData"))
	if err != nil {
		return nil, nil, nil, nil, &xwin.CorruptArchive{Path: path, Reason: "missing _StringData stream"}
	}
	sp := readStringPool(poolRaw, dataRaw)

	if raw, ok, e := readTable(ole, path, "Directory"); e == nil && ok {
		n := rowCount(raw, directoryColumns)
		for i := 0; i < n; i++ {
			dirs = append(dirs, DirectoryRow{
				Directory:       strAt(raw, directoryColumns, 0, i, sp),
				DirectoryParent: strAt(raw, directoryColumns, 1, i, sp),
				DefaultDir:      strAt(raw, directoryColumns, 2, i, sp),
			})
		}
	}
	if raw, ok, e := readTable(ole, path, "Component"); e == nil && ok {
		n := rowCount(raw, componentColumns)
		for i := 0; i < n; i++ {
			comps = append(comps, ComponentRow{
				Component: strAt(raw, componentColumns, 0, i, sp),
				Directory: strAt(raw, componentColumns, 2, i, sp),
			})
		}
	}
	if raw, ok, e := readTable(ole, path, "File"); e == nil && ok {
		n := rowCount(raw, fileColumns)
		for i := 0; i < n; i++ {
			files = append(files, FileRow{
				File:       strAt(raw, fileColumns, 0, i, sp),
				Component:  strAt(raw, fileColumns, 1, i, sp),
				FileName:   strAt(raw, fileColumns, 2, i, sp),
				FileSize:   int64(int32At(raw, fileColumns, 3, i)),
				Attributes: int16At(raw, fileColumns, 6, i),
				Sequence:   int16At(raw, fileColumns, 7, i),
			})
		}
	}
	if raw, ok, e := readTable(ole, path, "Media"); e == nil && ok {
		n := rowCount(raw, mediaColumns)
		for i := 0; i < n; i++ {
			media = append(media, MediaRow{
				DiskID:       int16At(raw, mediaColumns, 0, i),
				LastSequence: int16At(raw, mediaColumns, 1, i),
				Cabinet:      strAt(raw, mediaColumns, 3, i, sp),
			})
		}
	}
	return dirs, comps, files, media, nil
}
