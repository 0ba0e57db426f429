package msi

// A minimal reader for the OLE Compound File Binary (CFB) format that MSI
// databases are stored in: a FAT-like filesystem-in-a-file of fixed-size
// sectors, with a separate "mini FAT" for small streams. This only
// implements what an MSI reader needs: walking the directory tree by name
// and reading a named stream's full content.
//
// Reference: [MS-CFB]. Only the common case (version 3, 512-byte sectors,
// DIFAT fully contained in the 109-entry header array) is handled; larger
// files whose FAT needs DIFAT continuation sectors are rejected with
// UnsupportedArchive rather than silently truncated.

import (
	"encoding/binary"
	"io"
	"unicode/utf16"

	"github.com/wincrt/xwin"
)

const (
	sectorFree   = 0xFFFFFFFF // -1
	sectorEndOfChain = 0xFFFFFFFE // -2
	sectorFAT    = 0xFFFFFFFD // -3
	sectorDIFAT  = 0xFFFFFFFC // -4

	headerSize     = 512
	difatEntries   = 109
	dirEntrySize   = 128
)

var cfbSignature = [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

type cfbHeader struct {
	Signature          [8]byte
	CLSID              [16]byte
	MinorVersion       uint16
	MajorVersion       uint16
	ByteOrder          uint16
	SectorShift        uint16
	MiniSectorShift    uint16
	Reserved           [6]byte
	NumDirSectors      uint32
	NumFATSectors      uint32
	FirstDirSector     uint32
	TransactionSig     uint32
	MiniStreamCutoff   uint32
	FirstMiniFATSector uint32
	NumMiniFATSectors  uint32
	FirstDIFATSector   uint32
	NumDIFATSectors    uint32
	DIFAT              [difatEntries]uint32
}

type dirEntry struct {
	Name     string
	Type     byte // 0 unknown, 1 storage, 2 stream, 5 root
	Left     uint32
	Right    uint32
	Child    uint32
	StartSec uint32
	Size     uint64
}

// compoundFile gives random access to the streams of one OLE compound file.
type compoundFile struct {
	path string
	r    io.ReaderAt
	hdr  cfbHeader

	sectorSize int64
	miniSize   int64

	fat     []uint32
	miniFAT []uint32
	dir     []dirEntry

	miniStream []byte // the root entry's stream, holding all mini sectors
}

// openCompoundFile parses the compound file container in r (size bytes long).
func openCompoundFile(path string, r io.ReaderAt, size int64) (*compoundFile, error) {
	rd := &compoundFile{path: path, r: r}
	if err := rd.readHeader(); err != nil {
		return nil, err
	}
	if err := rd.readFAT(); err != nil {
		return nil, err
	}
	if err := rd.readDirectory(); err != nil {
		return nil, err
	}
	if err := rd.readMiniFAT(); err != nil {
		return nil, err
	}
	return rd, nil
}

func (r *compoundFile) readHeader() error {
	buf := make([]byte, headerSize)
	if _, err := r.r.ReadAt(buf, 0); err != nil {
		return &xwin.CorruptArchive{Path: r.path, Reason: "short header: " + err.Error()}
	}
	if err := binary.Read(sliceReader(buf), binary.LittleEndian, &r.hdr); err != nil {
		return &xwin.CorruptArchive{Path: r.path, Reason: err.Error()}
	}
	if r.hdr.Signature != cfbSignature {
		return &xwin.CorruptArchive{Path: r.path, Reason: "not an OLE compound file (bad signature)"}
	}
	r.sectorSize = 1 << r.hdr.SectorShift
	r.miniSize = 1 << r.hdr.MiniSectorShift
	if r.hdr.NumDIFATSectors != 0 {
		return &xwin.UnsupportedArchive{Path: r.path, Reason: "DIFAT continuation sectors not supported"}
	}
	return nil
}

func sliceReader(b []byte) io.Reader { return ioReaderFromBytes(b) }

// ioReaderFromBytes avoids importing bytes just for one adapter used only
// during header parsing.
type byteSliceReader struct {
	b   []byte
	pos int
}

func ioReaderFromBytes(b []byte) io.Reader { return &byteSliceReader{b: b} }

func (b *byteSliceReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.b) {
		return 0, io.EOF
	}
	n := copy(p, b.b[b.pos:])
	b.pos += n
	return n, nil
}

func (r *compoundFile) sectorAt(sector uint32) ([]byte, error) {
	off := int64(headerSize) + int64(sector)*r.sectorSize
	buf := make([]byte, r.sectorSize)
	if _, err := r.r.ReadAt(buf, off); err != nil {
		return nil, &xwin.CorruptArchive{Path: r.path, Reason: "reading sector " + err.Error()}
	}
	return buf, nil
}

// readFAT reads the FAT sectors named in the header's DIFAT array and
// concatenates their uint32 entries into one flat array indexed by sector
// number.
func (r *compoundFile) readFAT() error {
	entriesPerSector := int(r.sectorSize / 4)
	for i := uint32(0); i < r.hdr.NumFATSectors && i < difatEntries; i++ {
		sec := r.hdr.DIFAT[i]
		if sec == sectorFree {
			break
		}
		buf, err := r.sectorAt(sec)
		if err != nil {
			return err
		}
		for j := 0; j < entriesPerSector; j++ {
			r.fat = append(r.fat, binary.LittleEndian.Uint32(buf[j*4:]))
		}
	}
	return nil
}

// chain follows the FAT starting at startSector, returning the
// concatenated content of every sector in the chain, trimmed to size
// bytes if size >= 0.
func (r *compoundFile) chain(startSector uint32, size int64) ([]byte, error) {
	var out []byte
	sec := startSector
	for sec != sectorEndOfChain && sec != sectorFree {
		if int(sec) >= len(r.fat) {
			return nil, &xwin.CorruptArchive{Path: r.path, Reason: "FAT chain references out-of-range sector"}
		}
		buf, err := r.sectorAt(sec)
		if err != nil {
			return nil, err
		}
		out = append(out, buf...)
		sec = r.fat[sec]
	}
	if size >= 0 && int64(len(out)) > size {
		out = out[:size]
	}
	return out, nil
}

func (r *compoundFile) readDirectory() error {
	raw, err := r.chain(r.hdr.FirstDirSector, -1)
	if err != nil {
		return err
	}
	n := len(raw) / dirEntrySize
	r.dir = make([]dirEntry, n)
	for i := 0; i < n; i++ {
		rec := raw[i*dirEntrySize : (i+1)*dirEntrySize]
		nameLen := binary.LittleEndian.Uint16(rec[64:66])
		var name string
		if nameLen >= 2 {
			u16 := make([]uint16, (nameLen/2)-1) // drop trailing NUL
			for j := range u16 {
				u16[j] = binary.LittleEndian.Uint16(rec[j*2:])
			}
			name = string(utf16.Decode(u16))
		}
		r.dir[i] = dirEntry{
			Name:     name,
			Type:     rec[66],
			Left:     binary.LittleEndian.Uint32(rec[68:72]),
			Right:    binary.LittleEndian.Uint32(rec[72:76]),
			Child:    binary.LittleEndian.Uint32(rec[76:80]),
			StartSec: binary.LittleEndian.Uint32(rec[116:120]),
			Size:     binary.LittleEndian.Uint64(rec[120:128]),
		}
	}
	return nil
}

func (r *compoundFile) readMiniFAT() error {
	if r.hdr.NumMiniFATSectors == 0 {
		return nil
	}
	raw, err := r.chain(r.hdr.FirstMiniFATSector, -1)
	if err != nil {
		return err
	}
	r.miniFAT = make([]uint32, len(raw)/4)
	for i := range r.miniFAT {
		r.miniFAT[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	if len(r.dir) > 0 && r.dir[0].Type == 5 { // root entry
		ms, err := r.chain(r.dir[0].StartSec, int64(r.dir[0].Size))
		if err != nil {
			return err
		}
		r.miniStream = ms
	}
	return nil
}

func (r *compoundFile) miniChain(startSector uint32, size int64) []byte {
	var out []byte
	sec := startSector
	for sec != sectorEndOfChain && sec != sectorFree && int(sec) < len(r.miniFAT) {
		start := int64(sec) * r.miniSize
		end := start + r.miniSize
		if end > int64(len(r.miniStream)) {
			end = int64(len(r.miniStream))
		}
		if start < end {
			out = append(out, r.miniStream[start:end]...)
		}
		sec = r.miniFAT[sec]
	}
	if int64(len(out)) > size {
		out = out[:size]
	}
	return out
}

// findEntry walks the red-black sibling tree of storage/stream entries
// under root (by index), case-sensitively matching name.
func (r *compoundFile) findEntry(root uint32, name string) (int, bool) {
	if root == sectorFree || int(root) >= len(r.dir) {
		return 0, false
	}
	e := r.dir[root]
	if e.Name == name {
		return int(root), true
	}
	if idx, ok := r.findEntry(e.Left, name); ok {
		return idx, true
	}
	if idx, ok := r.findEntry(e.Right, name); ok {
		return idx, true
	}
	return 0, false
}

// Stream returns the full content of the top-level stream named name
// (MSI never nests streams in sub-storages for the tables this decoder
// reads).
func (r *compoundFile) Stream(name string) ([]byte, error) {
	if len(r.dir) == 0 {
		return nil, &xwin.CorruptArchive{Path: r.path, Reason: "empty directory"}
	}
	idx, ok := r.findEntry(r.dir[0].Child, name)
	if !ok {
		return nil, &xwin.CorruptArchive{Path: r.path, Reason: "stream not found: " + name}
	}
	e := r.dir[idx]
	if int64(e.Size) < int64(r.hdr.MiniStreamCutoff) {
		return r.miniChain(e.StartSec, int64(e.Size)), nil
	}
	return r.chain(e.StartSec, int64(e.Size))
}

// Streams lists the name of every stream in the container, including
// streams inside sub-storages, for diagnostics. Cabinets are looked up by
// name through Stream, not through this list.
func (r *compoundFile) Streams() []string {
	if len(r.dir) == 0 {
		return nil
	}
	var names []string
	var walk func(uint32)
	walk = func(i uint32) {
		if i == sectorFree || int(i) >= len(r.dir) {
			return
		}
		e := r.dir[i]
		if e.Type == 2 {
			names = append(names, e.Name)
		}
		walk(e.Left)
		walk(e.Right)
		if e.Type == 1 || e.Type == 5 {
			walk(e.Child)
		}
	}
	walk(r.dir[0].Child)
	return names
}
