package msi

// A reader for the Microsoft Cabinet (CAB) format, used to decode the
// cabinets MSI File table entries are packed into (spec.md §4.C: "for
// each cabinet referenced, stream it... for each CAB file entry, map its
// MSI File.FileName..."). Only stored (uncompressed) and MSZIP folders
// are supported, MSZIP being what every CRT and Windows SDK cabinet
// observed in the wild uses; LZX and Quantum folders are rejected with
// UnsupportedArchive when a file in them is opened.
//
// Reference: the CAB file format as documented by Microsoft (MS-CFB's
// sibling format, sometimes called MS-CAB though it predates most of
// the MS-* numbering).

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
	"io/ioutil"

	"github.com/wincrt/xwin"
)

const (
	cabSignature = "MSCF"

	compressionMaskType = 0x000F
	compressTypeNone    = 0
	compressTypeMSZIP   = 1
)

type cfHeader struct {
	Signature       [4]byte
	Reserved1       uint32
	CabinetSize     uint32
	Reserved2       uint32
	FilesOffset     uint32
	Reserved3       uint32
	VersionMinor    uint8
	VersionMajor    uint8
	NumFolders      uint16
	NumFiles        uint16
	Flags           uint16
	SetID           uint16
	CabinetIndex    uint16
}

type cfFolder struct {
	DataOffset   uint32
	NumDataBlocks uint16
	CompressType  uint16
}

type cfFile struct {
	Size       uint32
	FolderOff  uint32
	FolderIdx  uint16
	Date       uint16
	Time       uint16
	Attribs    uint16
	Name       string
}

// Entry is one decoded CAB file entry: its stored name and a function
// that decompresses its content on demand.
type Entry struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// DecodeCabinet parses the cabinet in raw and returns its file entries in
// on-disk order.
func DecodeCabinet(path string, raw []byte) ([]Entry, error) {
	if len(raw) < 36 || string(raw[:4]) != cabSignature {
		return nil, &xwin.CorruptArchive{Path: path, Reason: "not a cabinet (bad MSCF signature)"}
	}
	var hdr cfHeader
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &hdr); err != nil {
		return nil, &xwin.CorruptArchive{Path: path, Reason: err.Error()}
	}

	off := uint32(36)
	// The optional per-cabinet reserved area (flag bit 0x0004) is not
	// handled: the folder list is always read right after the fixed
	// 36-byte header, which holds for cabinets without that flag.

	folders := make([]cfFolder, hdr.NumFolders)
	for i := range folders {
		if int(off)+8 > len(raw) {
			return nil, &xwin.CorruptArchive{Path: path, Reason: "truncated folder table"}
		}
		folders[i] = cfFolder{
			DataOffset:    binary.LittleEndian.Uint32(raw[off:]),
			NumDataBlocks: binary.LittleEndian.Uint16(raw[off+4:]),
			CompressType:  binary.LittleEndian.Uint16(raw[off+6:]),
		}
		off += 8
	}

	files := make([]cfFile, 0, hdr.NumFiles)
	foff := hdr.FilesOffset
	for i := 0; i < int(hdr.NumFiles); i++ {
		if int(foff)+16 > len(raw) {
			return nil, &xwin.CorruptArchive{Path: path, Reason: "truncated file table"}
		}
		f := cfFile{
			Size:      binary.LittleEndian.Uint32(raw[foff:]),
			FolderOff: binary.LittleEndian.Uint32(raw[foff+4:]),
			FolderIdx: binary.LittleEndian.Uint16(raw[foff+8:]),
			Date:      binary.LittleEndian.Uint16(raw[foff+10:]),
			Time:      binary.LittleEndian.Uint16(raw[foff+12:]),
			Attribs:   binary.LittleEndian.Uint16(raw[foff+14:]),
		}
		foff += 16
		nameEnd := bytes.IndexByte(raw[foff:], 0)
		if nameEnd < 0 {
			return nil, &xwin.CorruptArchive{Path: path, Reason: "unterminated file name"}
		}
		f.Name = string(raw[foff : foff+uint32(nameEnd)])
		foff += uint32(nameEnd) + 1
		files = append(files, f)
	}

	folderData := make([][]byte, len(folders))
	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		if int(f.FolderIdx) >= len(folders) {
			return nil, &xwin.CorruptArchive{Path: path, Reason: "file references unknown folder"}
		}
		folderIdx := f.FolderIdx
		folder := folders[folderIdx]
		entry := f
		entries = append(entries, Entry{
			Name: entry.Name,
			Size: int64(entry.Size),
			Open: func() (io.ReadCloser, error) {
				if folderData[folderIdx] == nil {
					d, err := decodeFolder(path, raw, folder)
					if err != nil {
						return nil, err
					}
					folderData[folderIdx] = d
				}
				full := folderData[folderIdx]
				start := entry.FolderOff
				end := start + entry.Size
				if int(end) > len(full) {
					return nil, &xwin.CorruptArchive{Path: path, Reason: "file extends past decompressed folder"}
				}
				return ioutil.NopCloser(bytes.NewReader(full[start:end])), nil
			},
		})
	}
	return entries, nil
}

// decodeFolder decompresses every CFDATA block of one folder and
// concatenates them into the folder's full uncompressed byte stream.
func decodeFolder(path string, raw []byte, folder cfFolder) ([]byte, error) {
	method := folder.CompressType & compressionMaskType
	if method != compressTypeNone && method != compressTypeMSZIP {
		return nil, &xwin.UnsupportedArchive{Path: path, Reason: "only MSZIP and stored cabinet folders are supported"}
	}

	off := folder.DataOffset
	var out []byte
	for i := uint16(0); i < folder.NumDataBlocks; i++ {
		if int(off)+8 > len(raw) {
			return nil, &xwin.CorruptArchive{Path: path, Reason: "truncated CFDATA block"}
		}
		compSize := binary.LittleEndian.Uint16(raw[off+4:])
		uncompSize := binary.LittleEndian.Uint16(raw[off+6:])
		blockStart := off + 8
		if int(blockStart)+int(compSize) > len(raw) {
			return nil, &xwin.CorruptArchive{Path: path, Reason: "CFDATA block exceeds cabinet size"}
		}
		block := raw[blockStart : blockStart+uint32(compSize)]

		switch method {
		case compressTypeNone:
			out = append(out, block...)
		case compressTypeMSZIP:
			if len(block) < 2 || block[0] != 'C' || block[1] != 'K' {
				return nil, &xwin.CorruptArchive{Path: path, Reason: "MSZIP block missing CK signature"}
			}
			// Each block is its own raw deflate stream, but MSZIP carries
			// the sliding window forward across blocks within a folder:
			// seed the dictionary with the tail of what's decoded so far.
			dict := out
			if len(dict) > 32768 {
				dict = dict[len(dict)-32768:]
			}
			fr := flate.NewReaderDict(bytes.NewReader(block[2:]), dict)
			dec := make([]byte, 0, uncompSize)
			buf := make([]byte, 4096)
			for {
				n, err := fr.Read(buf)
				dec = append(dec, buf[:n]...)
				if err == io.EOF {
					break
				}
				if err != nil {
					fr.Close()
					return nil, &xwin.CorruptArchive{Path: path, Reason: "MSZIP inflate: " + err.Error()}
				}
			}
			fr.Close()
			out = append(out, dec...)
		}
		off = blockStart + uint32(compSize)
	}
	return out, nil
}
