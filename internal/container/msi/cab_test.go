package msi

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io/ioutil"
	"testing"
)

// buildCabinet assembles a minimal one-folder cabinet containing the
// given (name, data) files, compressed with the given method.
func buildCabinet(t *testing.T, method uint16, files []struct {
	name string
	data []byte
}) []byte {
	t.Helper()

	var folderData bytes.Buffer
	var blocks []struct{ comp, uncomp []byte }
	switch method {
	case compressTypeNone:
		for _, f := range files {
			folderData.Write(f.data)
		}
		blocks = append(blocks, struct{ comp, uncomp []byte }{folderData.Bytes(), folderData.Bytes()})
	case compressTypeMSZIP:
		for _, f := range files {
			folderData.Write(f.data)
		}
		var compBuf bytes.Buffer
		fw, err := flate.NewWriter(&compBuf, flate.DefaultCompression)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(folderData.Bytes()); err != nil {
			t.Fatal(err)
		}
		fw.Close()
		comp := append([]byte{'C', 'K'}, compBuf.Bytes()...)
		blocks = append(blocks, struct{ comp, uncomp []byte }{comp, folderData.Bytes()})
	}

	const headerLen = 36
	const folderRecLen = 8
	numFolders := 1
	filesOffset := headerLen + numFolders*folderRecLen

	var fileTable bytes.Buffer
	off := uint32(0)
	for _, f := range files {
		rec := make([]byte, 16)
		binary.LittleEndian.PutUint32(rec[0:], uint32(len(f.data)))
		binary.LittleEndian.PutUint32(rec[4:], off)
		binary.LittleEndian.PutUint16(rec[8:], 0) // folder index
		fileTable.Write(rec)
		fileTable.WriteString(f.name)
		fileTable.WriteByte(0)
		off += uint32(len(f.data))
	}

	dataOffset := uint32(filesOffset + fileTable.Len())
	var dataSection bytes.Buffer
	for _, b := range blocks {
		hdr := make([]byte, 8)
		binary.LittleEndian.PutUint16(hdr[6:], uint16(len(b.uncomp)))
		binary.LittleEndian.PutUint16(hdr[4:], uint16(len(b.comp)))
		dataSection.Write(hdr)
		dataSection.Write(b.comp)
	}

	total := dataOffset + uint32(dataSection.Len())

	var buf bytes.Buffer
	buf.WriteString("MSCF")
	write32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	write16 := func(v uint16) { binary.Write(&buf, binary.LittleEndian, v) }
	write32(0)     // reserved1
	write32(total) // cabinet size
	write32(0)     // reserved2
	write32(uint32(filesOffset))
	write32(0) // reserved3
	buf.WriteByte(1)
	buf.WriteByte(3)
	write16(uint16(numFolders))
	write16(uint16(len(files)))
	write16(0) // flags
	write16(0) // setid
	write16(0) // cabinet index

	write32(dataOffset)
	write16(uint16(len(blocks)))
	write16(method)

	buf.Write(fileTable.Bytes())
	buf.Write(dataSection.Bytes())

	return buf.Bytes()
}

func TestDecodeCabinetStored(t *testing.T) {
	files := []struct {
		name string
		data []byte
	}{
		{"fil0001", []byte("hello world")},
		{"fil0002", []byte("second file contents")},
	}
	raw := buildCabinet(t, compressTypeNone, files)

	entries, err := DecodeCabinet("test.cab", raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for i, e := range entries {
		rc, err := e.Open()
		if err != nil {
			t.Fatal(err)
		}
		got, _ := ioutil.ReadAll(rc)
		rc.Close()
		if string(got) != string(files[i].data) {
			t.Fatalf("entry %d = %q, want %q", i, got, files[i].data)
		}
	}
}

func TestDecodeCabinetMSZIP(t *testing.T) {
	files := []struct {
		name string
		data []byte
	}{
		{"fil0001", bytes.Repeat([]byte("compressible data "), 50)},
	}
	raw := buildCabinet(t, compressTypeMSZIP, files)

	entries, err := DecodeCabinet("test.cab", raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	rc, err := entries[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	got, _ := ioutil.ReadAll(rc)
	rc.Close()
	if string(got) != string(files[0].data) {
		t.Fatalf("decompressed = %q, want %q", got, files[0].data)
	}
}
