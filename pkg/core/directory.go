package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadDirectory reads the header and every directory record of a PAK archive
func ReadDirectory(archivePath string) (Header, []Entry, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return Header{}, nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Header{}, nil, fmt.Errorf("stat archive: %w", err)
	}
	return ReadDirectoryFrom(f, info.Size())
}

// ReadDirectoryFrom parses the header and directory from r, which holds size bytes.
// A directory that does not fit inside size is rejected before any record is read.
func ReadDirectoryFrom(r io.ReaderAt, size int64) (Header, []Entry, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return Header{}, nil, err
	}

	if hdr.EntryCount > 0 {
		// The last slot only needs its meaningful prefix on disk
		end := int64(hdr.DirectoryOffset) + int64(hdr.EntryCount-1)*EntrySlotSize + EntryPathSize + EntryMetaSize
		if end > size {
			return Header{}, nil, fmt.Errorf("%w: directory of %d entries at offset %d needs %d bytes, archive has %d",
				ErrFormat, hdr.EntryCount, hdr.DirectoryOffset, end, size)
		}
	}

	entries := make([]Entry, hdr.EntryCount)
	var record [EntryPathSize + EntryMetaSize]byte
	for i := range entries {
		off := int64(hdr.DirectoryOffset) + int64(i)*EntrySlotSize
		if n, err := r.ReadAt(record[:], off); n < len(record) {
			return Header{}, nil, fmt.Errorf("%w: read directory record %d: %v", ErrFormat, i, err)
		}
		meta := record[EntryPathSize:]
		entries[i] = Entry{
			Index:          i,
			Path:           entryPath(record[:EntryPathSize]),
			CompressedSize: binary.LittleEndian.Uint32(meta[metaSizeOffset:]),
			PayloadOffset:  binary.LittleEndian.Uint32(meta[metaOffsetOffset:]),
		}
	}
	return hdr, entries, nil
}

// readHeader reads the fixed header record
func readHeader(r io.ReaderAt) (Header, error) {
	var buf [HeaderSize]byte
	if n, err := r.ReadAt(buf[:], HeaderOffset); n < len(buf) {
		return Header{}, fmt.Errorf("%w: read header: %v", ErrFormat, err)
	}
	return Header{
		Version:         binary.LittleEndian.Uint32(buf[0:4]),
		EntryCount:      binary.LittleEndian.Uint32(buf[4:8]),
		DirectoryOffset: binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

// entryPath truncates the path field at the first NUL and strips leading separators
func entryPath(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	p := strings.ToValidUTF8(string(field), "�")
	return strings.TrimLeft(p, `\/`)
}
