package core

import (
	"bytes"
	"crypto/aes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
)

// testEntry describes one entry of a synthetic archive
type testEntry struct {
	path    string
	plain   []byte
	key     *Key   // Encrypt under key when set
	raw     []byte // Stored verbatim when set
	badSize uint32 // Overrides the stored size when non-zero
}

func testKey(s string) Key {
	if len(s) != RawKeyLength {
		panic("test key must be 31 characters")
	}
	var k Key
	copy(k[:], s)
	return k
}

var (
	keyA = testKey("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	keyB = testKey("BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	keyC = testKey("0123456789abcdefghijklmnopqrstu")
	keyD = testKey("zyxwvutsrqponmlkjihgfedcba98765")
)

func compressZlib(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

func encryptECB(t *testing.T, data []byte, key Key) []byte {
	t.Helper()
	block, err := aes.NewCipher(key[:])
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	pad := aes.BlockSize - len(data)%aes.BlockSize
	padded := append(append([]byte{}, data...), bytes.Repeat([]byte{byte(pad)}, pad)...)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += aes.BlockSize {
		block.Encrypt(out[i:i+aes.BlockSize], padded[i:i+aes.BlockSize])
	}
	return out
}

// encodePayload compresses plain and, with a key, encrypts it behind the opaque prefix
func encodePayload(t *testing.T, plain []byte, key *Key) []byte {
	t.Helper()
	z := compressZlib(t, plain)
	if key == nil {
		return z
	}
	prefix := bytes.Repeat([]byte{0xEE}, PayloadPrefixSize)
	return append(prefix, encryptECB(t, z, *key)...)
}

// buildArchive writes a PAK archive holding entries and returns its path
func buildArchive(t *testing.T, dir, name string, entries []testEntry) string {
	t.Helper()

	dirOffset := HeaderOffset + HeaderSize
	payloadStart := dirOffset + len(entries)*EntrySlotSize

	var payloads bytes.Buffer
	directory := make([]byte, len(entries)*EntrySlotSize)
	for i, e := range entries {
		data := e.raw
		if data == nil {
			data = encodePayload(t, e.plain, e.key)
		}
		slot := directory[i*EntrySlotSize:]
		copy(slot[:EntryPathSize], e.path)
		meta := slot[EntryPathSize:]
		size := uint32(len(data))
		if e.badSize != 0 {
			size = e.badSize
		}
		binary.LittleEndian.PutUint32(meta[metaSizeOffset:], size)
		binary.LittleEndian.PutUint32(meta[metaOffsetOffset:], uint32(payloadStart+payloads.Len()))
		payloads.Write(data)
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, HeaderOffset))
	hdr := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:], 1)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(entries)))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(dirOffset))
	buf.Write(hdr)
	buf.Write(directory)
	buf.Write(payloads.Bytes())

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}

// pattern returns size deterministic bytes
func pattern(size int, seed byte) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(i%251) ^ seed
	}
	return out
}
