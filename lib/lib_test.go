package lib

import (
	"bytes"
	"crypto/aes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
)

const testKey = "0123456789abcdefghijklmnopqrstu"

type fixtureEntry struct {
	path    string
	plain   []byte
	encrypt bool
}

func deflate(t *testing.T, plain []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(plain); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

func seal(t *testing.T, data []byte) []byte {
	t.Helper()
	var key [32]byte
	copy(key[:], testKey)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	pad := aes.BlockSize - len(data)%aes.BlockSize
	data = append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(pad)}, pad)...)
	out := make([]byte, 16, 16+len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		var dst [aes.BlockSize]byte
		block.Encrypt(dst[:], data[i:i+aes.BlockSize])
		out = append(out, dst[:]...)
	}
	return out
}

// writeFixture lays out a minimal archive: zero prolog, header, directory
// slots and payloads in order.
func writeFixture(t *testing.T, dir string, entries []fixtureEntry) string {
	t.Helper()
	dirOffset := HeaderOffset + 16
	payloadStart := dirOffset + len(entries)*EntrySlotSize

	var payloads bytes.Buffer
	directory := make([]byte, len(entries)*EntrySlotSize)
	for i, e := range entries {
		data := deflate(t, e.plain)
		if e.encrypt {
			data = seal(t, data)
		}
		slot := directory[i*EntrySlotSize:]
		copy(slot[:256], e.path)
		binary.LittleEndian.PutUint32(slot[256+8:], uint32(len(data)))
		binary.LittleEndian.PutUint32(slot[256+12:], uint32(payloadStart+payloads.Len()))
		payloads.Write(data)
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, HeaderOffset))
	hdr := make([]byte, 16)
	binary.LittleEndian.PutUint32(hdr[0:], 1)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(entries)))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(dirOffset))
	buf.Write(hdr)
	buf.Write(directory)
	buf.Write(payloads.Bytes())

	path := filepath.Join(dir, "Resource00.pak")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	plain := []byte("<ui><button id=\"ok\"/></ui>")
	archive := writeFixture(t, dir, []fixtureEntry{{path: `ui\main.xml`, plain: plain}})

	report, err := Extract(archive, filepath.Join(dir, "out"), false)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if report.Written != 1 || report.Total() != 1 {
		t.Fatalf("unexpected counts: %s", report)
	}
	got, err := os.ReadFile(filepath.Join(dir, "out", ExportDir, "ui", "main.xml"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("content mismatch")
	}
}

func TestReadDirectory(t *testing.T) {
	dir := t.TempDir()
	archive := writeFixture(t, dir, []fixtureEntry{
		{path: `a\one.txt`, plain: []byte("one")},
		{path: `b\two.txt`, plain: []byte("two")},
	})

	hdr, entries, err := ReadDirectory(archive)
	if err != nil {
		t.Fatalf("ReadDirectory failed: %v", err)
	}
	if hdr.Version != 1 || hdr.EntryCount != 2 || len(entries) != 2 {
		t.Fatalf("unexpected directory %+v %+v", hdr, entries)
	}
	if entries[1].Path != `b\two.txt` {
		t.Errorf("unexpected path %q", entries[1].Path)
	}

	if _, _, err := ReadDirectory(filepath.Join(dir, "missing.pak")); err == nil {
		t.Errorf("expected error for missing archive")
	}
}

func TestExtractWithLoadedKeys(t *testing.T) {
	dir := t.TempDir()
	secret := []byte("encrypted entry")
	launcher := []byte("launcher binary")
	archive := writeFixture(t, dir, []fixtureEntry{
		{path: `data\secret.txt`, plain: secret, encrypt: true},
		{path: `bin\launcher.exe`, plain: launcher},
	})

	keyList := filepath.Join(dir, "keylist.txt")
	if err := os.WriteFile(keyList, []byte("not a key\n"+testKey+"\n"), 0644); err != nil {
		t.Fatalf("write key list: %v", err)
	}
	keys, err := LoadKeys(keyList)
	if err != nil {
		t.Fatalf("LoadKeys failed: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(keys))
	}

	outRoot := filepath.Join(dir, "out")
	opts := Options{Encryption: true, Keys: keys, Exempt: ExemptPolicy{Suffixes: []string{".exe"}}, Workers: 2}
	report, err := ExtractWithOptions(archive, outRoot, opts)
	if err != nil {
		t.Fatalf("ExtractWithOptions failed: %v", err)
	}
	if report.Written != 2 {
		t.Fatalf("unexpected counts: %s", report)
	}
	for rel, want := range map[string][]byte{
		filepath.Join("data", "secret.txt"):  secret,
		filepath.Join("bin", "launcher.exe"): launcher,
	} {
		got, err := os.ReadFile(filepath.Join(outRoot, ExportDir, rel))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("content mismatch for %s", rel)
		}
	}

	opts.Keys = nil
	opts.KeyListPath = filepath.Join(dir, "missing.txt")
	if _, err := ExtractWithOptions(archive, outRoot, opts); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected missing key list error, got %v", err)
	}
}
