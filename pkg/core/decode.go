package core

import (
	"bytes"
	"crypto/aes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// ExemptPolicy names entries that are stored without encryption even in
// encrypted archives.
type ExemptPolicy struct {
	Suffixes []string // Matched against the end of the entry path
	Markers  []string // Matched anywhere in the entry path
}

// DefaultExemptPolicy covers executables, libraries and the anti-cheat
// and test-branch payloads shipped unencrypted.
func DefaultExemptPolicy() ExemptPolicy {
	return ExemptPolicy{
		Suffixes: []string{".exe", ".dll"},
		Markers:  []string{"xigncode", "testbranch"},
	}
}

// Exempt reports whether path is stored as plain zlib data.
func (p ExemptPolicy) Exempt(path string) bool {
	for _, s := range p.Suffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	for _, m := range p.Markers {
		if strings.Contains(path, m) {
			return true
		}
	}
	return false
}

// Decoded is the plaintext of one entry.
type Decoded struct {
	Data     []byte
	KeyIndex int // Index into the key list, -1 for plain entries
}

// Decoder turns raw entry payloads into plaintext. It holds no mutable
// state and is safe for concurrent use.
type Decoder struct {
	keys      KeyList
	encrypted bool
	exempt    ExemptPolicy

	// attempt is called before each key is tried
	attempt func(index int)
}

// NewDecoder returns a Decoder searching keys in order when encrypted is set.
func NewDecoder(keys KeyList, encrypted bool, exempt ExemptPolicy) *Decoder {
	return &Decoder{keys: keys, encrypted: encrypted, exempt: exempt}
}

// Decode returns the plaintext for the payload of the entry stored at relPath.
//
// Exempt and unencrypted entries are inflated directly. Otherwise the
// fixed prefix is dropped and each key is tried in order; the first key
// whose output unpads, inflates and is non-empty wins.
func (d *Decoder) Decode(raw []byte, relPath string) (Decoded, error) {
	if !d.encrypted || d.exempt.Exempt(relPath) {
		data, err := inflate(raw)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Data: data, KeyIndex: -1}, nil
	}

	if len(raw) <= PayloadPrefixSize {
		return Decoded{}, fmt.Errorf("%w: payload of %d bytes has no ciphertext", ErrFormat, len(raw))
	}
	ciphertext := raw[PayloadPrefixSize:]

	for i := range d.keys {
		if d.attempt != nil {
			d.attempt(i)
		}
		plain, err := decryptECB(ciphertext, d.keys[i][:])
		if err != nil {
			continue
		}
		data, err := inflate(plain)
		if err != nil {
			continue
		}
		return Decoded{Data: data, KeyIndex: i}, nil
	}
	return Decoded{}, fmt.Errorf("%w: tried %d keys", ErrNoMatchingKey, len(d.keys))
}

// inflate decompresses a zlib stream; empty output is an error
func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrDecompression)
	}
	return out, nil
}

var errPadding = errors.New("invalid PKCS#7 padding")

// decryptECB decrypts each block independently and strips PKCS#7 padding
func decryptECB(data, key []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of %d", len(data), aes.BlockSize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		block.Decrypt(out[i:i+aes.BlockSize], data[i:i+aes.BlockSize])
	}
	return unpad(out)
}

// unpad removes PKCS#7 padding
func unpad(data []byte) ([]byte, error) {
	pad := int(data[len(data)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(data) {
		return nil, errPadding
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, errPadding
		}
	}
	return data[:len(data)-pad], nil
}
