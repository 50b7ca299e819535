// Package lib provides PAK extraction for embedding in other tools.
// This package re-exports the functionality from the core package.
package lib

import (
	"dnpak/pkg/core"
)

// Archive layout constants re-exported from core
const (
	HeaderOffset  = core.HeaderOffset
	EntrySlotSize = core.EntrySlotSize
	ExportDir     = core.ExportDir
)

// Types re-exported from core
type (
	Header       = core.Header
	Entry        = core.Entry
	Key          = core.Key
	KeyList      = core.KeyList
	ExemptPolicy = core.ExemptPolicy
	Options      = core.Options
	Report       = core.Report
	EntryResult  = core.EntryResult
)

// Errors re-exported from core
var (
	ErrFormat        = core.ErrFormat
	ErrNoMatchingKey = core.ErrNoMatchingKey
	ErrDecompression = core.ErrDecompression
	ErrNoKeys        = core.ErrNoKeys
	ErrInsecurePath  = core.ErrInsecurePath
)

// Extract extracts every entry of inputArchive under outputRoot/Export,
// using keylist.txt in the working directory when encryption is set.
func Extract(inputArchive, outputRoot string, encryption bool) (*Report, error) {
	opts := core.DefaultOptions()
	opts.Encryption = encryption
	return core.Extract(inputArchive, outputRoot, opts)
}

// ExtractWithOptions is a wrapper around core.Extract
func ExtractWithOptions(inputArchive, outputRoot string, opts Options) (*Report, error) {
	return core.Extract(inputArchive, outputRoot, opts)
}

// LoadKeys is a wrapper around core.LoadKeys
func LoadKeys(path string) (KeyList, error) {
	keys, _, err := core.LoadKeys(path)
	return keys, err
}

// ReadDirectory is a wrapper around core.ReadDirectory
func ReadDirectory(archivePath string) (Header, []Entry, error) {
	return core.ReadDirectory(archivePath)
}
