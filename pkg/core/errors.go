package core

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is returned when the header, directory or an entry's
	// payload bounds are malformed or truncated.
	ErrFormat = errors.New("pak: malformed archive")

	// ErrNoMatchingKey is returned when no candidate key both decrypts
	// and inflates an entry.
	ErrNoMatchingKey = errors.New("pak: no matching key")

	// ErrDecompression is returned when inflate fails or yields no data.
	ErrDecompression = errors.New("pak: decompression failed")

	// ErrNoKeys is returned when encryption is enabled but the key list
	// has no usable keys.
	ErrNoKeys = errors.New("pak: no valid keys in key list")

	// ErrInsecurePath is returned when an entry path resolves outside the
	// export directory.
	ErrInsecurePath = errors.New("pak: insecure entry path")
)

// EntryError records which entry and stage failed.
type EntryError struct {
	Index int
	Path  string
	Op    string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %d (%s): %s: %v", e.Index, e.Path, e.Op, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// classify maps a per-entry error to its report outcome.
func classify(err error) Outcome {
	switch {
	case err == nil:
		return Written
	case errors.Is(err, ErrNoMatchingKey), errors.Is(err, ErrDecompression):
		return Skipped
	default:
		return Failed
	}
}
