package core

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// RawKeyLength is the length of an accepted key line after trimming.
// The AES-256 key is the line plus one trailing zero byte.
const RawKeyLength = 31

// Key is a 32-byte AES-256 secret.
type Key [32]byte

// KeyList is an ordered, read-only set of candidate keys. Order decides
// which key wins when several would work.
type KeyList []Key

// ParseStats counts the lines seen while parsing a key list.
type ParseStats struct {
	Lines    int // Non-empty lines
	Accepted int // Lines of exactly RawKeyLength characters
}

// Skipped returns the number of non-empty lines that were not keys.
func (s ParseStats) Skipped() int { return s.Lines - s.Accepted }

// ParseKeys reads one candidate key per line. Lines whose trimmed length
// is not RawKeyLength are ignored, however long they are.
func ParseKeys(r io.Reader) (KeyList, ParseStats, error) {
	var (
		keys  KeyList
		stats ParseStats
	)
	br := bufio.NewReader(r)
	for {
		line, long, err := readKeyLine(br)
		if err != nil && err != io.EOF {
			return nil, stats, fmt.Errorf("read key list: %w", err)
		}
		if long {
			stats.Lines++
		} else if line = strings.TrimSpace(line); line != "" {
			stats.Lines++
			if len(line) == RawKeyLength {
				var k Key
				copy(k[:], line)
				keys = append(keys, k)
				stats.Accepted++
			}
		}
		if err == io.EOF {
			return keys, stats, nil
		}
	}
}

// maxKeyLine bounds how much of a line is buffered; anything longer
// cannot be a key and is discarded.
const maxKeyLine = 256

// readKeyLine returns the next line, or long=true when it exceeded
// maxKeyLine. The line content is dropped for long lines.
func readKeyLine(br *bufio.Reader) (line string, long bool, err error) {
	var buf []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return string(buf), long, err
		}
		if !long {
			buf = append(buf, chunk...)
			if len(buf) > maxKeyLine {
				long, buf = true, nil
			}
		}
		if !isPrefix {
			return string(buf), long, nil
		}
	}
}

// LoadKeys opens path and parses it with ParseKeys.
func LoadKeys(path string) (KeyList, ParseStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ParseStats{}, fmt.Errorf("open key list: %w", err)
	}
	defer f.Close()
	return ParseKeys(f)
}
