package core

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// EntryResult is the outcome of one directory entry.
type EntryResult struct {
	Index    int     `yaml:"index"`
	Path     string  `yaml:"path"`
	Output   string  `yaml:"output,omitempty"`
	Size     int     `yaml:"size,omitempty"`
	Digest   string  `yaml:"blake3,omitempty"`
	KeyIndex int     `yaml:"key_index"`
	Outcome  Outcome `yaml:"-"`
	Status   string  `yaml:"status"`
	Error    string  `yaml:"error,omitempty"`

	err error
}

// Report summarizes one extraction run. Entries is ordered by directory
// index, independent of scheduling order.
type Report struct {
	Archive string        `yaml:"archive"`
	Header  Header        `yaml:"-"`
	Written int           `yaml:"written"`
	Skipped int           `yaml:"skipped"`
	Failed  int           `yaml:"failed"`
	Bytes   uint64        `yaml:"bytes"`
	Elapsed time.Duration `yaml:"elapsed"`
	Entries []EntryResult `yaml:"entries"`
}

// Total returns written + skipped + failed.
func (r *Report) Total() int { return r.Written + r.Skipped + r.Failed }

// Err joins the errors of every entry that was not written.
func (r *Report) Err() error {
	var errs []error
	for i := range r.Entries {
		if r.Entries[i].err != nil {
			errs = append(errs, r.Entries[i].err)
		}
	}
	return errors.Join(errs...)
}

// String returns a one-line summary.
func (r *Report) String() string {
	return fmt.Sprintf("%s: %d written (%s), %d skipped, %d failed in %s",
		r.Archive, r.Written, humanize.Bytes(r.Bytes), r.Skipped, r.Failed, r.Elapsed.Round(time.Millisecond))
}

// WriteManifest writes the report as YAML.
func (r *Report) WriteManifest(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return enc.Close()
}

// record fills in the result for one entry and updates the counters
func (r *Report) record(res EntryResult) {
	res.Outcome = classify(res.err)
	res.Status = res.Outcome.String()
	if res.err != nil {
		res.Error = res.err.Error()
	}
	switch res.Outcome {
	case Written:
		r.Written++
		r.Bytes += uint64(res.Size)
	case Skipped:
		r.Skipped++
	default:
		r.Failed++
	}
	r.Entries[res.Index] = res
}

// digest returns the hex BLAKE3 hash of data
func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
