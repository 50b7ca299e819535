package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"dnpak/pkg/progress"

	"github.com/pierrec/lz4/v4"
	"github.com/remeh/sizedwaitgroup"
)

// Compression selects how extracted entries are stored on disk
type Compression string

const (
	CompressionNone Compression = "none" // Plaintext as decoded
	CompressionLZ4  Compression = "lz4"  // LZ4 frame, ".lz4" appended to the file name
)

// ParseCompression parses an output compression name; empty means none.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	default:
		return "", fmt.Errorf("unknown output compression: %q", name)
	}
}

// Options configures an extraction run
type Options struct {
	Encryption  bool         // Entries are AES encrypted unless exempt
	Keys        KeyList      // Candidate keys; loaded from KeyListPath when nil
	KeyListPath string       // Key list file, used when Keys is nil
	Exempt      ExemptPolicy // Entries stored without encryption
	Workers     int          // Concurrent entries; runtime.NumCPU() when <= 0
	Compression Compression  // Output encoding
	Logger      *slog.Logger
	Progress    *progress.Tracker
}

// DefaultOptions returns options for an encrypted archive with the
// default key list and exemptions.
func DefaultOptions() Options {
	return Options{
		Encryption:  true,
		KeyListPath: "keylist.txt",
		Exempt:      DefaultExemptPolicy(),
		Compression: CompressionNone,
	}
}

// Extract decodes every entry of the archive into outputRoot.
//
// Key list, header and directory problems abort the run with a nil report.
// After that every entry is processed independently and the report is
// always returned; per-entry errors are available through Report.Err.
func Extract(archivePath, outputRoot string, opts Options) (*Report, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var keys KeyList
	if opts.Encryption {
		keys = opts.Keys
		if keys == nil {
			var stats ParseStats
			var err error
			keys, stats, err = LoadKeys(opts.KeyListPath)
			if err != nil {
				return nil, err
			}
			logger.Debug("loaded key list", "path", opts.KeyListPath, "keys", stats.Accepted, "skipped", stats.Skipped())
		}
		if len(keys) == 0 {
			return nil, ErrNoKeys
		}
	}

	hdr, entries, err := ReadDirectory(archivePath)
	if err != nil {
		return nil, err
	}
	logger.Info("read directory", "archive", archivePath, "version", hdr.Version, "entries", len(entries))

	report := &Report{
		Archive: archivePath,
		Header:  hdr,
		Entries: make([]EntryResult, len(entries)),
	}

	opts.Progress.Start(uint64(len(entries)))
	defer opts.Progress.Stop()

	dec := NewDecoder(keys, opts.Encryption, opts.Exempt)
	results := extractEntries(archivePath, outputRoot, entries, dec, opts)
	for _, res := range results {
		if res.err != nil {
			logger.Warn("entry not extracted", "path", res.Path, "error", res.err)
		} else {
			logger.Debug("entry extracted", "path", res.Path, "output", res.Output, "key", res.KeyIndex)
		}
		report.record(res)
	}

	report.Elapsed = time.Since(start)
	logger.Info("extraction complete",
		"archive", archivePath,
		"written", report.Written,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"elapsed", report.Elapsed.Round(time.Millisecond))
	return report, nil
}

// extractEntries processes entries concurrently. Results are indexed like entries.
func extractEntries(archivePath, outputRoot string, entries []Entry, dec *Decoder, opts Options) []EntryResult {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]EntryResult, len(entries))
	wg := sizedwaitgroup.New(workers)
	for i := range entries {
		wg.Add()
		go func(i int) {
			defer wg.Done()
			defer opts.Progress.EntryDone()
			results[i] = extractEntry(archivePath, outputRoot, entries[i], dec, opts)
		}(i)
	}
	wg.Wait()
	return results
}

// extractEntry reads, decodes and writes one entry
func extractEntry(archivePath, outputRoot string, e Entry, dec *Decoder, opts Options) EntryResult {
	res := EntryResult{Index: e.Index, Path: e.Path, KeyIndex: -1}
	fail := func(op string, err error) EntryResult {
		res.err = &EntryError{Index: e.Index, Path: e.Path, Op: op, Err: err}
		return res
	}

	raw, err := readPayload(archivePath, e)
	if err != nil {
		return fail("read", err)
	}

	decoded, err := dec.Decode(raw, e.Path)
	if err != nil {
		return fail("decode", err)
	}
	res.KeyIndex = decoded.KeyIndex

	out, err := ResolveOutputPath(outputRoot, e.Path)
	if err != nil {
		return fail("resolve", err)
	}
	if opts.Compression == CompressionLZ4 {
		out += ".lz4"
	}
	if err := EnsureParent(out); err != nil {
		return fail("mkdir", err)
	}
	if err := writeOutput(out, decoded.Data, opts); err != nil {
		return fail("write", err)
	}

	res.Output = out
	res.Size = len(decoded.Data)
	res.Digest = digest(decoded.Data)
	return res
}

// readPayload reads the stored bytes of e through its own file handle.
// The payload range is checked against the archive size before any
// buffer is allocated.
func readPayload(archivePath string, e Entry) ([]byte, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	if end := int64(e.PayloadOffset) + int64(e.CompressedSize); end > fi.Size() {
		return nil, fmt.Errorf("%w: payload of %d bytes at offset %d ends past archive size %d",
			ErrFormat, e.CompressedSize, e.PayloadOffset, fi.Size())
	}

	buf := make([]byte, e.CompressedSize)
	sr := io.NewSectionReader(f, int64(e.PayloadOffset), int64(e.CompressedSize))
	if _, err := io.ReadFull(sr, buf); err != nil {
		return nil, fmt.Errorf("%w: payload of %d bytes at offset %d: %v", ErrFormat, e.CompressedSize, e.PayloadOffset, err)
	}
	return buf, nil
}

// writeOutput writes data to path, through an LZ4 frame when configured.
// A partially written file is removed on failure.
func writeOutput(path string, data []byte, opts Options) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				err = errors.Join(err, fmt.Errorf("remove partial output: %w", rmErr))
			}
		}
	}()

	bw := bufio.NewWriter(&progress.Writer{W: f, Tracker: opts.Progress})
	var w io.Writer = bw
	var zw *lz4.Writer
	if opts.Compression == CompressionLZ4 {
		zw = lz4.NewWriter(bw)
		w = zw
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("close LZ4 writer %s: %w", path, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
