// dnpak extracts encrypted, zlib-compressed PAK game archives.
//
// Usage:
//
//	dnpak extract [flags] <archive.pak|glob>... <output-root>
//	dnpak list <archive.pak>
//	dnpak keys <keylist.txt>
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"dnpak/pkg/config"
	"dnpak/pkg/core"
	"dnpak/pkg/progress"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if os.Getenv("DNPAK_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	level := new(slog.LevelVar)
	level.Set(logLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	operation := os.Args[1]
	args := os.Args[2:]

	var err error
	switch operation {
	case "extract":
		err = handleExtract(args, logger, level)
	case "list":
		err = handleList(args)
	case "keys":
		err = handleKeys(args)
	case "version", "--version", "-v":
		fmt.Printf("dnpak %s (%s)\n", version, runtime.Version())
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Invalid operation: %s\n\n", operation)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printUsage prints the command-line usage information
func printUsage() {
	fmt.Print(`dnpak - extract PAK game archives

USAGE
    dnpak <command> [flags] [args...]

COMMANDS
    extract   Extract one or more archives into <output-root>/Export
    list      Print the directory of an archive
    keys      Check a key list file
    version   Show version

EXTRACT FLAGS
    --config PATH         YAML configuration file
    --keys PATH           Key list file (default keylist.txt)
    --no-encryption       Treat every entry as plain zlib data
    --workers N           Concurrent entries (default: CPU count)
    --lz4                 Store extracted files as LZ4 frames
    --manifest PATH       Write a YAML report of the run

ENVIRONMENT
    DNPAK_CONFIG   Configuration file used when --config is not given
    DNPAK_DEBUG    Enable debug logging
`)
}

// handleExtract handles the extract operation
func handleExtract(args []string, logger *slog.Logger, level *slog.LevelVar) error {
	flags := pflag.NewFlagSet("extract", pflag.ContinueOnError)
	configPath := flags.String("config", "", "YAML configuration file")
	keyList := flags.String("keys", "", "key list file")
	noEncryption := flags.Bool("no-encryption", false, "treat every entry as plain zlib data")
	workers := flags.Int("workers", 0, "concurrent entries")
	useLZ4 := flags.Bool("lz4", false, "store extracted files as LZ4 frames")
	manifest := flags.String("manifest", "", "write a YAML report of the run")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 2 {
		return errors.New("usage: dnpak extract [flags] <archive.pak|glob>... <output-root>")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if flags.Changed("keys") {
		cfg.KeyList = *keyList
	}
	if *noEncryption {
		cfg.Encryption = false
	}
	if flags.Changed("workers") {
		cfg.Workers = *workers
	}
	if *useLZ4 {
		cfg.Output.Compression = string(core.CompressionLZ4)
	}
	if flags.Changed("manifest") {
		cfg.Output.Manifest = *manifest
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.LogLevel == "debug" {
		level.Set(slog.LevelDebug)
	}

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Logger = logger
	opts.Progress = progress.New(logger, progress.DefaultInterval)

	if opts.Encryption {
		keys, stats, err := core.LoadKeys(cfg.KeyList)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return fmt.Errorf("%s: %w", cfg.KeyList, core.ErrNoKeys)
		}
		logger.Info("loaded key list", "path", cfg.KeyList, "keys", stats.Accepted, "skipped", stats.Skipped())
		opts.Keys = keys
	}

	positional := flags.Args()
	outputRoot := positional[len(positional)-1]
	archives, err := expandArchives(positional[:len(positional)-1])
	if err != nil {
		return err
	}

	start := time.Now()
	var reports []*core.Report
	var runErrs []error
	for _, archive := range archives {
		report, err := core.Extract(archive, outputRoot, opts)
		if err != nil {
			runErrs = append(runErrs, fmt.Errorf("%s: %w", archive, err))
			continue
		}
		fmt.Println(report)
		reports = append(reports, report)
	}
	fmt.Printf("Total time elapsed: %.2f seconds\n", time.Since(start).Seconds())

	if cfg.Output.Manifest != "" {
		if err := writeManifests(cfg.Output.Manifest, reports); err != nil {
			runErrs = append(runErrs, err)
		}
	}
	return errors.Join(runErrs...)
}

// expandArchives expands glob patterns; plain paths pass through unchanged
func expandArchives(patterns []string) ([]string, error) {
	var archives []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			archives = append(archives, p)
			continue
		}
		archives = append(archives, matches...)
	}
	return archives, nil
}

// writeManifests writes every report to path as consecutive YAML documents
func writeManifests(path string, reports []*core.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer f.Close()
	for _, r := range reports {
		if err := r.WriteManifest(f); err != nil {
			return err
		}
	}
	return f.Close()
}

// handleList handles the list operation
func handleList(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: dnpak list <archive.pak>")
	}
	hdr, entries, err := core.ReadDirectory(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("version %d, %d entries, directory at %#x\n", hdr.Version, hdr.EntryCount, hdr.DirectoryOffset)
	var total uint64
	for _, e := range entries {
		total += uint64(e.CompressedSize)
		fmt.Printf("%10s  %#010x  %s\n", humanize.Bytes(uint64(e.CompressedSize)), e.PayloadOffset, e.Path)
	}
	fmt.Printf("%d files, %s stored\n", len(entries), humanize.Bytes(total))
	return nil
}

// handleKeys handles the keys operation
func handleKeys(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: dnpak keys <keylist.txt>")
	}
	keys, stats, err := core.LoadKeys(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%d candidate keys, %d lines skipped\n", len(keys), stats.Skipped())
	if len(keys) == 0 {
		return core.ErrNoKeys
	}
	return nil
}
