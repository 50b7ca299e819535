package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveOutputPath maps an entry path to its location under outputRoot.
//
// Components of outputRoot containing ArchiveMarker are dropped, ExportDir
// is appended, then the entry path with backslashes read as separators.
// Entry paths that would leave the export directory are rejected.
func ResolveOutputPath(outputRoot, relPath string) (string, error) {
	base := filepath.Join(stripArchiveComponents(outputRoot), ExportDir)

	rel := filepath.FromSlash(strings.ReplaceAll(relPath, `\`, "/"))
	out := filepath.Join(base, rel)
	if !strings.HasPrefix(out, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrInsecurePath, relPath)
	}
	return out, nil
}

// stripArchiveComponents removes every path component naming an archive
func stripArchiveComponents(root string) string {
	root = filepath.Clean(root)
	vol := filepath.VolumeName(root)
	rest := root[len(vol):]

	var kept []string
	for _, c := range strings.Split(rest, string(os.PathSeparator)) {
		if c == "" || strings.Contains(c, ArchiveMarker) {
			continue
		}
		kept = append(kept, c)
	}

	prefix := vol
	if strings.HasPrefix(rest, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	if len(kept) == 0 {
		if prefix == "" {
			return "."
		}
		return prefix
	}
	return prefix + filepath.Join(kept...)
}

// EnsureParent creates the parent directories of path. It tolerates
// directories created concurrently by other workers.
func EnsureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", path, err)
	}
	return nil
}
