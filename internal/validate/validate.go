// Package validate sanitizes filenames and directory paths before any file
// in a CT slice directory is opened, preventing path traversal and
// out-of-sandbox access.
package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jikhanjung/ctpyramid/internal/ctperr"
)

// reservedChars mirrors the Windows-reserved character set; rejecting them
// on every platform keeps slice directories portable.
const reservedChars = `<>:"|?*`

// ValidateFilename rejects names containing traversal segments, path
// separators, NUL bytes, reserved characters, or absolute paths.
func ValidateFilename(name string) error {
	if name == "" {
		return ctperr.Wrap(ctperr.KindSecurity, name, "empty filename", nil)
	}
	if filepath.IsAbs(name) {
		return ctperr.Wrap(ctperr.KindSecurity, name, "absolute paths are not allowed", nil)
	}
	if strings.ContainsRune(name, 0) {
		return ctperr.Wrap(ctperr.KindSecurity, name, "filename contains a NUL byte", nil)
	}
	if strings.Contains(name, "..") {
		return ctperr.Wrap(ctperr.KindSecurity, name, "filename contains a traversal segment", nil)
	}
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, '\\') {
		return ctperr.Wrap(ctperr.KindSecurity, name, "filename contains a path separator", nil)
	}
	if strings.ContainsAny(name, reservedChars) {
		return ctperr.Wrap(ctperr.KindSecurity, name, "filename contains a reserved character", nil)
	}
	return nil
}

// ValidateInside resolves symlinks on candidate and confirms it is a
// descendant of the canonical form of base. Both base and candidate must
// already exist on disk.
func ValidateInside(base, candidate string) error {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return ctperr.Wrap(ctperr.KindSecurity, base, "resolving base directory", err)
	}
	canonBase, err := filepath.EvalSymlinks(absBase)
	if err != nil {
		return ctperr.Wrap(ctperr.KindSecurity, base, "resolving base directory symlinks", err)
	}

	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return ctperr.Wrap(ctperr.KindSecurity, candidate, "resolving candidate path", err)
	}
	canonCandidate, err := filepath.EvalSymlinks(absCandidate)
	if err != nil {
		return ctperr.Wrap(ctperr.KindSecurity, candidate, "resolving candidate symlinks", err)
	}

	rel, err := filepath.Rel(canonBase, canonCandidate)
	if err != nil {
		return ctperr.Wrap(ctperr.KindSecurity, candidate, "computing relative path", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ctperr.Wrap(ctperr.KindSecurity, candidate, "path escapes the sandboxed directory", nil)
	}
	return nil
}

// EnsureDir creates dir (and any missing parents) with 0755 permissions
// (owner-writable, readable by all) if it does not already exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ctperr.Wrap(ctperr.KindIO, dir, "creating output directory", err)
	}
	return nil
}

// SafeListDir returns a sorted list of directory entries whose filename
// passes ValidateFilename and whose lowercased extension is in
// allowedExts. Rejected entries are appended to the returned warnings
// slice rather than failing the whole call.
func SafeListDir(dir string, allowedExts map[string]bool) (entries []string, warnings []string, err error) {
	raw, rerr := os.ReadDir(dir)
	if rerr != nil {
		return nil, nil, ctperr.Wrap(ctperr.KindIO, dir, "reading directory", rerr)
	}

	for _, de := range raw {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if verr := ValidateFilename(name); verr != nil {
			warnings = append(warnings, fmt.Sprintf("skipping %q: %v", name, verr))
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		if !allowedExts[ext] {
			warnings = append(warnings, fmt.Sprintf("skipping %q: extension %q not allowed", name, ext))
			continue
		}
		entries = append(entries, name)
	}

	sort.Strings(entries)
	return entries, warnings, nil
}
