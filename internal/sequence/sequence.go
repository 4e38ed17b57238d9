// Package sequence discovers an ordered CT slice sequence in a directory:
// a consistent <prefix><zero-padded index>.<ext> naming pattern, natural
// (numeric) ordering, and per-sequence metadata.
package sequence

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jikhanjung/ctpyramid/internal/ctperr"
	"github.com/jikhanjung/ctpyramid/internal/validate"
)

// AllowedExtensions is the level-0 format allow-list (§6 of SPEC_FULL.md).
var AllowedExtensions = map[string]bool{
	"tif": true, "tiff": true,
	"png": true,
	"bmp": true,
	"jpg": true, "jpeg": true,
}

// Meta describes a discovered slice sequence.
type Meta struct {
	Dir        string
	Prefix     string
	Extension  string
	IndexWidth int
	Begin, End int // inclusive
	Width      int
	Height     int
	BitDepth   int         // 8 or 16
	Files      map[int]string // index -> filename, present indices only
}

// Count returns the number of indices in [Begin, End], including any
// missing (logged, not failed) indices.
func (m Meta) Count() int { return m.End - m.Begin + 1 }

// Path returns the full path of the slice at absolute sequence index i
// (as it appears in the original filenames), or "" if i is missing.
func (m Meta) Path(i int) string {
	name, ok := m.Files[i]
	if !ok {
		return ""
	}
	return filepath.Join(m.Dir, name)
}

// PathAt returns the full path of the slice at 0-based position pos
// (0 is the first slice, Count()-1 the last), or "" if that position's
// underlying index is missing from the sequence (a tolerated gap).
func (m Meta) PathAt(pos int) string {
	return m.Path(m.Begin + pos)
}

// Prober inspects one image file and returns its pixel dimensions and
// bit depth. imageio.Codec satisfies this interface (its Probe decodes
// the whole file and discards the pixels).
type Prober interface {
	Probe(path string) (width, height, bitDepth int, warning string, err error)
}

type candidate struct {
	index int
	name  string
}

type groupKey struct {
	prefix string
	ext    string
	width  int
}

// Scan discovers the sequence in dir. warnings carries non-fatal notices
// (skipped files, missing indices, bit-depth coercion).
func Scan(dir string, prober Prober) (Meta, []string, error) {
	entries, listWarnings, err := validate.SafeListDir(dir, AllowedExtensions)
	if err != nil {
		return Meta{}, nil, err
	}
	warnings := append([]string{}, listWarnings...)

	groups := make(map[groupKey][]candidate)
	for _, name := range entries {
		prefix, digits, ext, ok := splitTrailingDigits(name)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("skipping %q: no trailing index digits", name))
			continue
		}
		idx, err := strconv.Atoi(digits)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping %q: unparsable index %q", name, digits))
			continue
		}
		key := groupKey{prefix: prefix, ext: ext, width: len(digits)}
		groups[key] = append(groups[key], candidate{index: idx, name: name})
	}

	if len(groups) == 0 {
		return Meta{}, warnings, ctperr.Wrap(ctperr.KindNoSequence, dir, "no candidate image files with a trailing index found", nil)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].prefix != keys[j].prefix {
			return keys[i].prefix < keys[j].prefix
		}
		if keys[i].ext != keys[j].ext {
			return keys[i].ext < keys[j].ext
		}
		return keys[i].width < keys[j].width
	})

	best := keys[0]
	for _, k := range keys[1:] {
		if len(groups[k]) > len(groups[best]) {
			best = k
		}
	}

	members := groups[best]
	if len(members) < 2 {
		return Meta{}, warnings, ctperr.Wrap(ctperr.KindNoSequence, dir, "fewer than 2 files share a consistent naming pattern", nil)
	}

	files := make(map[int]string, len(members))
	begin, end := members[0].index, members[0].index
	for _, c := range members {
		files[c.index] = c.name
		if c.index < begin {
			begin = c.index
		}
		if c.index > end {
			end = c.index
		}
	}
	for i := begin; i <= end; i++ {
		if _, ok := files[i]; !ok {
			warnings = append(warnings, fmt.Sprintf("index %d missing from sequence (gap tolerated)", i))
		}
	}

	firstName, ok := files[begin]
	if !ok {
		return Meta{}, warnings, ctperr.Wrap(ctperr.KindNoSequence, dir, "sequence begin index unexpectedly missing", nil)
	}
	firstPath := filepath.Join(dir, firstName)
	width, height, bitDepth, probeWarning, err := prober.Probe(firstPath)
	if err != nil {
		return Meta{}, warnings, err
	}
	if probeWarning != "" {
		warnings = append(warnings, probeWarning)
	}

	meta := Meta{
		Dir:        dir,
		Prefix:     best.prefix,
		Extension:  best.ext,
		IndexWidth: best.width,
		Begin:      begin,
		End:        end,
		Width:      width,
		Height:     height,
		BitDepth:   bitDepth,
		Files:      files,
	}
	return meta, warnings, nil
}

// splitTrailingDigits splits name into (prefix, digits, ext) where digits
// is the longest run of decimal characters immediately before the
// extension. ok is false when no trailing digits exist.
func splitTrailingDigits(name string) (prefix, digits, ext string, ok bool) {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return "", "", "", false
	}
	ext = strings.ToLower(name[dot+1:])
	base := name[:dot]

	i := len(base)
	for i > 0 && base[i-1] >= '0' && base[i-1] <= '9' {
		i--
	}
	if i == len(base) {
		return "", "", "", false
	}
	return base[:i], base[i:], ext, true
}
