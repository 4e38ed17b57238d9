package sequence

import (
	"os"
	"path/filepath"
	"testing"
)

type fakeProber struct {
	width, height, bitDepth int
	warning                 string
	err                     error
}

func (f fakeProber) Probe(path string) (int, int, int, string, error) {
	return f.width, f.height, f.bitDepth, f.warning, f.err
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScan_ContiguousSequence(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "slice_000.tif", "slice_001.tif", "slice_002.tif")

	meta, _, err := Scan(dir, fakeProber{width: 512, height: 512, bitDepth: 8})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if meta.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", meta.Count())
	}
	if meta.Prefix != "slice_" || meta.Extension != "tif" {
		t.Fatalf("unexpected prefix/ext: %q/%q", meta.Prefix, meta.Extension)
	}
	if meta.PathAt(0) == "" || meta.PathAt(2) == "" {
		t.Fatal("expected first and last positions to resolve to a path")
	}
}

func TestScan_NumericOrderingNotLexical(t *testing.T) {
	dir := t.TempDir()
	// With zero-padded names lexical and numeric order agree, so this
	// verifies that Begin/End come from the parsed integer indices (9 and
	// 11), not from the digit strings "0009" and "0011".
	writeFiles(t, dir, "img0009.png", "img0010.png", "img0011.png")
	meta, _, err := Scan(dir, fakeProber{width: 100, height: 100, bitDepth: 8})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if meta.Begin != 9 || meta.End != 11 {
		t.Fatalf("Begin/End = %d/%d, want 9/11", meta.Begin, meta.End)
	}
}

func TestScan_GapIsTolerated(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a000.tif", "a001.tif", "a003.tif")
	meta, warnings, err := Scan(dir, fakeProber{width: 64, height: 64, bitDepth: 8})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if meta.Count() != 4 {
		t.Fatalf("Count() = %d, want 4 (0..3 inclusive with index 2 missing)", meta.Count())
	}
	if meta.PathAt(2) != "" {
		t.Fatalf("expected position 2 (index 2) to be missing, got %q", meta.PathAt(2))
	}
	found := false
	for _, w := range warnings {
		if w != "" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected at least one warning about the gap")
	}
}

func TestScan_PicksLargestGroupAmongMixedNamingSchemes(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"ct_0000.tif", "ct_0001.tif", "ct_0002.tif", "ct_0003.tif",
		"stray_00.tif", "stray_01.tif",
	)
	meta, _, err := Scan(dir, fakeProber{width: 32, height: 32, bitDepth: 8})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if meta.Prefix != "ct_" {
		t.Fatalf("prefix = %q, want the larger group's prefix %q", meta.Prefix, "ct_")
	}
	if meta.Count() != 4 {
		t.Fatalf("Count() = %d, want 4", meta.Count())
	}
}

func TestScan_NoCandidatesErrors(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "readme.txt", "notes.md")
	if _, _, err := Scan(dir, fakeProber{}); err == nil {
		t.Fatal("expected an error when no candidate sequence exists")
	}
}

func TestScan_SingleFileIsNotASequence(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "only_000.tif")
	if _, _, err := Scan(dir, fakeProber{width: 10, height: 10, bitDepth: 8}); err == nil {
		t.Fatal("expected an error when fewer than 2 files share a pattern")
	}
}

func TestSplitTrailingDigits(t *testing.T) {
	cases := []struct {
		name                         string
		wantPrefix, wantDigits, wantExt string
		wantOK                       bool
	}{
		{"slice_0042.tif", "slice_", "0042", "tif", true},
		{"0001.png", "", "0001", "png", true},
		{"noindex.tif", "", "", "", false},
		{"a.b.tif", "a.b", "", "", false},
	}
	for _, c := range cases {
		prefix, digits, ext, ok := splitTrailingDigits(c.name)
		if ok != c.wantOK {
			t.Errorf("%q: ok = %v, want %v", c.name, ok, c.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if prefix != c.wantPrefix || digits != c.wantDigits || ext != c.wantExt {
			t.Errorf("%q: got (%q,%q,%q), want (%q,%q,%q)", c.name, prefix, digits, ext, c.wantPrefix, c.wantDigits, c.wantExt)
		}
	}
}
