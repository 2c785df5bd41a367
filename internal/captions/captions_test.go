package captions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const header = "file | caption --options"

func writeOptions(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "post_options.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func readOptions(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestResolveMatchingLine(t *testing.T) {
	path := writeOptions(t, header,
		"other.jpg | not this one",
		"sunset.jpg | Golden hour at the pier --latlon 54.32,10.13 --boost yes",
	)
	r := NewResolver(Config{OptionsFile: path, PermanentHashtags: "#daily #photo"}, nil)

	opts, err := r.Resolve("/media/sorted/jpg/sunset.jpg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if opts.Caption != "Golden hour at the pier\n#daily #photo" {
		t.Fatalf("unexpected caption %q", opts.Caption)
	}
	if opts.Location == nil || opts.Location.Latitude != 54.32 || opts.Location.Longitude != 10.13 {
		t.Fatalf("unexpected location %+v", opts.Location)
	}
	if got := readOptions(t, path); len(got) != 3 {
		t.Fatalf("Resolve must not consume the line, file now %v", got)
	}
}

func TestResolveMatchesStem(t *testing.T) {
	path := writeOptions(t, header, "IMG_0042 | from the original png")
	r := NewResolver(Config{OptionsFile: path}, nil)
	opts, err := r.Resolve("/media/sorted/jpg/IMG_0042.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if opts.Caption != "from the original png" {
		t.Fatalf("unexpected caption %q", opts.Caption)
	}
}

func TestResolveWithoutLineUsesHashtags(t *testing.T) {
	r := NewResolver(Config{OptionsFile: filepath.Join(t.TempDir(), "missing.txt"), PermanentHashtags: " #daily "}, nil)
	opts, err := r.Resolve("/media/sorted/mp4/clip.mp4")
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if opts.Caption != "#daily" || opts.Location != nil {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestResolveNormalizesToNFC(t *testing.T) {
	decomposed := "Cafe\u0301 morning"
	path := writeOptions(t, header, "cafe.jpg | "+decomposed)
	r := NewResolver(Config{OptionsFile: path}, nil)
	opts, err := r.Resolve("cafe.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if opts.Caption != "Caf\u00e9 morning" {
		t.Fatalf("expected NFC caption, got %q", opts.Caption)
	}
}

func TestResolveInvalidLocationIsIgnored(t *testing.T) {
	path := writeOptions(t, header, "a.jpg | hello --latlon 123,456")
	r := NewResolver(Config{OptionsFile: path}, nil)
	opts, err := r.Resolve("a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if opts.Location != nil || opts.Caption != "hello" {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestComposeTruncatesBodyNotHashtags(t *testing.T) {
	path := writeOptions(t, header, "a.jpg | "+strings.Repeat("x", 50))
	r := NewResolver(Config{OptionsFile: path, PermanentHashtags: "#tag", MaxLength: 20}, nil)
	opts, err := r.Resolve("a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if opts.Caption != strings.Repeat("x", 15)+"\n#tag" {
		t.Fatalf("unexpected caption %q", opts.Caption)
	}
}

func TestConsumeRemovesOnlyMatchingLine(t *testing.T) {
	path := writeOptions(t, header, "a.jpg | first", "b.jpg | second")
	r := NewResolver(Config{OptionsFile: path}, nil)

	removed, err := r.Consume("/sorted/a.jpg")
	if err != nil || !removed {
		t.Fatalf("Consume: %v %v", removed, err)
	}
	got := readOptions(t, path)
	if len(got) != 2 || got[0] != header || got[1] != "b.jpg | second" {
		t.Fatalf("unexpected file after consume: %v", got)
	}
	if n, _ := r.Pending(); n != 1 {
		t.Fatalf("expected one pending line, got %d", n)
	}

	removed, err = r.Consume("/sorted/zzz.jpg")
	if err != nil || removed {
		t.Fatalf("expected no-op for unknown file: %v %v", removed, err)
	}
}
