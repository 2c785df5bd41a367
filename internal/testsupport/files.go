package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// Minimal JFIF stream: SOI, an APP0 segment, EOI. Enough for sniffing.
var jpegHeader = []byte{
	0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01,
	0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0xFF, 0xD9,
}

// WriteJPEG creates dir/name with content that sniffs as image/jpeg.
func WriteJPEG(t testing.TB, dir, name string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, jpegHeader, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
