package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// maxSuffix bounds the collision search in UniquePath.
const maxSuffix = 100000

// CopyFileVerified copies src to dst, syncs it, then re-reads dst and
// compares its SHA-256 with the source stream. dst is removed on any failure.
func CopyFileVerified(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	want := sha256.New()
	if _, err = io.Copy(out, io.TeeReader(in, want)); err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	got, err := hashFile(dst)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, want.Sum(nil)) {
		return fmt.Errorf("copy of %s does not match the source", filepath.Base(src))
	}
	return nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// MoveFile renames src to dst, falling back to a verified copy plus removal
// when the two paths live on different filesystems.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return err
	}
	if err := CopyFileVerified(src, dst); err != nil {
		return fmt.Errorf("cross-device copy: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// UniquePath returns dir/stem.ext, or the first of dir/stem-1.ext,
// dir/stem-2.ext, ... that does not exist yet. ext may be given with or
// without the leading dot.
func UniquePath(dir, stem, ext string) (string, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	candidate := filepath.Join(dir, stem+ext)
	for n := 1; ; n++ {
		_, err := os.Lstat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		if n > maxSuffix {
			return "", fmt.Errorf("no free name for %s%s in %s", stem, ext, dir)
		}
		candidate = filepath.Join(dir, stem+"-"+strconv.Itoa(n)+ext)
	}
}

// Stem returns the file name of path without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
