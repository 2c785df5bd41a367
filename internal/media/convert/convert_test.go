package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dropcast/internal/media"
)

// writeStub creates an executable that records its arguments and copies the
// input it was given to its final argument.
func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecImageUsesFirstFrame(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	magick := writeStub(t, dir, "magick", `echo "$@" > `+argsFile+`
for last; do :; done
echo image > "$last"
`)
	src := filepath.Join(dir, "photo.png")
	dst := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	conv := &Exec{MagickBinary: magick}
	if err := conv.Convert(context.Background(), src, dst, media.KindImage); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(args)); got != src+"[0] "+dst {
		t.Fatalf("unexpected magick args %q", got)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected output: %v", err)
	}
}

func TestExecVideoArgs(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	ffmpeg := writeStub(t, dir, "ffmpeg", `echo "$@" > `+argsFile+"\n")

	conv := &Exec{FFmpegBinary: ffmpeg}
	if err := conv.Convert(context.Background(), "in.mov", "out.mp4", media.KindVideo); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	want := "-hide_banner -loglevel error -y -i in.mov out.mp4"
	if got := strings.TrimSpace(string(args)); got != want {
		t.Fatalf("unexpected ffmpeg args %q", got)
	}
}

func TestExecFailureIncludesOutput(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeStub(t, dir, "ffmpeg", "echo 'moov atom not found' >&2\nexit 1\n")

	conv := &Exec{FFmpegBinary: ffmpeg}
	err := conv.Convert(context.Background(), "in.mov", "out.mp4", media.KindVideo)
	if err == nil || !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
}

func TestExecTimeout(t *testing.T) {
	dir := t.TempDir()
	magick := writeStub(t, dir, "magick", "exec sleep 5\n")

	conv := &Exec{MagickBinary: magick, Timeout: 50 * time.Millisecond}
	err := conv.Convert(context.Background(), "a.png", "a.jpg", media.KindImage)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestExecRejectsUnknownKind(t *testing.T) {
	conv := &Exec{}
	if err := conv.Convert(context.Background(), "a", "b", media.Kind("audio")); err == nil {
		t.Fatal("expected error")
	}
}
