package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dropcast/internal/config"
)

// ConfigOption adjusts the config built by NewConfig. base is the test's
// temp root.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns a dryrun config whose every path lives under one temp
// directory. Drop, sorted, discard and log directories exist on return.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DropDir = filepath.Join(base, "outbound")
	cfg.Paths.SortedImageDir = filepath.Join(base, "sorted", "jpg")
	cfg.Paths.SortedVideoDir = filepath.Join(base, "sorted", "mp4")
	cfg.Paths.DiscardDir = filepath.Join(base, "discard")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Publish.Provider = "dryrun"
	cfg.Captions.OptionsFile = filepath.Join(base, "post_options.txt")
	cfg.History.Path = filepath.Join(cfg.Paths.LogDir, "history.db")

	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// BaseDir returns the temp root behind a NewConfig result.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DropDir)
}

// WithAPIToken requires bearer authentication on the status API.
func WithAPIToken(token string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Paths.APIToken = token
	}
}

// WithoutAPI disables the status API listener.
func WithoutAPI() ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Paths.APIBind = ""
	}
}

// WithStubbedBinaries installs always-succeeding executables (magick, ffmpeg
// and ffprobe by default) ahead of PATH and points the convert settings at
// them.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, base string, cfg *config.Config) {
		if len(names) == 0 {
			names = []string{"magick", "ffmpeg", "ffprobe"}
		}
		bin := filepath.Join(base, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			t.Fatalf("stub dir: %v", err)
		}
		for _, name := range names {
			path := filepath.Join(bin, name)
			if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("stub %s: %v", name, err)
			}
			switch name {
			case "magick", "convert":
				cfg.Convert.MagickBinary = path
			case "ffmpeg":
				cfg.Convert.FFmpegBinary = path
			case "ffprobe":
				cfg.Convert.FFprobeBinary = path
			}
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
