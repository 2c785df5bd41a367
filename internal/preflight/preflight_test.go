package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"dropcast/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckMastodon_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/instance" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckMastodon(context.Background(), srv.URL+"/")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckMastodon_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if result := CheckMastodon(context.Background(), srv.URL); result.Passed {
		t.Fatal("expected failure for 503")
	}
	if result := CheckMastodon(context.Background(), ""); result.Passed || result.Detail != "missing server" {
		t.Fatalf("unexpected result for empty server: %+v", result)
	}
}

func TestRunAllReportsMissingDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DropDir = filepath.Join(base, "drop")
	cfg.Paths.SortedImageDir = filepath.Join(base, "jpg")
	cfg.Paths.SortedVideoDir = filepath.Join(base, "mp4")
	cfg.Paths.DiscardDir = filepath.Join(base, "discard")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Captions.OptionsFile = filepath.Join(base, "post_options.txt")
	for _, dir := range []string{cfg.Paths.DropDir, cfg.Paths.SortedImageDir, cfg.Paths.SortedVideoDir, cfg.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 6 {
		t.Fatalf("expected 6 results for dryrun config, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Discard directory" {
		t.Fatalf("expected only the discard directory to fail, got %+v", failed)
	}
}

func TestCheckProviderFromConfig(t *testing.T) {
	cfg := config.Default()
	if result := CheckProviderFromConfig(context.Background(), &cfg); !result.Passed {
		t.Fatalf("dryrun should pass: %+v", result)
	}
	cfg.Publish.Provider = "friendster"
	if result := CheckProviderFromConfig(context.Background(), &cfg); result.Passed {
		t.Fatal("unknown provider should fail")
	}
}

func TestCheckSystemDepsOptionalProbe(t *testing.T) {
	t.Setenv("PATH", "")
	cfg := config.Default()
	cfg.Convert.VerifyVideo = false
	statuses := CheckSystemDeps(&cfg)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[2].Optional {
		t.Fatal("ffprobe should be optional when verification is off")
	}
	if statuses[0].Available {
		t.Fatal("nothing should resolve with an empty PATH")
	}
}
