package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dropcast/internal/captions"
	"dropcast/internal/config"
	"dropcast/internal/daemon"
	"dropcast/internal/fslock"
	"dropcast/internal/history"
	"dropcast/internal/logging"
	"dropcast/internal/media"
	"dropcast/internal/publish"
	"dropcast/internal/queue"
	"dropcast/internal/testsupport"
	"dropcast/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	queue      *queue.Queue
	history    *history.Store
	hub        *logging.StreamHub
	daemon     *daemon.Daemon
	configPath string
	apiAddr    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	// The empty-queue cooldown keeps the publish lane from draining items
	// the tests enqueue.
	q := queue.New(queue.CooldownPolicy{
		Base:          time.Hour,
		EmptyInterval: time.Hour,
		BackoffFactor: 2,
		MaxBackoff:    6 * time.Hour,
		FreezeDefault: time.Hour,
	})
	q.GenerateNewCooldown(true)

	mgr, err := workflow.NewManager(cfg, workflow.Dependencies{
		Queue: q,
		Classifier: media.NewClassifier(media.ClassifierConfig{
			ImageDir: cfg.Paths.SortedImageDir,
			VideoDir: cfg.Paths.SortedVideoDir,
		}, nil, nil, nil),
		Options: captions.NewResolver(captions.Config{OptionsFile: cfg.Captions.OptionsFile}, nil),
		History: store,
		Lock:    fslock.New(filepath.Join(cfg.Paths.LogDir, "work.lock")),
		Poster:  publish.NewDryRun(nil),
	}, nil, workflow.WithIntervals(time.Hour, time.Hour))
	if err != nil {
		t.Fatalf("workflow.NewManager: %v", err)
	}

	hub := logging.NewStreamHub(64)
	d, err := daemon.New(cfg, nil, daemon.Options{
		Workflow: mgr,
		History:  store,
		Hub:      hub,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() { _ = d.RequestShutdown(time.Second) })

	return &cliTestEnv{
		cfg:        cfg,
		queue:      q,
		history:    store,
		hub:        hub,
		daemon:     d,
		configPath: configPath,
		apiAddr:    d.Addr(),
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.configPath, "--api", e.apiAddr}, args...))
}

func runCLI(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
drop_dir = %q
sorted_image_dir = %q
sorted_video_dir = %q
discard_dir = %q
log_dir = %q
api_bind = %q
api_token = %q

[convert]
magick_binary = %q
ffmpeg_binary = %q
ffprobe_binary = %q

[captions]
options_file = %q

[history]
path = %q
`,
		cfg.Paths.DropDir,
		cfg.Paths.SortedImageDir,
		cfg.Paths.SortedVideoDir,
		cfg.Paths.DiscardDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Paths.APIToken,
		cfg.Convert.MagickBinary,
		cfg.Convert.FFmpegBinary,
		cfg.Convert.FFprobeBinary,
		cfg.Captions.OptionsFile,
		cfg.History.Path,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
