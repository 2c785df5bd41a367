package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"dropcast/internal/captions"
	"dropcast/internal/config"
	"dropcast/internal/daemon"
	"dropcast/internal/deps"
	"dropcast/internal/fslock"
	"dropcast/internal/history"
	"dropcast/internal/logging"
	"dropcast/internal/media"
	"dropcast/internal/media/convert"
	"dropcast/internal/media/ffprobe"
	"dropcast/internal/notifications"
	"dropcast/internal/publish"
	"dropcast/internal/publish/mastodon"
	"dropcast/internal/queue"
	"dropcast/internal/relay"
	"dropcast/internal/workflow"
)

const (
	shutdownTimeout = 30 * time.Second
	relayBuffer     = 256
	// keepRuns run logs survive retention regardless of age.
	keepRuns = 5
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
	// DebugLevel overrides logging.debug_level when positive.
	DebugLevel int
	Stdout     io.Writer
	Stderr     io.Writer
	Stdin      io.Reader
	// Started is called once the daemon is running.
	Started func(*daemon.Daemon)
}

// Run starts the dropcast daemon and blocks until the context is cancelled
// or the process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("dropcast-%s.log", runID))
	eventsPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("dropcast-%s.events", runID))

	logHub := logging.NewStreamHub(cfg.Logging.StreamBuffer)
	eventArchive, archiveErr := logging.NewEventArchive(eventsPath)
	if archiveErr != nil {
		fmt.Fprintf(stderrOf(opts), "warn: unable to initialize log archive: %v\n", archiveErr)
	} else if eventArchive != nil {
		logHub.AddSink(eventArchive)
		defer eventArchive.Close()
	}

	destinations := []logging.Destination{
		logging.NewConsoleDestination(opts.Stdout, opts.Stderr),
		logHub,
	}
	if cfg.Logging.WriteFile {
		fileDest, err := logging.OpenFileDestination(logPath, cfg.Logging.Format)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		destinations = append(destinations, fileDest)
	} else {
		logPath = ""
	}

	debugLevel := cfg.Logging.DebugLevel
	if opts.DebugLevel > 0 {
		debugLevel = opts.DebugLevel
	}
	sink := logging.NewSink(logging.SinkOptions{
		DebugLevel:   debugLevel,
		Destinations: destinations,
		Input:        opts.Stdin,
		PromptOutput: opts.Stdout,
	})
	defer func() {
		if err := sink.Close(5 * time.Second); err != nil {
			fmt.Fprintf(stderrOf(opts), "warn: log sink did not drain: %v\n", err)
		}
	}()

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger := logging.NewLogger(sink, logging.LoggerOptions{Level: logging.ParseLevel(level)}).
		With(logging.String("run_id", uuid.NewString()))
	// Websocket clients only see records emitted after they connect.
	logRelay := relay.New(relay.Options{Buffer: relayBuffer, Logger: logger})
	detachRelay := sink.Attach(logRelay)
	defer detachRelay()

	logDependencySnapshot(logger, cfg)
	if logPath != "" {
		if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
			logging.WarnWithContext(logger, "unable to update dropcast.log link", "log_pointer_failed", logging.Error(err))
		}
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "dropcast-*.log", Keep: []string{logPath}, KeepNewest: keepRuns},
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "dropcast-*.events", Keep: []string{eventsPath}, KeepNewest: keepRuns},
	)

	pidPath := filepath.Join(cfg.Paths.LogDir, "dropcast.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	var store *history.Store
	if cfg.History.Enabled {
		opened, err := history.Open(cfg.HistoryPath())
		if err != nil {
			logging.WarnWithContext(logger, "history store unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "post attempts are not recorded"),
				logging.String(logging.FieldErrorHint, "check history.path permissions"),
			)
		} else {
			store = opened
			defer store.Close()
		}
	}

	poster, err := NewPoster(cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "publisher unavailable", "poster_init_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the [mastodon] section of the config"),
		)
		return err
	}
	if cfg.Publish.ConfirmLogin {
		poster = &confirmingPoster{Poster: poster, sink: sink}
	}

	manager, err := workflow.NewManager(cfg, workflow.Dependencies{
		Queue:      queue.New(queue.PolicyFromConfig(cfg.Publish), queue.WithLogger(logger)),
		Classifier: NewClassifier(cfg, logger),
		Options: captions.NewResolver(captions.Config{
			OptionsFile:       cfg.Captions.OptionsFile,
			PermanentHashtags: cfg.Captions.PermanentHashtags,
			MaxLength:         cfg.Captions.MaxLength,
		}, logger),
		History:  store,
		Notifier: notifications.NewService(cfg),
		Lock:     fslock.New(filepath.Join(cfg.Paths.LogDir, "work.lock")),
		Poster:   poster,
	}, logger,
		workflow.WithIntervals(cfg.ScanInterval(), time.Duration(cfg.Publish.LoginRetryWait)*time.Second),
		workflow.WithPostTimeout(cfg.PostTimeout()),
	)
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}

	d, err := daemon.New(cfg, logger, daemon.Options{
		Workflow: manager,
		History:  store,
		Sink:     sink,
		Hub:      logHub,
		Archive:  eventArchive,
		Relay:    logRelay,
		LogPath:  logPath,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration, directory permissions and the instance lock"),
		)
		return err
	}
	if opts.Started != nil {
		opts.Started(d)
	}

	<-signalCtx.Done()
	logger.Info("dropcast daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	_ = logRelay.Close()
	return d.RequestShutdown(shutdownTimeout)
}

// NewPoster selects the publisher named by publish.provider.
func NewPoster(cfg *config.Config, logger *slog.Logger) (publish.Poster, error) {
	switch cfg.Publish.Provider {
	case "mastodon":
		return mastodon.New(mastodon.Config{
			Server:       cfg.Mastodon.Server,
			AccessToken:  cfg.Mastodon.AccessToken,
			ClientID:     cfg.Mastodon.ClientID,
			ClientSecret: cfg.Mastodon.ClientSecret,
			Visibility:   cfg.Mastodon.Visibility,
		}, logger)
	case "", "dryrun":
		return publish.NewDryRun(logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Publish.Provider)
	}
}

// NewClassifier wires the converters and the optional video verifier.
func NewClassifier(cfg *config.Config, logger *slog.Logger) *media.Classifier {
	magick, _ := deps.ResolveMagick(cfg.Convert.MagickBinary)
	conv := &convert.Exec{
		MagickBinary: magick,
		FFmpegBinary: cfg.Convert.FFmpegBinary,
		Timeout:      cfg.ConvertTimeout(),
		Logger:       logger,
	}
	var probe media.Prober
	if cfg.Convert.VerifyVideo {
		probe = ffprobe.Prober{Binary: cfg.Convert.FFprobeBinary}
	}
	return media.NewClassifier(media.ClassifierConfig{
		ImageDir: cfg.Paths.SortedImageDir,
		VideoDir: cfg.Paths.SortedVideoDir,
		ImageExt: cfg.Convert.ImageFormat,
		VideoExt: cfg.Convert.VideoFormat,
	}, conv, probe, logger)
}

// errLoginDeclined is returned when the operator answers no to the login
// prompt.
var errLoginDeclined = errors.New("login declined at the terminal")

// confirmingPoster asks on the terminal before the first login.
type confirmingPoster struct {
	publish.Poster
	sink *logging.Sink
}

func (p *confirmingPoster) Login(ctx context.Context) error {
	def := true
	ok, err := p.sink.Confirm(ctx, fmt.Sprintf("Log in to %s?", p.Poster.Name()), &def)
	if err != nil {
		return err
	}
	if !ok {
		return &publish.AuthError{Provider: p.Poster.Name(), Err: errLoginDeclined}
	}
	if auth, ok := p.Poster.(publish.Authenticator); ok {
		return auth.Login(ctx)
	}
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "dropcast.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	magick, magickOK := deps.ResolveMagick(cfg.Convert.MagickBinary)
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("provider", cfg.Publish.Provider),
		logging.Bool("mastodon_token_present", strings.TrimSpace(cfg.Mastodon.AccessToken) != ""),
		logging.Bool("magick_available", magickOK),
		logging.String("magick_binary", magick),
		logging.Bool("ffmpeg_available", binaryAvailable(cfg.Convert.FFmpegBinary)),
		logging.String("ffmpeg_binary", cfg.Convert.FFmpegBinary),
		logging.Bool("ffprobe_available", binaryAvailable(cfg.Convert.FFprobeBinary)),
		logging.Bool("verify_video", cfg.Convert.VerifyVideo),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}

func stderrOf(opts Options) io.Writer {
	if opts.Stderr != nil {
		return opts.Stderr
	}
	return os.Stderr
}
