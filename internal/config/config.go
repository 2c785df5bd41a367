package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DropDir        string `toml:"drop_dir"`
	SortedImageDir string `toml:"sorted_image_dir"`
	SortedVideoDir string `toml:"sorted_video_dir"`
	DiscardDir     string `toml:"discard_dir"`
	PostedDir      string `toml:"posted_dir"`
	LogDir         string `toml:"log_dir"`
	APIBind        string `toml:"api_bind"`
	APIToken       string `toml:"api_token"`
}

// Ingest contains configuration for the drop folder scanner.
type Ingest struct {
	ScanInterval int `toml:"scan_interval"`
}

// Publish contains configuration for the posting scheduler.
//
// The cooldown after a post is base_interval plus a uniform jitter in
// [jitter_min, jitter_max], multiplied by backoff_factor for every
// consecutive failure and capped at max_backoff. When the queue is empty the
// worker re-polls after empty_interval instead. All values are seconds.
type Publish struct {
	Provider       string  `toml:"provider"`
	ConfirmLogin   bool    `toml:"confirm_login"`
	BaseInterval   int     `toml:"base_interval"`
	JitterMin      int     `toml:"jitter_min"`
	JitterMax      int     `toml:"jitter_max"`
	EmptyInterval  int     `toml:"empty_interval"`
	BackoffFactor  float64 `toml:"backoff_factor"`
	MaxBackoff     int     `toml:"max_backoff"`
	FreezeDefault  int     `toml:"freeze_default"`
	PostTimeout    int     `toml:"post_timeout"`
	LoginRetryWait int     `toml:"login_retry_wait"`
}

// Convert contains configuration for the external conversion tools.
type Convert struct {
	MagickBinary  string `toml:"magick_binary"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	ImageFormat   string `toml:"image_format"`
	VideoFormat   string `toml:"video_format"`
	Timeout       int    `toml:"timeout"`
	VerifyVideo   bool   `toml:"verify_video"`
}

// Mastodon contains credentials for the Mastodon poster.
type Mastodon struct {
	Server       string `toml:"server"`
	AccessToken  string `toml:"access_token"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	Visibility   string `toml:"visibility"`
}

// Captions contains configuration for per-file post options.
type Captions struct {
	OptionsFile       string `toml:"options_file"`
	PermanentHashtags string `toml:"permanent_hashtags"`
	MaxLength         int    `toml:"max_length"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	DebugLevel    int    `toml:"debug_level"`
	WriteFile     bool   `toml:"write_file"`
	RetentionDays int    `toml:"retention_days"`
	StreamBuffer  int    `toml:"stream_buffer"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Posted         bool   `toml:"posted"`
	Freeze         bool   `toml:"freeze"`
	Ingest         bool   `toml:"ingest"`
	Errors         bool   `toml:"errors"`
}

// History contains configuration for the publish attempt audit log.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all configuration values for dropcast.
//
// Configuration sections by subsystem:
//   - Paths: drop folder, sorted storage, discard and log directories
//   - Ingest: drop folder scan cadence
//   - Publish: provider selection and cooldown policy
//   - Convert: ImageMagick/FFmpeg binaries and target formats
//   - Mastodon: remote platform credentials
//   - Captions: per-file options file and permanent hashtags
//   - Logging: log format, level, debug verbosity and retention
//   - Notifications: ntfy push notification settings
//   - History: SQLite audit log of publish attempts
type Config struct {
	Paths         Paths         `toml:"paths"`
	Ingest        Ingest        `toml:"ingest"`
	Publish       Publish       `toml:"publish"`
	Convert       Convert       `toml:"convert"`
	Mastodon      Mastodon      `toml:"mastodon"`
	Captions      Captions      `toml:"captions"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	History       History       `toml:"history"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dropcast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/dropcast/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dropcast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Paths.DropDir,
		c.Paths.SortedImageDir,
		c.Paths.SortedVideoDir,
		c.Paths.DiscardDir,
		c.Paths.LogDir,
		c.Paths.PostedDir,
	} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the location of the publish history database.
func (c *Config) HistoryPath() string {
	if strings.TrimSpace(c.History.Path) != "" {
		return c.History.Path
	}
	return filepath.Join(c.Paths.LogDir, "history.db")
}

// ScanInterval returns the drop folder scan cadence.
func (c *Config) ScanInterval() time.Duration {
	return seconds(c.Ingest.ScanInterval)
}

// PostTimeout returns the upper bound for a single remote post attempt.
func (c *Config) PostTimeout() time.Duration {
	return seconds(c.Publish.PostTimeout)
}

// ConvertTimeout returns the upper bound for a single conversion.
func (c *Config) ConvertTimeout() time.Duration {
	return seconds(c.Convert.Timeout)
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
