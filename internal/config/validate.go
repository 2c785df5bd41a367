package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	supportedProviders  = map[string]struct{}{"dryrun": {}, "mastodon": {}}
	supportedLogFormats = map[string]struct{}{"console": {}, "json": {}}
	supportedLogLevels  = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}
	supportedVisibility = map[string]struct{}{"public": {}, "unlisted": {}, "private": {}, "direct": {}}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateMastodon(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	seen := make(map[string]string)
	for name, dir := range map[string]string{
		"paths.drop_dir":         c.Paths.DropDir,
		"paths.sorted_image_dir": c.Paths.SortedImageDir,
		"paths.sorted_video_dir": c.Paths.SortedVideoDir,
		"paths.discard_dir":      c.Paths.DiscardDir,
	} {
		if dir == "" {
			return fmt.Errorf("%s must be set", name)
		}
		clean := filepath.Clean(dir)
		if other, ok := seen[clean]; ok {
			return fmt.Errorf("%s and %s must point to different directories", other, name)
		}
		seen[clean] = name
	}
	if c.Paths.PostedDir != "" {
		if other, ok := seen[filepath.Clean(c.Paths.PostedDir)]; ok {
			return fmt.Errorf("paths.posted_dir and %s must point to different directories", other)
		}
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.ScanInterval <= 0 {
		return errors.New("ingest.scan_interval must be positive")
	}
	return nil
}

func (c *Config) validatePublish() error {
	if _, ok := supportedProviders[c.Publish.Provider]; !ok {
		return fmt.Errorf("publish.provider: unsupported value %q", c.Publish.Provider)
	}
	if c.Publish.BaseInterval < 0 {
		return errors.New("publish.base_interval must not be negative")
	}
	if c.Publish.JitterMin < 0 || c.Publish.JitterMax < c.Publish.JitterMin {
		return errors.New("publish.jitter_min must be >= 0 and <= publish.jitter_max")
	}
	if c.Publish.EmptyInterval <= 0 {
		return errors.New("publish.empty_interval must be positive")
	}
	if c.Publish.EmptyInterval >= c.Publish.BaseInterval+c.Publish.JitterMin && c.Publish.BaseInterval > 0 {
		return errors.New("publish.empty_interval must be shorter than the posting interval")
	}
	if c.Publish.BackoffFactor < 1 {
		return errors.New("publish.backoff_factor must be >= 1")
	}
	if c.Publish.MaxBackoff < c.Publish.BaseInterval {
		return errors.New("publish.max_backoff must be >= publish.base_interval")
	}
	return nil
}

func (c *Config) validateMastodon() error {
	if c.Publish.Provider != "mastodon" {
		return nil
	}
	if c.Mastodon.Server == "" {
		return fmt.Errorf("mastodon.server must be set when publish.provider is mastodon (or export %s)", defaultProviderEnvServer)
	}
	if c.Mastodon.AccessToken == "" {
		return fmt.Errorf("mastodon.access_token must be set when publish.provider is mastodon (or export %s)", defaultProviderEnvToken)
	}
	if _, ok := supportedVisibility[c.Mastodon.Visibility]; !ok {
		return fmt.Errorf("mastodon.visibility: unsupported value %q", c.Mastodon.Visibility)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, ok := supportedLogFormats[c.Logging.Format]; !ok {
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if _, ok := supportedLogLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}
