package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePublish()
	c.normalizeConvert()
	c.normalizeMastodon()
	if err := c.normalizeCaptions(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeNotifications()
	return c.normalizeHistory()
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
		def   string
	}{
		{"paths.drop_dir", &c.Paths.DropDir, defaultDropDir},
		{"paths.sorted_image_dir", &c.Paths.SortedImageDir, defaultSortedImageDir},
		{"paths.sorted_video_dir", &c.Paths.SortedVideoDir, defaultSortedVideoDir},
		{"paths.discard_dir", &c.Paths.DiscardDir, defaultDiscardDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.def
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	if posted := strings.TrimSpace(c.Paths.PostedDir); posted != "" {
		expanded, err := expandPath(posted)
		if err != nil {
			return fmt.Errorf("paths.posted_dir: %w", err)
		}
		c.Paths.PostedDir = expanded
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv(defaultAPITokenEnvName); ok {
			c.Paths.APIToken = value
		}
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizePublish() {
	c.Publish.Provider = strings.ToLower(strings.TrimSpace(c.Publish.Provider))
	if c.Publish.Provider == "" {
		c.Publish.Provider = defaultProvider
	}
	if c.Publish.PostTimeout <= 0 {
		c.Publish.PostTimeout = defaultPostTimeout
	}
	if c.Publish.FreezeDefault <= 0 {
		c.Publish.FreezeDefault = defaultFreezeSeconds
	}
	if c.Publish.LoginRetryWait <= 0 {
		c.Publish.LoginRetryWait = defaultLoginRetryWait
	}
	if c.Publish.BackoffFactor == 0 {
		c.Publish.BackoffFactor = defaultBackoffFactor
	}
}

func (c *Config) normalizeConvert() {
	trimOr := func(value, fallback string) string {
		value = strings.TrimSpace(value)
		if value == "" {
			return fallback
		}
		return value
	}
	c.Convert.MagickBinary = trimOr(c.Convert.MagickBinary, defaultMagickBinary)
	c.Convert.FFmpegBinary = trimOr(c.Convert.FFmpegBinary, defaultFFmpegBinary)
	c.Convert.FFprobeBinary = trimOr(c.Convert.FFprobeBinary, defaultFFprobeBinary)
	c.Convert.ImageFormat = strings.TrimPrefix(strings.ToLower(trimOr(c.Convert.ImageFormat, defaultImageFormat)), ".")
	c.Convert.VideoFormat = strings.TrimPrefix(strings.ToLower(trimOr(c.Convert.VideoFormat, defaultVideoFormat)), ".")
	if c.Convert.Timeout <= 0 {
		c.Convert.Timeout = defaultConvertTimeout
	}
}

func (c *Config) normalizeMastodon() {
	if c.Mastodon.AccessToken == "" {
		if value, ok := os.LookupEnv(defaultProviderEnvToken); ok {
			c.Mastodon.AccessToken = value
		}
	}
	if c.Mastodon.Server == "" {
		if value, ok := os.LookupEnv(defaultProviderEnvServer); ok {
			c.Mastodon.Server = value
		}
	}
	c.Mastodon.Server = strings.TrimRight(strings.TrimSpace(c.Mastodon.Server), "/")
	c.Mastodon.AccessToken = strings.TrimSpace(c.Mastodon.AccessToken)
	c.Mastodon.ClientID = strings.TrimSpace(c.Mastodon.ClientID)
	c.Mastodon.ClientSecret = strings.TrimSpace(c.Mastodon.ClientSecret)
	c.Mastodon.Visibility = strings.ToLower(strings.TrimSpace(c.Mastodon.Visibility))
	if c.Mastodon.Visibility == "" {
		c.Mastodon.Visibility = defaultMastodonVisibility
	}
}

func (c *Config) normalizeCaptions() error {
	c.Captions.PermanentHashtags = strings.TrimSpace(c.Captions.PermanentHashtags)
	if c.Captions.MaxLength <= 0 {
		c.Captions.MaxLength = defaultCaptionMaxLength
	}
	if strings.TrimSpace(c.Captions.OptionsFile) == "" {
		return nil
	}
	expanded, err := expandPath(strings.TrimSpace(c.Captions.OptionsFile))
	if err != nil {
		return fmt.Errorf("captions.options_file: %w", err)
	}
	c.Captions.OptionsFile = expanded
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.StreamBuffer <= 0 {
		c.Logging.StreamBuffer = defaultStreamBuffer
	}
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(defaultNotificationEnvName); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = ""
		return nil
	}
	expanded, err := expandPath(strings.TrimSpace(c.History.Path))
	if err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	c.History.Path = expanded
	return nil
}
