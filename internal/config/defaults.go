package config

const (
	defaultMediaRoot           = "~/.local/share/dropcast/media"
	defaultDropDir             = defaultMediaRoot + "/outbound"
	defaultSortedImageDir      = defaultMediaRoot + "/sorted/jpg"
	defaultSortedVideoDir      = defaultMediaRoot + "/sorted/mp4"
	defaultDiscardDir          = defaultMediaRoot + "/discard"
	defaultLogDir              = "~/.local/share/dropcast/logs"
	defaultAPIBind             = "127.0.0.1:7488"
	defaultScanInterval        = 30
	defaultProvider            = "dryrun"
	defaultBaseInterval        = 3600
	defaultJitterMin           = 0
	defaultJitterMax           = 1800
	defaultEmptyInterval       = 60
	defaultBackoffFactor       = 2.0
	defaultMaxBackoff          = 6 * 3600
	defaultFreezeSeconds       = 12 * 3600
	defaultPostTimeout         = 300
	defaultLoginRetryWait      = 300
	defaultMagickBinary        = "magick"
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultImageFormat         = "jpg"
	defaultVideoFormat         = "mp4"
	defaultConvertTimeout      = 600
	defaultMastodonVisibility  = "public"
	defaultOptionsFile         = "~/.local/share/dropcast/post_options.txt"
	defaultCaptionMaxLength    = 2200
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultDebugLevel          = 3
	defaultLogRetentionDays    = 30
	defaultStreamBuffer        = 4096
	defaultNtfyRequestTimeout  = 10
	defaultProviderEnvToken    = "DROPCAST_MASTODON_ACCESS_TOKEN"
	defaultProviderEnvServer   = "DROPCAST_MASTODON_SERVER"
	defaultNotificationEnvName = "DROPCAST_NTFY_TOPIC"
	defaultAPITokenEnvName     = "DROPCAST_API_TOKEN"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DropDir:        defaultDropDir,
			SortedImageDir: defaultSortedImageDir,
			SortedVideoDir: defaultSortedVideoDir,
			DiscardDir:     defaultDiscardDir,
			LogDir:         defaultLogDir,
			APIBind:        defaultAPIBind,
		},
		Ingest: Ingest{
			ScanInterval: defaultScanInterval,
		},
		Publish: Publish{
			Provider:       defaultProvider,
			BaseInterval:   defaultBaseInterval,
			JitterMin:      defaultJitterMin,
			JitterMax:      defaultJitterMax,
			EmptyInterval:  defaultEmptyInterval,
			BackoffFactor:  defaultBackoffFactor,
			MaxBackoff:     defaultMaxBackoff,
			FreezeDefault:  defaultFreezeSeconds,
			PostTimeout:    defaultPostTimeout,
			LoginRetryWait: defaultLoginRetryWait,
		},
		Convert: Convert{
			MagickBinary:  defaultMagickBinary,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			ImageFormat:   defaultImageFormat,
			VideoFormat:   defaultVideoFormat,
			Timeout:       defaultConvertTimeout,
			VerifyVideo:   true,
		},
		Mastodon: Mastodon{
			Visibility: defaultMastodonVisibility,
		},
		Captions: Captions{
			OptionsFile: defaultOptionsFile,
			MaxLength:   defaultCaptionMaxLength,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			DebugLevel:    defaultDebugLevel,
			WriteFile:     true,
			RetentionDays: defaultLogRetentionDays,
			StreamBuffer:  defaultStreamBuffer,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			Posted:         true,
			Freeze:         true,
			Ingest:         false,
			Errors:         true,
		},
		History: History{
			Enabled: true,
		},
	}
}
