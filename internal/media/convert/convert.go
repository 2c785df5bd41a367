// Package convert turns dropped media into the formats the publisher posts,
// using ImageMagick for stills and FFmpeg for video.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"dropcast/internal/logging"
	"dropcast/internal/media"
)

// Exec converts by running the external binaries.
type Exec struct {
	MagickBinary string
	FFmpegBinary string
	// Timeout bounds a single conversion. Zero means no limit beyond ctx.
	Timeout time.Duration
	Logger  *slog.Logger
}

var _ media.Converter = (*Exec)(nil)

// Convert writes dst from src. Images keep only their first frame.
func (e *Exec) Convert(ctx context.Context, src, dst string, kind media.Kind) error {
	var (
		binary string
		args   []string
	)
	switch kind {
	case media.KindImage:
		binary = firstNonEmpty(e.MagickBinary, "magick")
		args = []string{src + "[0]", dst}
	case media.KindVideo:
		binary = firstNonEmpty(e.FFmpegBinary, "ffmpeg")
		args = []string{"-hide_banner", "-loglevel", "error", "-y", "-i", src, dst}
	default:
		return fmt.Errorf("convert: unsupported kind %q", kind)
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	logger := logging.NewComponentLogger(e.Logger, "convert")
	logging.DebugAt(logger, 4, "running converter",
		logging.String("binary", binary),
		logging.String("args", strings.Join(args, " ")),
	)

	start := time.Now()
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s timed out after %s", binary, e.Timeout)
		}
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", binary, err, detail)
		}
		return fmt.Errorf("%s: %w", binary, err)
	}
	logging.DebugAt(logger, 3, "conversion finished",
		logging.String("kind", string(kind)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
