package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"dropcast/internal/fileutil"
	"dropcast/internal/logging"
	"dropcast/internal/services"
)

// Rejection reasons reported in Result.Reason.
const (
	ReasonAnimated        = "animated image"
	ReasonConvertFailed   = "conversion failed"
	ReasonVerifyFailed    = "converted video failed verification"
	reasonUnsupportedMIME = "unsupported mime type"
)

// Converter turns src into a file of the given kind at dst.
type Converter interface {
	Convert(ctx context.Context, src, dst string, kind Kind) error
}

// Prober verifies a converted video before it is queued.
type Prober interface {
	Verify(ctx context.Context, path string) error
}

// ClassifierConfig locates the sorted directories and target formats.
type ClassifierConfig struct {
	ImageDir string
	VideoDir string
	ImageExt string
	VideoExt string
}

// Result is the outcome of classifying one dropped file.
type Result struct {
	Accepted bool
	NewPath  string
	Kind     Kind
	MIME     string
	Reason   string
}

// Classifier sniffs dropped files and converts accepted ones into the sorted
// directories. It keeps no state between calls; callers serialize access to
// the directories with the shared filesystem lock.
type Classifier struct {
	cfg    ClassifierConfig
	conv   Converter
	probe  Prober
	logger *slog.Logger
}

// NewClassifier builds a classifier. probe may be nil to skip verification.
func NewClassifier(cfg ClassifierConfig, conv Converter, probe Prober, logger *slog.Logger) *Classifier {
	if cfg.ImageExt == "" {
		cfg.ImageExt = "jpg"
	}
	if cfg.VideoExt == "" {
		cfg.VideoExt = "mp4"
	}
	return &Classifier{
		cfg:    cfg,
		conv:   conv,
		probe:  probe,
		logger: logging.NewComponentLogger(logger, "classifier"),
	}
}

// Classify inspects path and either converts it into the sorted directory for
// its kind or rejects it. Rejections return a nil error and leave the file
// where it is. Conversion failures return an error wrapping
// services.ErrExternalTool and remove any partial output.
func (c *Classifier) Classify(ctx context.Context, path string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	logger := c.logger.With(logging.String(logging.FieldItemPath, path))

	det, err := Sniff(path)
	if err != nil {
		marker := services.ErrValidation
		if errors.Is(err, os.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return Result{Reason: "unreadable"}, services.Wrap(marker, "classifier", "sniff", path, err)
	}

	if reason := rejectReason(det); reason != "" {
		logging.WarnWithContext(logger, "media rejected", "media_rejected",
			logging.String("mime", det.MIME),
			logging.String("reason", reason),
			logging.String(logging.FieldErrorHint, "only still images and videos are posted"),
			logging.String(logging.FieldImpact, "file moved aside for manual review"),
		)
		return Result{MIME: det.MIME, Reason: reason}, nil
	}

	dir, ext := c.cfg.ImageDir, c.cfg.ImageExt
	if det.Kind == KindVideo {
		dir, ext = c.cfg.VideoDir, c.cfg.VideoExt
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Kind: det.Kind, MIME: det.MIME, Reason: ReasonConvertFailed},
			services.Wrap(services.ErrConfiguration, "classifier", "prepare sorted dir", dir, err)
	}
	target, err := fileutil.UniquePath(dir, fileutil.Stem(path), ext)
	if err != nil {
		return Result{Kind: det.Kind, MIME: det.MIME, Reason: ReasonConvertFailed},
			services.Wrap(services.ErrTransient, "classifier", "name target", path, err)
	}

	logging.DebugAt(logger, 3, "converting media",
		logging.String("kind", string(det.Kind)),
		logging.String("mime", det.MIME),
		logging.String("target", target),
	)
	if err := c.conv.Convert(ctx, path, target, det.Kind); err != nil {
		_ = os.Remove(target)
		logging.ErrorWithContext(logger, "media conversion failed", "convert_failed",
			logging.String("kind", string(det.Kind)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the converter binaries are installed and the file is not corrupt"),
		)
		return Result{Kind: det.Kind, MIME: det.MIME, Reason: ReasonConvertFailed},
			services.Wrap(services.ErrExternalTool, "classifier", "convert", fmt.Sprintf("%s -> %s", path, target), err)
	}

	if det.Kind == KindVideo && c.probe != nil {
		if err := c.probe.Verify(ctx, target); err != nil {
			_ = os.Remove(target)
			logging.ErrorWithContext(logger, "converted video failed verification", "verify_failed",
				logging.String("target", target),
				logging.Error(err),
			)
			return Result{Kind: det.Kind, MIME: det.MIME, Reason: ReasonVerifyFailed},
				services.Wrap(services.ErrExternalTool, "classifier", "verify", target, err)
		}
	}

	if target != path {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logger, "could not remove dropped original", "drop_cleanup_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check drop folder permissions"),
				logging.String(logging.FieldImpact, "original will be moved aside by the ingestion worker"),
			)
		}
	}

	logging.Success(logger, "media classified",
		logging.String("kind", string(det.Kind)),
		logging.String("path", target),
	)
	return Result{Accepted: true, NewPath: target, Kind: det.Kind, MIME: det.MIME}, nil
}

func rejectReason(det Detection) string {
	if strings.EqualFold(det.MIME, "image/gif") {
		return ReasonAnimated
	}
	if !det.Kind.Valid() {
		return reasonUnsupportedMIME + " " + det.MIME
	}
	return ""
}
