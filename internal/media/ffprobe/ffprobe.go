package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Verification failures. Both mean the converter produced something the
// platform would reject, so the classifier discards the file.
var (
	ErrNoVideoStream = errors.New("no video stream")
	ErrEmptyVideo    = errors.New("video has no frames or duration")
)

// Result is the subset of ffprobe output the verifier reads.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

// Stream describes one stream in the container.
type Stream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Inspect runs ffprobe on path and decodes its JSON report.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-show_entries", "stream=codec_name,codec_type,width,height:format=duration,format_name",
		"-of", "json",
		"--", path,
	)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// Video returns the first video stream.
func (r Result) Video() (Stream, bool) {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "video") {
			return s, true
		}
	}
	return Stream{}, false
}

// DurationSeconds returns the container duration, or 0 when ffprobe did not
// report a usable one.
func (r Result) DurationSeconds() float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(r.Format.Duration), 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Prober verifies converted videos before they are queued.
type Prober struct {
	Binary string
}

// Verify fails unless path holds a video stream with a frame size and a
// positive duration.
func (p Prober) Verify(ctx context.Context, path string) error {
	result, err := Inspect(ctx, p.Binary, path)
	if err != nil {
		return err
	}
	video, ok := result.Video()
	if !ok {
		return fmt.Errorf("%s: %w", path, ErrNoVideoStream)
	}
	if video.Width <= 0 || video.Height <= 0 || result.DurationSeconds() <= 0 {
		return fmt.Errorf("%s: %w", path, ErrEmptyVideo)
	}
	return nil
}
