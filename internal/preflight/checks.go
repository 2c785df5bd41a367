package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"dropcast/internal/config"
	"dropcast/internal/deps"
)

// CheckMastodon verifies that the Mastodon server answers its public
// instance endpoint. Credentials are verified later by the publish lane.
func CheckMastodon(ctx context.Context, server string) Result {
	const name = "Mastodon"

	base := strings.TrimRight(strings.TrimSpace(server), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing server"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/api/v1/instance", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	}
	return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%d)", resp.StatusCode)}
}

// CheckProviderFromConfig describes the configured provider for status UIs.
func CheckProviderFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Provider"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	switch cfg.Publish.Provider {
	case "dryrun":
		return Result{Name: name, Passed: true, Detail: "dryrun (nothing is published)"}
	case "mastodon":
		check := CheckMastodon(ctx, cfg.Mastodon.Server)
		check.Name = name
		if check.Passed {
			check.Detail = "mastodon " + cfg.Mastodon.Server + " reachable"
		}
		return check
	default:
		return Result{Name: name, Detail: fmt.Sprintf("unsupported provider %q", cfg.Publish.Provider)}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the converter binaries for cfg. Both the daemon
// and the CLI status command use this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	magick, _ := deps.ResolveMagick(cfg.Convert.MagickBinary)
	requirements := []deps.Requirement{
		{
			Name:        "ImageMagick",
			Command:     magick,
			Description: "Required for image conversion",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Convert.FFmpegBinary,
			Description: "Required for video conversion",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Convert.FFprobeBinary,
			Description: "Verifies converted videos",
			Optional:    !cfg.Convert.VerifyVideo,
		},
	}
	return deps.CheckBinaries(requirements)
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "reachability check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "reachability check timed out"
	}
	return fmt.Sprintf("unreachable (%v)", err)
}
