package deps

import (
	"os/exec"
	"strings"
)

// ResolveMagick picks the ImageMagick entry point. A configured binary is
// used as-is. Otherwise "magick" (ImageMagick 7) is preferred and "convert"
// (ImageMagick 6, same argument order) is the fallback. The returned name is
// what the converter should execute; ok is false when neither resolves.
func ResolveMagick(configured string) (string, bool) {
	configured = strings.TrimSpace(configured)
	if configured != "" && configured != "magick" {
		_, err := exec.LookPath(configured)
		return configured, err == nil
	}
	for _, candidate := range []string{"magick", "convert"} {
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate, true
		}
	}
	return "magick", false
}
