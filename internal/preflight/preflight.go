package preflight

import (
	"context"
	"path/filepath"

	"dropcast/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every applicable check for cfg. The remote provider check
// only runs for providers other than dryrun.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Drop directory", cfg.Paths.DropDir),
		CheckDirectoryAccess("Sorted image directory", cfg.Paths.SortedImageDir),
		CheckDirectoryAccess("Sorted video directory", cfg.Paths.SortedVideoDir),
		CheckDirectoryAccess("Discard directory", cfg.Paths.DiscardDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Paths.PostedDir != "" {
		results = append(results, CheckDirectoryAccess("Posted directory", cfg.Paths.PostedDir))
	}
	if cfg.Captions.OptionsFile != "" {
		results = append(results, CheckDirectoryAccess("Post options directory", filepath.Dir(cfg.Captions.OptionsFile)))
	}
	if cfg.Publish.Provider == "mastodon" {
		results = append(results, CheckMastodon(ctx, cfg.Mastodon.Server))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
