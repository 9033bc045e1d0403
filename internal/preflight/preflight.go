package preflight

import (
	"context"
	"strings"

	"mpdgrab/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional results never fail the overall run.
	Optional bool
}

// Failed reports whether any required check did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckBinary("yt-dlp", cfg.Tools.YTDLP),
		CheckBinary("mp4decrypt", cfg.Tools.Mp4Decrypt),
		CheckBinary("ffmpeg", cfg.Tools.FFmpeg),
		CheckBinary("ffprobe", cfg.Tools.FFprobe),
		CheckBinary("aria2c", cfg.Tools.Aria2c),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	}

	if strings.TrimSpace(cfg.Keys.APIURL) != "" {
		check := CheckEndpoint(ctx, "Key API", cfg.Keys.APIURL)
		check.Optional = true
		results = append(results, check)
	}

	telegram := Result{Name: "Telegram", Optional: true}
	if cfg.Telegram.BotToken == "" {
		telegram.Detail = "bot token missing (delivery disabled)"
	} else {
		telegram.Passed = true
		telegram.Detail = "bot token configured"
	}
	results = append(results, telegram)

	return results
}
