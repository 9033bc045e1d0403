package pipeline

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"mpdgrab/internal/keys"
	"mpdgrab/internal/textutil"
)

// Job is one acquisition request. It lives for the duration of the request and
// is never persisted.
type Job struct {
	ID string
	// Source is the manifest URL for the DRM path or the page/media URL for the
	// obfuscated path. KeyAPI may replace it with a resolved manifest.
	Source   string
	KeyAPI   string
	KeyShape keys.Shape
	Keys     keys.Material
	// XORKey decodes the obfuscated path's header bytes.
	XORKey    string
	Quality   string
	OutputDir string
	Name      string
	Caption   string
	ChatID    string
	Thumbnail string
	Watermark string
}

// MergedArtifact is the final container placed in the output directory.
type MergedArtifact struct {
	Path string
	Size int64
}

func (p *Pipeline) prepare(job Job) Job {
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	job.Source = strings.TrimSpace(job.Source)
	job.KeyAPI = strings.TrimSpace(job.KeyAPI)
	if job.Quality == "" {
		job.Quality = p.cfg.Download.Quality
	}
	if job.OutputDir == "" {
		job.OutputDir = p.cfg.Paths.OutputDir
	}
	if job.ChatID == "" {
		job.ChatID = p.cfg.Telegram.ChatID
	}
	job.Name = outputName(job.Name, p.now())
	return job
}

// outputName sanitizes a caller-supplied name and guarantees a container
// extension. An empty name becomes a timestamp.
func outputName(name string, now time.Time) string {
	name = textutil.SanitizeFileName(name)
	if name == "" {
		return textutil.TimeName(now)
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".mkv", ".webm":
		return name
	default:
		return name + ".mp4"
	}
}

func (p *Pipeline) workspace(job Job) string {
	return filepath.Join(p.cfg.Paths.WorkDir, job.ID)
}
