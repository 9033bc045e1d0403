package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mpdgrab/internal/logging"
)

// Workspace describes one per-job directory under the work root.
type Workspace struct {
	JobID    string
	Path     string
	Size     int64
	Modified time.Time
}

// Age reports how long ago the workspace was last modified.
func (w Workspace) Age(now time.Time) time.Duration {
	return now.Sub(w.Modified)
}

// SweepResult contains the outcome of a stale workspace sweep.
type SweepResult struct {
	Removed []Workspace
	Kept    []Workspace
	Errors  []SweepError
}

// Reclaimed sums the size of removed workspaces.
func (r SweepResult) Reclaimed() int64 {
	var total int64
	for _, ws := range r.Removed {
		total += ws.Size
	}
	return total
}

// SweepError pairs a workspace path with its removal error.
type SweepError struct {
	Path string
	Err  error
}

// List returns the job workspaces under workDir, oldest first. A missing
// work root yields no workspaces.
func List(workDir string) ([]Workspace, error) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(workDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []Workspace
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(workDir, entry.Name())
		size, _ := dirSize(path)
		out = append(out, Workspace{
			JobID:    entry.Name(),
			Path:     path,
			Size:     size,
			Modified: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified.Before(out[j].Modified) })
	return out, nil
}

// Sweep removes workspaces untouched for longer than maxAge. Workspaces of
// running jobs are refreshed as tools write into them, so they stay younger
// than any sensible maxAge. With dryRun set nothing is removed and every
// candidate is reported in Removed.
func Sweep(ctx context.Context, workDir string, maxAge time.Duration, dryRun bool, logger *slog.Logger) (SweepResult, error) {
	logger = logging.NewComponentLogger(logger, "staging")
	var result SweepResult

	workspaces, err := List(workDir)
	if err != nil {
		return result, err
	}
	now := time.Now()
	for _, ws := range workspaces {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if ws.Age(now) < maxAge {
			result.Kept = append(result.Kept, ws)
			continue
		}
		if dryRun {
			result.Removed = append(result.Removed, ws)
			continue
		}
		if err := os.RemoveAll(ws.Path); err != nil {
			logging.WarnWithContext(logger, "stale workspace removal failed", "workspace_sweep_failed",
				logging.String("workspace", ws.Path),
				logging.String(logging.FieldErrorHint, "check directory permissions"),
				logging.String(logging.FieldImpact, "workspace remains on disk"),
				logging.Error(err),
			)
			result.Errors = append(result.Errors, SweepError{Path: ws.Path, Err: err})
			continue
		}
		logger.Info("removed stale workspace",
			logging.String(logging.FieldEventType, "workspace_removed"),
			logging.String("job_id", ws.JobID),
			logging.Duration("age", ws.Age(now).Round(time.Second)),
			logging.Int64("size_bytes", ws.Size),
		)
		result.Removed = append(result.Removed, ws)
	}
	return result, nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
