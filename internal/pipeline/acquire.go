package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"mpdgrab/internal/downloader"
	"mpdgrab/internal/fileutil"
	"mpdgrab/internal/keys"
	"mpdgrab/internal/logging"
	"mpdgrab/internal/media/ffmpeg"
	"mpdgrab/internal/services"
)

const (
	lockFileName   = ".mpdgrab.lock"
	lockRetryDelay = 100 * time.Millisecond
)

// Acquire runs the DRM path: resolve keys, download the manifest's streams,
// decrypt them, merge, and place the result in the output directory.
func (p *Pipeline) Acquire(ctx context.Context, job Job) (MergedArtifact, error) {
	job = p.prepare(job)
	ctx = services.WithJobID(ctx, job.ID)
	return p.acquire(ctx, job)
}

func (p *Pipeline) acquire(ctx context.Context, job Job) (MergedArtifact, error) {
	logger := logging.WithContext(ctx, p.logger)
	ws, cleanup, err := p.openWorkspace(ctx, job)
	if err != nil {
		return MergedArtifact{}, err
	}
	defer cleanup()

	manifest, material, err := p.resolve(services.WithStage(ctx, "resolve"), job)
	if err != nil {
		return MergedArtifact{}, err
	}

	dctx := services.WithStage(ctx, "download")
	if _, err := p.deps.Downloader.FetchManifest(dctx, downloader.ManifestRequest{
		URL:     manifest,
		Quality: job.Quality,
		Dir:     ws,
	}); err != nil {
		return MergedArtifact{}, err
	}

	streams, err := p.deps.Decryptor.DecryptDir(services.WithStage(ctx, "decrypt"), material, ws)
	if err != nil {
		return MergedArtifact{}, err
	}

	merged := filepath.Join(ws, job.Name)
	if _, err := p.deps.Merger.Merge(services.WithStage(ctx, "merge"), ffmpeg.MergeRequest{
		Video:  streams.Video.Path,
		Audio:  streams.Audio.Path,
		Output: merged,
	}); err != nil {
		return MergedArtifact{}, err
	}

	artifact, err := p.place(services.WithStage(ctx, "place"), merged, job)
	if err != nil {
		return MergedArtifact{}, err
	}
	logger.Info("job acquired",
		logging.String(logging.FieldEventType, "acquire_complete"),
		logging.String("path", artifact.Path),
		logging.Int64("size_bytes", artifact.Size),
	)
	return artifact, nil
}

// resolve picks the manifest and key material for a job. A key API answer
// wins over the job's own fields; the {url} shape only supplies the manifest.
func (p *Pipeline) resolve(ctx context.Context, job Job) (string, keys.Material, error) {
	manifest, material := job.Source, job.Keys
	if job.KeyAPI != "" {
		if p.deps.Resolver == nil {
			return "", nil, services.Wrap(services.ErrConfiguration, "resolve", "keys", "no key resolver configured", nil)
		}
		res, err := p.deps.Resolver.Resolve(ctx, job.KeyShape, job.KeyAPI)
		if err != nil {
			return "", nil, err
		}
		manifest = res.Manifest
		if len(res.Keys) > 0 {
			material = res.Keys
		}
	}
	if manifest == "" {
		return "", nil, services.Wrap(services.ErrValidation, "resolve", "job", "manifest URL required", nil)
	}
	if len(material) == 0 {
		return "", nil, services.Wrap(services.ErrValidation, "resolve", "job", "key material required", nil)
	}
	return manifest, material, nil
}

// AcquireObfuscated runs the generic download path followed by the XOR
// header transform and places the result in the output directory.
func (p *Pipeline) AcquireObfuscated(ctx context.Context, job Job) (MergedArtifact, error) {
	job = p.prepare(job)
	ctx = services.WithJobID(ctx, job.ID)
	return p.acquireObfuscated(ctx, job)
}

func (p *Pipeline) acquireObfuscated(ctx context.Context, job Job) (MergedArtifact, error) {
	if job.Source == "" {
		return MergedArtifact{}, services.Wrap(services.ErrValidation, "download", "job", "source URL required", nil)
	}
	ws, cleanup, err := p.openWorkspace(ctx, job)
	if err != nil {
		return MergedArtifact{}, err
	}
	defer cleanup()

	dctx := services.WithStage(ctx, "download")
	result, err := p.deps.Downloader.Download(dctx, downloader.Request{
		URL:     job.Source,
		Name:    filepath.Join(ws, job.Name),
		Quality: job.Quality,
	})
	if err != nil {
		return MergedArtifact{}, err
	}
	if !result.Produced {
		return MergedArtifact{}, services.Wrap(services.ErrDownload, "download", "yt-dlp",
			fmt.Sprintf("no output after %d attempt(s) (exit %d)", result.Attempts, result.ExitCode), nil)
	}

	if !p.deps.XOR(result.Path, job.XORKey) {
		return MergedArtifact{}, services.Wrap(services.ErrDownload, "decrypt", "xor", "header transform failed", nil)
	}

	placed := job
	placed.Name = filepath.Base(result.Path)
	return p.place(services.WithStage(ctx, "place"), result.Path, placed)
}

func (p *Pipeline) openWorkspace(ctx context.Context, job Job) (string, func(), error) {
	ws := p.workspace(job)
	if err := os.MkdirAll(ws, 0o755); err != nil {
		return "", nil, services.Wrap(services.ErrConfiguration, "workspace", "create", ws, err)
	}
	return ws, func() {
		if err := os.RemoveAll(ws); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, p.logger), "workspace cleanup failed", "workspace_cleanup_failed",
				logging.String("path", ws),
				logging.Error(err),
				logging.String(logging.FieldImpact, "intermediate files left in work directory"),
			)
		}
	}, nil
}

// place moves src into the job's output directory while holding the output
// directory lock, replacing any file of the same name.
func (p *Pipeline) place(ctx context.Context, src string, job Job) (MergedArtifact, error) {
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return MergedArtifact{}, services.Wrap(services.ErrConfiguration, "place", "output dir", job.OutputDir, err)
	}
	lock := flock.New(filepath.Join(job.OutputDir, lockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return MergedArtifact{}, services.Wrap(services.ErrConfiguration, "place", "lock output dir", job.OutputDir, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logging.WithContext(ctx, p.logger).Debug("output lock release failed", logging.Error(err))
		}
	}()

	dest := filepath.Join(job.OutputDir, job.Name)
	if err := fileutil.MoveFile(src, dest); err != nil {
		return MergedArtifact{}, services.Wrap(services.ErrMergeFailed, "place", "move", dest, err)
	}
	size, ok := fileutil.NonEmpty(dest)
	if !ok {
		return MergedArtifact{}, services.Wrap(services.ErrMergeFailed, "place", "verify", "placed file missing or empty", nil)
	}
	return MergedArtifact{Path: dest, Size: size}, nil
}
