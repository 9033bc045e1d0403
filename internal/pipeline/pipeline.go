package pipeline

import (
	"context"
	"log/slog"
	"time"

	"mpdgrab/internal/config"
	"mpdgrab/internal/delivery"
	"mpdgrab/internal/downloader"
	"mpdgrab/internal/drm"
	"mpdgrab/internal/keys"
	"mpdgrab/internal/logging"
	"mpdgrab/internal/media/ffmpeg"
	"mpdgrab/internal/notifications"
	"mpdgrab/internal/pdf"
	"mpdgrab/internal/postprocess"
	"mpdgrab/internal/xorcrypt"
)

// KeyResolver looks up manifests and key material.
type KeyResolver interface {
	Resolve(ctx context.Context, shape keys.Shape, endpoint string) (keys.Resolution, error)
}

// Downloader fetches manifests and generic media.
type Downloader interface {
	FetchManifest(ctx context.Context, req downloader.ManifestRequest) (downloader.ManifestResult, error)
	Download(ctx context.Context, req downloader.Request) (downloader.Result, error)
}

// Decryptor turns raw CENC streams into clear ones.
type Decryptor interface {
	DecryptDir(ctx context.Context, material keys.Material, dir string) (drm.Streams, error)
}

// Merger remuxes decrypted streams.
type Merger interface {
	Merge(ctx context.Context, req ffmpeg.MergeRequest) (int64, error)
}

// PostProcessor prepares a merged video for upload.
type PostProcessor interface {
	Process(ctx context.Context, in postprocess.Input) postprocess.Output
}

// Deliverer ships artifacts to the chat.
type Deliverer interface {
	DeliverVideo(ctx context.Context, req delivery.VideoDelivery) error
	DeliverDocument(ctx context.Context, req delivery.DocumentDelivery) error
	ReportFailure(ctx context.Context, chatID, name string, cause error) error
}

// DocumentFetcher downloads document links in bulk.
type DocumentFetcher interface {
	FetchAll(ctx context.Context, items []pdf.Item) []pdf.Outcome
}

// Deps are the collaborators a Pipeline drives. Delivery is optional; without
// it, finished artifacts stay in the output directory.
type Deps struct {
	Resolver   KeyResolver
	Downloader Downloader
	Decryptor  Decryptor
	Merger     Merger
	Post       PostProcessor
	Delivery   Deliverer
	Documents  DocumentFetcher
	Notifier   notifications.Service
	// XOR decodes an obfuscated file in place; defaults to xorcrypt.DecryptFile.
	XOR func(path, key string) bool
}

// Pipeline runs media jobs.
type Pipeline struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Pipeline from explicit collaborators.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Pipeline {
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(&config.Config{})
	}
	if deps.XOR == nil {
		deps.XOR = xorcrypt.DecryptFile
	}
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		now:    time.Now,
	}
}
