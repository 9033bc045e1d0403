package delivery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mpdgrab/internal/logging"
	"mpdgrab/internal/postprocess"
	"mpdgrab/internal/services"
	"mpdgrab/internal/textutil"
)

const defaultProgressInterval = 3 * time.Second

// VideoDelivery describes a prepared video sent to a chat.
type VideoDelivery struct {
	ChatID  string
	Name    string
	Caption string
	Media   postprocess.Output
}

// DocumentDelivery describes a file sent to a chat as a document.
type DocumentDelivery struct {
	ChatID  string
	Name    string
	Path    string
	Caption string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithProgressInterval sets the minimum spacing between progress edits.
func WithProgressInterval(interval time.Duration) Option {
	return func(a *Adapter) {
		if interval > 0 {
			a.interval = interval
		}
	}
}

// WithRemove overrides local file removal (primarily for tests).
func WithRemove(remove func(string) error) Option {
	return func(a *Adapter) {
		if remove != nil {
			a.remove = remove
		}
	}
}

// Adapter applies the delivery policy on top of a Transport.
type Adapter struct {
	transport Transport
	interval  time.Duration
	remove    func(string) error
	logger    *slog.Logger
}

// New constructs an Adapter.
func New(transport Transport, logger *slog.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		transport: transport,
		interval:  defaultProgressInterval,
		remove:    os.Remove,
		logger:    logging.NewComponentLogger(logger, "delivery"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DeliverVideo uploads a prepared video, falling back to a document upload
// when the video upload is rejected. Notices are deleted afterwards and the
// local temporaries are removed on success. Only a failed fallback returns an
// error.
func (a *Adapter) DeliverVideo(ctx context.Context, req VideoDelivery) error {
	logger := logging.WithContext(ctx, a.logger).With(logging.String("name", req.Name))
	media := req.Media

	notice, ok := a.notice(ctx, logger, req.ChatID, fmt.Sprintf("📩 Uploading Video 📩\n%s", req.Name))
	progress := a.progress(ctx, logger, notice, ok, "Uploading video")

	videoErr := a.transport.SendVideo(ctx, req.ChatID, VideoUpload{
		Upload:    Upload{Path: media.Path, Caption: req.Caption, Progress: progress},
		Thumbnail: media.Thumbnail,
		Duration:  media.Duration,
		Width:     media.Width,
		Height:    media.Height,
	})
	if videoErr != nil {
		logging.WarnWithContext(logger, "video upload failed; retrying as document", "video_upload_failed",
			logging.Error(videoErr),
			logging.String(logging.FieldImpact, "video delivered without inline playback"),
		)
		docErr := a.transport.SendDocument(ctx, req.ChatID, Upload{
			Path:     media.Path,
			Caption:  req.Caption,
			Progress: a.progress(ctx, logger, notice, ok, "Uploading document"),
		})
		if docErr != nil {
			a.deleteNotice(ctx, logger, notice, ok)
			a.cleanup(logger, derived(media))
			return services.Wrap(services.ErrTransport, "delivery", "upload video",
				fmt.Sprintf("video and document uploads failed (video: %v)", videoErr), docErr)
		}
	}

	a.deleteNotice(ctx, logger, notice, ok)
	a.cleanup(logger, media.Temporaries())
	logger.Info("video delivered",
		logging.String(logging.FieldEventType, "video_delivered"),
		logging.Bool("as_document", videoErr != nil),
	)
	return nil
}

// DeliverDocument uploads a file as a document, then removes the notice and
// the local file.
func (a *Adapter) DeliverDocument(ctx context.Context, req DocumentDelivery) error {
	logger := logging.WithContext(ctx, a.logger).With(logging.String("name", req.Name))

	notice, ok := a.notice(ctx, logger, req.ChatID, fmt.Sprintf("📥 Uploading Document 📥\n%s", req.Name))
	err := a.transport.SendDocument(ctx, req.ChatID, Upload{
		Path:     req.Path,
		Caption:  req.Caption,
		Progress: a.progress(ctx, logger, notice, ok, "Uploading document"),
	})
	a.deleteNotice(ctx, logger, notice, ok)
	if err != nil {
		return services.Wrap(services.ErrTransport, "delivery", "upload document", req.Name, err)
	}
	a.cleanup(logger, []string{req.Path})
	logger.Info("document delivered", logging.String(logging.FieldEventType, "document_delivered"))
	return nil
}

// ReportFailure sends a job failure back to the chat.
func (a *Adapter) ReportFailure(ctx context.Context, chatID, name string, cause error) error {
	if cause == nil {
		return nil
	}
	text := fmt.Sprintf("❌ %s\n%s: %v", strings.TrimSpace(name), services.KindOf(cause), cause)
	if _, err := a.transport.SendText(ctx, chatID, text); err != nil {
		return services.Wrap(services.ErrTransport, "delivery", "report failure", name, err)
	}
	return nil
}

func (a *Adapter) notice(ctx context.Context, logger *slog.Logger, chatID, text string) (MessageRef, bool) {
	ref, err := a.transport.SendText(ctx, chatID, text)
	if err != nil {
		logging.WarnWithContext(logger, "progress notice failed", "notice_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "upload continues without progress updates"),
		)
		return MessageRef{}, false
	}
	return ref, true
}

func (a *Adapter) deleteNotice(ctx context.Context, logger *slog.Logger, ref MessageRef, ok bool) {
	if !ok {
		return
	}
	if err := a.transport.DeleteMessage(ctx, ref); err != nil {
		logger.Debug("notice delete failed", logging.Error(err))
	}
}

// progress returns a callback that edits the notice at most once per interval
// and logs sampled byte progress.
func (a *Adapter) progress(ctx context.Context, logger *slog.Logger, ref MessageRef, ok bool, label string) ProgressFunc {
	limiter := rate.NewLimiter(rate.Every(a.interval), 1)
	sampler := logging.NewProgressSampler(25)
	return func(sent, total int64) {
		if sampler.ShouldLogBytes(sent, total, label) {
			logger.Debug("upload progress",
				logging.String(logging.FieldStage, "upload"),
				logging.Int64("sent", sent),
				logging.Int64("total", total),
			)
		}
		if !ok || !limiter.Allow() {
			return
		}
		if err := a.transport.EditText(ctx, ref, ProgressText(label, sent, total)); err != nil {
			logger.Debug("progress edit failed", logging.Error(err))
		}
	}
}

func (a *Adapter) cleanup(logger *slog.Logger, paths []string) {
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := a.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(logger, "temporary file cleanup failed", "cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file left on disk"),
			)
		}
	}
}

// derived lists the files produced from the source. The source itself is kept
// when delivery fails.
func derived(media postprocess.Output) []string {
	all := media.Temporaries()
	out := all[:0:0]
	for _, path := range all {
		if path != media.Source {
			out = append(out, path)
		}
	}
	return out
}

// ProgressText renders an upload progress line with a ten-cell bar.
func ProgressText(label string, sent, total int64) string {
	if total <= 0 {
		return fmt.Sprintf("%s\n%s", label, textutil.HumanReadableSize(sent))
	}
	if sent > total {
		sent = total
	}
	percent := float64(sent) * 100 / float64(total)
	filled := int(percent / 10)
	bar := strings.Repeat("●", filled) + strings.Repeat("○", 10-filled)
	return fmt.Sprintf("%s\n[%s] %.1f%%\n%s / %s", label, bar, percent,
		textutil.HumanReadableSize(sent), textutil.HumanReadableSize(total))
}
