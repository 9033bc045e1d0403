package pipeline

import (
	"log/slog"

	"mpdgrab/internal/config"
	"mpdgrab/internal/delivery"
	"mpdgrab/internal/downloader"
	"mpdgrab/internal/drm"
	"mpdgrab/internal/keys"
	"mpdgrab/internal/media/ffmpeg"
	"mpdgrab/internal/media/ffprobe"
	"mpdgrab/internal/notifications"
	"mpdgrab/internal/pdf"
	"mpdgrab/internal/postprocess"
	"mpdgrab/internal/runner"
)

// Build wires the production collaborators from configuration. Delivery is
// enabled only when a Telegram bot token is configured.
func Build(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	run := runner.New(logger)
	media := ffmpeg.New(cfg.Tools.FFmpeg, run, logger)
	probe := ffprobe.New(cfg.Tools.FFprobe, runner.New(logger, runner.WithQuiet()), logger)

	deps := Deps{
		Resolver:   keys.New(logger, keys.WithTimeout(cfg.KeysTimeout())),
		Downloader: downloader.New(cfg, run, logger),
		Decryptor:  drm.New(cfg.Tools.Mp4Decrypt, run, logger),
		Merger:     media,
		Post:       postprocess.New(cfg.PostProcess, media, probe, logger),
		Documents: pdf.New(cfg.Paths.OutputDir, logger,
			pdf.WithTimeout(cfg.PDFTimeout()),
			pdf.WithWorkers(cfg.PDF.Workers),
		),
		Notifier: notifications.NewService(cfg),
	}

	if cfg.Telegram.BotToken != "" {
		transport, err := delivery.NewTelegram(cfg.Telegram)
		if err != nil {
			return nil, err
		}
		deps.Delivery = delivery.New(transport, logger, delivery.WithProgressInterval(cfg.ProgressInterval()))
	}
	return New(cfg, deps, logger), nil
}
