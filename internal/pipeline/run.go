package pipeline

import (
	"context"
	"time"

	"mpdgrab/internal/delivery"
	"mpdgrab/internal/logging"
	"mpdgrab/internal/postprocess"
	"mpdgrab/internal/services"
)

// Outcome summarizes a finished Run.
type Outcome struct {
	JobID     string
	Artifact  MergedArtifact
	Delivered bool
	Elapsed   time.Duration
}

// Run acquires a DRM job and delivers it when a delivery transport and chat
// are configured. Failures are reported to the operator and to the chat.
func (p *Pipeline) Run(ctx context.Context, job Job) (Outcome, error) {
	return p.run(ctx, job, p.acquire)
}

// RunObfuscated is Run for the generic download plus XOR path.
func (p *Pipeline) RunObfuscated(ctx context.Context, job Job) (Outcome, error) {
	return p.run(ctx, job, p.acquireObfuscated)
}

func (p *Pipeline) run(ctx context.Context, job Job, acquire func(context.Context, Job) (MergedArtifact, error)) (Outcome, error) {
	job = p.prepare(job)
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, p.logger).With(logging.String("name", job.Name))
	start := p.now()
	outcome := Outcome{JobID: job.ID}

	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("source", redactSource(job.Source)),
	)
	if err := p.deps.Notifier.NotifyJobStarted(ctx, job.Name, job.Source); err != nil {
		logger.Debug("start notification failed", logging.Error(err))
	}

	artifact, err := acquire(ctx, job)
	if err != nil {
		return outcome, p.fail(ctx, job, err)
	}
	outcome.Artifact = artifact

	if p.deps.Delivery != nil && job.ChatID != "" {
		if err := p.deliver(ctx, job, artifact); err != nil {
			return outcome, p.fail(ctx, job, err)
		}
		outcome.Delivered = true
	}

	outcome.Elapsed = p.now().Sub(start)
	logger.Info("job complete",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Bool("delivered", outcome.Delivered),
		logging.Duration("elapsed", outcome.Elapsed),
	)
	if err := p.deps.Notifier.NotifyJobCompleted(ctx, job.Name, artifact.Size, outcome.Elapsed); err != nil {
		logger.Debug("completion notification failed", logging.Error(err))
	}
	return outcome, nil
}

func (p *Pipeline) deliver(ctx context.Context, job Job, artifact MergedArtifact) error {
	pctx := services.WithStage(ctx, "postprocess")
	media := postprocess.Output{Path: artifact.Path, Source: artifact.Path}
	if p.deps.Post != nil {
		media = p.deps.Post.Process(pctx, postprocess.Input{
			Path:      artifact.Path,
			Thumbnail: job.Thumbnail,
			Watermark: job.Watermark,
		})
	}
	return p.deps.Delivery.DeliverVideo(services.WithStage(ctx, "deliver"), delivery.VideoDelivery{
		ChatID:  job.ChatID,
		Name:    job.Name,
		Caption: job.Caption,
		Media:   media,
	})
}

func (p *Pipeline) fail(ctx context.Context, job Job, err error) error {
	logger := logging.WithContext(ctx, p.logger)
	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.String("name", job.Name),
		logging.String(logging.FieldErrorKind, string(services.KindOf(err))),
		logging.Error(err),
	)
	if notifyErr := p.deps.Notifier.NotifyJobFailed(ctx, job.Name, err); notifyErr != nil {
		logger.Debug("failure notification failed", logging.Error(notifyErr))
	}
	if p.deps.Delivery != nil && job.ChatID != "" {
		if reportErr := p.deps.Delivery.ReportFailure(ctx, job.ChatID, job.Name, err); reportErr != nil {
			logger.Debug("failure report failed", logging.Error(reportErr))
		}
	}
	return err
}
