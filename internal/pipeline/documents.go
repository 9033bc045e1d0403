package pipeline

import (
	"context"
	"net/url"

	"mpdgrab/internal/delivery"
	"mpdgrab/internal/logging"
	"mpdgrab/internal/pdf"
	"mpdgrab/internal/services"
)

// DocumentSummary reports a bulk document run.
type DocumentSummary struct {
	Outcomes []pdf.Outcome
	Fetched  int
	Failed   int
}

// FetchDocuments downloads every item and, when a chat is given and delivery
// is configured, uploads each fetched document. A failed item never stops the
// batch.
func (p *Pipeline) FetchDocuments(ctx context.Context, items []pdf.Item, chatID string) (DocumentSummary, error) {
	if p.deps.Documents == nil {
		return DocumentSummary{}, services.Wrap(services.ErrConfiguration, "pdf", "fetch", "no document fetcher configured", nil)
	}
	ctx = services.WithStage(ctx, "pdf")
	logger := logging.WithContext(ctx, p.logger)
	if chatID == "" {
		chatID = p.cfg.Telegram.ChatID
	}

	summary := DocumentSummary{Outcomes: p.deps.Documents.FetchAll(ctx, items)}
	for i, outcome := range summary.Outcomes {
		if outcome.Err != nil {
			summary.Failed++
			continue
		}
		if p.deps.Delivery != nil && chatID != "" {
			err := p.deps.Delivery.DeliverDocument(ctx, delivery.DocumentDelivery{
				ChatID:  chatID,
				Name:    outcome.Item.Name,
				Path:    outcome.Path,
				Caption: outcome.Item.Name,
			})
			if err != nil {
				summary.Outcomes[i].Err = err
				summary.Failed++
				logging.WarnWithContext(logger, "document delivery failed", "pdf_delivery_failed",
					logging.String("path", outcome.Path),
					logging.Error(err),
					logging.String(logging.FieldImpact, "document kept in output directory"),
				)
				continue
			}
		}
		summary.Fetched++
	}

	logger.Info("documents processed",
		logging.String(logging.FieldEventType, "pdf_batch_complete"),
		logging.Int("fetched", summary.Fetched),
		logging.Int("failed", summary.Failed),
	)
	if err := p.deps.Notifier.NotifyDocumentsCompleted(ctx, summary.Fetched, summary.Failed); err != nil {
		logger.Debug("document notification failed", logging.Error(err))
	}
	return summary, nil
}

func redactSource(source string) string {
	parsed, err := url.Parse(source)
	if err != nil || parsed.Host == "" {
		return source
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}
