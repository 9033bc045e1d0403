package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrResolution           = errors.New("resolution failure")
	ErrDownload             = errors.New("download failure")
	ErrDecryptionIncomplete = errors.New("decryption incomplete")
	ErrMergeFailed          = errors.New("merge failed")
	ErrTransport            = errors.New("transport failure")
	ErrProbe                = errors.New("probe failure")
	ErrExternalTool         = errors.New("external tool error")
	ErrValidation           = errors.New("validation error")
	ErrConfiguration        = errors.New("configuration error")
)

// Kind is a stable failure classification suitable for logs and notifications.
type Kind string

const (
	KindNone                 Kind = ""
	KindResolution           Kind = "resolution"
	KindDownload             Kind = "download"
	KindDecryptionIncomplete Kind = "decryption_incomplete"
	KindMergeFailed          Kind = "merge_failed"
	KindTransport            Kind = "transport"
	KindProbe                Kind = "probe"
	KindExternalTool         Kind = "external_tool"
	KindValidation           Kind = "validation"
	KindConfiguration        Kind = "configuration"
	KindCanceled             Kind = "canceled"
	KindUnknown              Kind = "unknown"
)

var kindMarkers = []struct {
	marker error
	kind   Kind
}{
	{ErrResolution, KindResolution},
	{ErrDownload, KindDownload},
	{ErrDecryptionIncomplete, KindDecryptionIncomplete},
	{ErrMergeFailed, KindMergeFailed},
	{ErrTransport, KindTransport},
	{ErrProbe, KindProbe},
	{ErrExternalTool, KindExternalTool},
	{ErrValidation, KindValidation},
	{ErrConfiguration, KindConfiguration},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf maps an error to its failure kind. The first matching marker wins, so an
// error wrapped twice reports the outermost classification listed first above.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, entry := range kindMarkers {
		if errors.Is(err, entry.marker) {
			return entry.kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}

// IsTerminal reports whether err ends a job rather than being recovered locally.
func IsTerminal(err error) bool {
	switch KindOf(err) {
	case KindNone, KindProbe:
		return false
	default:
		return true
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
