package pdf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"golang.org/x/sync/errgroup"

	"mpdgrab/internal/logging"
	"mpdgrab/internal/services"
	"mpdgrab/internal/textutil"
)

const (
	defaultTimeout = 30 * time.Second
	defaultWorkers = 4
)

// Item is one document to fetch.
type Item struct {
	URL  string
	Name string
}

// FileName returns the sanitized on-disk name, always ending in .pdf.
func (i Item) FileName() string {
	name := textutil.SanitizeFileName(i.Name)
	if name == "" {
		name = textutil.SanitizeFileName(filepath.Base(strings.SplitN(i.URL, "?", 2)[0]))
	}
	if name == "" {
		name = "document"
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

// Outcome is the result for one Item.
type Outcome struct {
	Item Item
	Path string
	Size int64
	Err  error
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithTimeout sets the per-item timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithWorkers bounds concurrent downloads.
func WithWorkers(workers int) Option {
	return func(f *Fetcher) {
		if workers > 0 {
			f.workers = workers
		}
	}
}

// Fetcher downloads documents into a directory.
type Fetcher struct {
	dir     string
	client  *http.Client
	timeout time.Duration
	workers int
	logger  *slog.Logger
}

// New constructs a Fetcher writing into dir.
func New(dir string, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		dir:     dir,
		client:  http.DefaultClient,
		timeout: defaultTimeout,
		workers: defaultWorkers,
		logger:  logging.NewComponentLogger(logger, "pdf"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads one document and returns its path.
func (f *Fetcher) Fetch(ctx context.Context, item Item) (string, int64, error) {
	return f.fetch(ctx, item, item.FileName())
}

func (f *Fetcher) fetch(ctx context.Context, item Item, fileName string) (string, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	fail := func(msg string, err error) error {
		return services.Wrap(services.ErrResolution, "pdf", "fetch document", msg, err)
	}
	if strings.TrimSpace(item.URL) == "" {
		return "", 0, fail("empty url", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return "", 0, fail("build request", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, fail("request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fail(fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	path := filepath.Join(f.dir, fileName)
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return "", 0, fail("create pending file", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			f.logger.Debug("cleanup pending document", logging.Error(err))
		}
	}()

	size, err := io.Copy(pending, resp.Body)
	if err != nil {
		return "", 0, fail("stream body", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", 0, fail("replace document", err)
	}
	return path, size, nil
}

// FetchAll downloads every item with bounded concurrency. Outcomes are in
// input order; individual failures are logged and recorded, never returned.
func (f *Fetcher) FetchAll(ctx context.Context, items []Item) []Outcome {
	logger := logging.WithContext(ctx, f.logger)
	outcomes := make([]Outcome, len(items))
	names := uniqueFileNames(items)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(f.workers)
	for i, item := range items {
		group.Go(func() error {
			path, size, err := f.fetch(gctx, item, names[i])
			outcomes[i] = Outcome{Item: item, Path: path, Size: size, Err: err}
			if err != nil {
				logging.WarnWithContext(logger, "document download failed", "pdf_failed",
					logging.String("url", item.URL),
					logging.Error(err),
					logging.String(logging.FieldImpact, "document skipped"),
				)
				return nil
			}
			logger.Info("document downloaded",
				logging.String(logging.FieldEventType, "pdf_downloaded"),
				logging.String("path", path),
				logging.String("size", textutil.HumanReadableSize(size)),
			)
			return nil
		})
	}
	_ = group.Wait()
	return outcomes
}

// uniqueFileNames assigns each item a distinct file name within the batch,
// suffixing repeats as "name (2).pdf".
func uniqueFileNames(items []Item) []string {
	names := make([]string, len(items))
	taken := make(map[string]struct{}, len(items))
	for i, item := range items {
		name := item.FileName()
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		for n := 2; ; n++ {
			if _, dup := taken[strings.ToLower(name)]; !dup {
				break
			}
			name = fmt.Sprintf("%s (%d)%s", stem, n, ext)
		}
		taken[strings.ToLower(name)] = struct{}{}
		names[i] = name
	}
	return names
}
