package keys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"mpdgrab/internal/logging"
	"mpdgrab/internal/services"
)

// DefaultTimeout bounds a single key API request.
const DefaultTimeout = 15 * time.Second

const maxBodyBytes = 1 << 20

// Shape names the JSON layout a provider answers with.
type Shape string

const (
	ShapeMPDKeys      Shape = "mpd_keys"      // {"MPD": ..., "KEYS": ...}
	ShapeManifestKeys Shape = "manifest_keys" // {"mpd_url": ..., "keys": ...}
	ShapeURL          Shape = "url"           // {"url": ...}
)

// ParseShape maps a configuration or flag value to a Shape.
func ParseShape(value string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(value))) {
	case "", ShapeMPDKeys:
		return ShapeMPDKeys, nil
	case ShapeManifestKeys:
		return ShapeManifestKeys, nil
	case ShapeURL:
		return ShapeURL, nil
	default:
		return "", fmt.Errorf("unknown key API shape %q", value)
	}
}

// Resolution is a manifest locator plus the key material needed to decrypt it.
// Keys is empty for the {url} shape.
type Resolution struct {
	Manifest string
	Keys     Material
}

// Option configures the resolver.
type Option func(*Resolver)

// WithHTTPClient overrides the HTTP client (primarily for tests).
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		if client != nil {
			r.client = client
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// Resolver queries key APIs.
type Resolver struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
	group   singleflight.Group
}

// New constructs a Resolver.
func New(logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		client:  &http.Client{},
		timeout: DefaultTimeout,
		logger:  logging.NewComponentLogger(logger, "keys"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve dispatches to the entry point matching shape.
func (r *Resolver) Resolve(ctx context.Context, shape Shape, endpoint string) (Resolution, error) {
	switch shape {
	case ShapeMPDKeys, "":
		return r.ResolveMPDKeys(ctx, endpoint)
	case ShapeManifestKeys:
		return r.ResolveManifestKeys(ctx, endpoint)
	case ShapeURL:
		return r.ResolveURL(ctx, endpoint)
	default:
		return Resolution{}, services.Wrap(services.ErrValidation, "keys", "resolve", fmt.Sprintf("unknown shape %q", shape), nil)
	}
}

// ResolveMPDKeys expects {"MPD": "...", "KEYS": ...}.
func (r *Resolver) ResolveMPDKeys(ctx context.Context, endpoint string) (Resolution, error) {
	var payload struct {
		MPD  string   `json:"MPD"`
		Keys Material `json:"KEYS"`
	}
	if err := r.fetch(ctx, endpoint, &payload); err != nil {
		return Resolution{}, err
	}
	return complete(endpoint, payload.MPD, payload.Keys, "MPD", "KEYS")
}

// ResolveManifestKeys expects {"mpd_url": "...", "keys": ...}.
func (r *Resolver) ResolveManifestKeys(ctx context.Context, endpoint string) (Resolution, error) {
	var payload struct {
		MPDURL string   `json:"mpd_url"`
		Keys   Material `json:"keys"`
	}
	if err := r.fetch(ctx, endpoint, &payload); err != nil {
		return Resolution{}, err
	}
	return complete(endpoint, payload.MPDURL, payload.Keys, "mpd_url", "keys")
}

// ResolveURL expects {"url": "..."}; there is no separate key material.
func (r *Resolver) ResolveURL(ctx context.Context, endpoint string) (Resolution, error) {
	var payload struct {
		URL string `json:"url"`
	}
	if err := r.fetch(ctx, endpoint, &payload); err != nil {
		return Resolution{}, err
	}
	if strings.TrimSpace(payload.URL) == "" {
		return Resolution{}, resolutionError(endpoint, `response missing "url"`, nil)
	}
	return Resolution{Manifest: strings.TrimSpace(payload.URL)}, nil
}

func complete(endpoint, manifest string, material Material, manifestField, keysField string) (Resolution, error) {
	manifest = strings.TrimSpace(manifest)
	if manifest == "" {
		return Resolution{}, resolutionError(endpoint, fmt.Sprintf("response missing %q", manifestField), nil)
	}
	if len(material) == 0 {
		return Resolution{}, resolutionError(endpoint, fmt.Sprintf("response missing %q", keysField), nil)
	}
	return Resolution{Manifest: manifest, Keys: material}, nil
}

// fetch GETs endpoint and decodes the JSON body into out. Concurrent calls for
// the same endpoint share one request.
func (r *Resolver) fetch(ctx context.Context, endpoint string, out any) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return resolutionError(endpoint, "endpoint required", nil)
	}
	logger := logging.WithContext(ctx, r.logger)

	// The shared request outlives any single caller; each caller still stops
	// waiting when its own context ends.
	flight := r.group.DoChan(endpoint, func() (any, error) {
		return r.get(context.WithoutCancel(ctx), endpoint)
	})
	var (
		value  any
		err    error
		shared bool
	)
	select {
	case res := <-flight:
		value, err, shared = res.Val, res.Err, res.Shared
	case <-ctx.Done():
		return resolutionError(endpoint, "lookup abandoned", ctx.Err())
	}
	if err != nil {
		logging.WarnWithContext(logger, "key API request failed", "key_resolution_failed",
			logging.String("endpoint", redact(endpoint)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify the key API URL and that the provider is reachable"),
			logging.String(logging.FieldImpact, "job cannot be decrypted"),
		)
		return err
	}
	body := value.([]byte)
	if err := json.Unmarshal(body, out); err != nil {
		return resolutionError(endpoint, "response is not valid JSON", err)
	}
	logger.Debug("key API responded",
		logging.String("endpoint", redact(endpoint)),
		logging.Int("bytes", len(body)),
		logging.Bool("shared", shared),
	)
	return nil
}

func (r *Resolver) get(ctx context.Context, endpoint string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, resolutionError(endpoint, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, resolutionError(endpoint, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, resolutionError(endpoint, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resolutionError(endpoint, "read body", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, resolutionError(endpoint, "empty response body", nil)
	}
	return body, nil
}

func resolutionError(endpoint, message string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return services.Wrap(services.ErrResolution, "keys", redact(endpoint), message, err)
}

// redact drops the query string, which often carries provider tokens.
func redact(endpoint string) string {
	if idx := strings.IndexAny(endpoint, "?#"); idx >= 0 {
		return endpoint[:idx]
	}
	return endpoint
}
