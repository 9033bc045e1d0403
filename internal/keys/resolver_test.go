package keys_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mpdgrab/internal/keys"
	"mpdgrab/internal/logging"
	"mpdgrab/internal/services"
)

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveMPDKeys(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"MPD":"https://cdn.example/a/manifest.mpd","KEYS":["kid1:key1","kid2:key2"]}`)
	resolver := keys.New(logging.NewNop())

	res, err := resolver.ResolveMPDKeys(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("ResolveMPDKeys returned error: %v", err)
	}
	want := keys.Resolution{
		Manifest: "https://cdn.example/a/manifest.mpd",
		Keys:     keys.Material{{KID: "kid1", Key: "key1"}, {KID: "kid2", Key: "key2"}},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("resolution mismatch (-want +got):\n%s", diff)
	}
	if got := res.Keys.String(); got != "--key kid1:key1 --key kid2:key2" {
		t.Fatalf("key args = %q", got)
	}
}

func TestResolveManifestKeysAcceptsStringAndObjects(t *testing.T) {
	resolver := keys.New(nil)

	srv := newServer(t, http.StatusOK, `{"mpd_url":"https://cdn.example/b.mpd","keys":"--key abc:def"}`)
	res, err := resolver.ResolveManifestKeys(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("string keys: %v", err)
	}
	if diff := cmp.Diff(keys.Material{{KID: "abc", Key: "def"}}, res.Keys); diff != "" {
		t.Fatalf("string keys mismatch (-want +got):\n%s", diff)
	}

	srv = newServer(t, http.StatusOK, `{"mpd_url":"https://cdn.example/c.mpd","keys":[{"kid":"k1","key":"v1"}]}`)
	res, err = resolver.ResolveManifestKeys(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("object keys: %v", err)
	}
	if diff := cmp.Diff(keys.Material{{KID: "k1", Key: "v1"}}, res.Keys); diff != "" {
		t.Fatalf("object keys mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveURL(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"url":" https://cdn.example/v.m3u8 "}`)
	res, err := keys.New(nil).Resolve(context.Background(), keys.ShapeURL, srv.URL)
	if err != nil {
		t.Fatalf("ResolveURL returned error: %v", err)
	}
	if res.Manifest != "https://cdn.example/v.m3u8" || len(res.Keys) != 0 {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestResolutionFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		shape  keys.Shape
	}{
		{"empty body", http.StatusOK, "", keys.ShapeMPDKeys},
		{"whitespace body", http.StatusOK, "  \n", keys.ShapeMPDKeys},
		{"not json", http.StatusOK, "<html>rate limited</html>", keys.ShapeMPDKeys},
		{"missing keys", http.StatusOK, `{"MPD":"https://x/a.mpd"}`, keys.ShapeMPDKeys},
		{"missing manifest", http.StatusOK, `{"KEYS":"a:b"}`, keys.ShapeMPDKeys},
		{"wrong shape", http.StatusOK, `{"MPD":"https://x/a.mpd","KEYS":"a:b"}`, keys.ShapeManifestKeys},
		{"bad key pair", http.StatusOK, `{"MPD":"https://x/a.mpd","KEYS":"nocolon"}`, keys.ShapeMPDKeys},
		{"missing url", http.StatusOK, `{"link":"x"}`, keys.ShapeURL},
		{"server error", http.StatusInternalServerError, `{"MPD":"x","KEYS":"a:b"}`, keys.ShapeMPDKeys},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.body)
			res, err := keys.New(logging.NewNop()).Resolve(context.Background(), tt.shape, srv.URL)
			if !errors.Is(err, services.ErrResolution) {
				t.Fatalf("expected ErrResolution, got %v", err)
			}
			if diff := cmp.Diff(keys.Resolution{}, res); diff != "" {
				t.Fatalf("expected empty resolution (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNetworkErrorIsResolutionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := keys.New(nil).ResolveMPDKeys(context.Background(), url)
	if !errors.Is(err, services.ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
}

func TestTimeoutIsResolutionFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	_, err := keys.New(nil, keys.WithTimeout(50*time.Millisecond)).ResolveMPDKeys(context.Background(), srv.URL)
	if !errors.Is(err, services.ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
}

func TestConcurrentLookupsShareRequest(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"MPD":"https://x/a.mpd","KEYS":"a:b"}`))
	}))
	t.Cleanup(srv.Close)

	resolver := keys.New(nil)
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := resolver.ResolveMPDKeys(context.Background(), srv.URL)
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected one upstream request, got %d", got)
	}
}

func TestCancelledCallerDoesNotAbortSharedLookup(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"MPD":"https://x/a.mpd","KEYS":"a:b"}`))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})

	resolver := keys.New(nil)
	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := resolver.ResolveMPDKeys(firstCtx, srv.URL)
		firstErr <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	secondRes := make(chan keys.Resolution, 1)
	secondErr := make(chan error, 1)
	go func() {
		res, err := resolver.ResolveMPDKeys(context.Background(), srv.URL)
		secondRes <- res
		secondErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("first caller error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(release)
	if err := <-secondErr; err != nil {
		t.Fatalf("second caller inherited cancellation: %v", err)
	}
	if res := <-secondRes; res.Manifest != "https://x/a.mpd" {
		t.Fatalf("unexpected manifest %q", res.Manifest)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected one upstream request, got %d", got)
	}
}

func TestParseShape(t *testing.T) {
	for in, want := range map[string]keys.Shape{"": keys.ShapeMPDKeys, "URL": keys.ShapeURL, "manifest_keys": keys.ShapeManifestKeys} {
		got, err := keys.ParseShape(in)
		if err != nil || got != want {
			t.Fatalf("ParseShape(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := keys.ParseShape("xml"); err == nil {
		t.Fatal("expected error for unknown shape")
	}
}
