package downloader_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mpdgrab/internal/config"
	"mpdgrab/internal/downloader"
	"mpdgrab/internal/logging"
	"mpdgrab/internal/runner"
	"mpdgrab/internal/services"
)

type stubRunner struct {
	calls  []runner.Command
	exit   []int
	onCall func(n int, cmd runner.Command)
	stdout string
	err    error
}

func (s *stubRunner) Run(_ context.Context, cmd runner.Command) (runner.Result, error) {
	s.calls = append(s.calls, cmd)
	n := len(s.calls)
	if s.onCall != nil {
		s.onCall(n, cmd)
	}
	if s.err != nil {
		return runner.Result{Command: cmd, ExitCode: -1}, s.err
	}
	code := 0
	if len(s.exit) > 0 {
		code = s.exit[min(n-1, len(s.exit)-1)]
	}
	return runner.Result{Command: cmd, ExitCode: code, Stdout: s.stdout}, nil
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newAdapter(t *testing.T, run *stubRunner, sleeps *sleepRecorder) *downloader.Adapter {
	t.Helper()
	cfg := config.Default()
	cfg.Download.RetryPolicies = config.DefaultRetryPolicies()
	return downloader.New(&cfg, run, logging.NewNop(), downloader.WithSleep(sleeps.sleep))
}

func TestFetchManifestBuildsCommandAndListsFiles(t *testing.T) {
	dir := t.TempDir()
	run := &stubRunner{onCall: func(int, runner.Command) {
		for _, name := range []string{"file.f137.mp4", "file.f140.m4a"} {
			if err := os.WriteFile(filepath.Join(dir, name), []byte("raw"), 0o644); err != nil {
				t.Fatalf("write stream: %v", err)
			}
		}
	}}
	adapter := newAdapter(t, run, &sleepRecorder{})

	result, err := adapter.FetchManifest(context.Background(), downloader.ManifestRequest{
		URL:     "https://cdn.example/m.mpd",
		Quality: "480p",
		Dir:     dir,
	})
	if err != nil {
		t.Fatalf("FetchManifest returned error: %v", err)
	}
	want := []string{filepath.Join(dir, "file.f137.mp4"), filepath.Join(dir, "file.f140.m4a")}
	if diff := cmp.Diff(want, result.Files); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}

	args := run.calls[0].Args
	for _, fragment := range []string{
		"bv[height<=480]+ba/b",
		filepath.Join(dir, "file.%(ext)s"),
		"--allow-unplayable-formats",
		"--no-check-certificate",
		"aria2c",
		"https://cdn.example/m.mpd",
	} {
		if !slices.Contains(args, fragment) {
			t.Fatalf("expected %q in args %v", fragment, args)
		}
	}
	idx := slices.Index(args, "--concurrent-fragments")
	if idx < 0 || args[idx+1] != "4" {
		t.Fatalf("expected bounded fragment concurrency, got %v", args)
	}
}

func TestFetchManifestWithoutFilesIsDownloadFailure(t *testing.T) {
	run := &stubRunner{exit: []int{1}}
	adapter := newAdapter(t, run, &sleepRecorder{})

	_, err := adapter.FetchManifest(context.Background(), downloader.ManifestRequest{URL: "https://x/m.mpd", Dir: t.TempDir()})
	if !errors.Is(err, services.ErrDownload) {
		t.Fatalf("expected ErrDownload, got %v", err)
	}
}

func TestDownloadReportsProducedVariant(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "lecture.mkv")
	run := &stubRunner{onCall: func(int, runner.Command) {
		if err := os.WriteFile(filepath.Join(dir, "lecture.mp4"), []byte("video"), 0o644); err != nil {
			t.Fatalf("write output: %v", err)
		}
	}}
	adapter := newAdapter(t, run, &sleepRecorder{})

	result, err := adapter.Download(context.Background(), downloader.Request{URL: "https://cdn.example/v.m3u8", Name: name})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	want := downloader.Result{
		Path:     filepath.Join(dir, "lecture.mp4"),
		Produced: true,
		Variant:  downloader.VariantMP4,
		Attempts: 1,
		Policy:   downloader.DefaultPolicyName,
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}

	joined := strings.Join(run.calls[0].Args, " ")
	for _, fragment := range []string{"-R 25", "--fragment-retries 25", "--external-downloader aria2c", "--downloader-args aria2c: -x 16 -j 32"} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in %q", fragment, joined)
		}
	}
}

func TestDownloadNothingProducedReturnsRequestedName(t *testing.T) {
	name := filepath.Join(t.TempDir(), "missing.mp4")
	adapter := newAdapter(t, &stubRunner{}, &sleepRecorder{})

	result, err := adapter.Download(context.Background(), downloader.Request{URL: "https://cdn.example/v", Name: name})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if result.Produced || result.Path != name || result.Variant != downloader.VariantNone {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDownloadFragileSourceRetriesTenTimes(t *testing.T) {
	run := &stubRunner{exit: []int{1}}
	sleeps := &sleepRecorder{}
	adapter := newAdapter(t, run, sleeps)
	name := filepath.Join(t.TempDir(), "class.mp4")

	result, err := adapter.Download(context.Background(), downloader.Request{URL: "https://videos.visionias.in/x/master.m3u8", Name: name})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if len(run.calls) != 11 || result.Attempts != 11 {
		t.Fatalf("expected 1 attempt + 10 retries, got %d calls (attempts %d)", len(run.calls), result.Attempts)
	}
	if len(sleeps.waits) != 10 || sleeps.waits[0] != 5*time.Second {
		t.Fatalf("expected ten 5s backoffs, got %v", sleeps.waits)
	}
	if result.Policy != config.FragileRetryPolicy || result.ExitCode != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	// A later unrelated download starts with no retry state at all.
	run.calls = nil
	other, err := adapter.Download(context.Background(), downloader.Request{URL: "https://cdn.example/v", Name: name})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if len(run.calls) != 1 || other.Attempts != 1 {
		t.Fatalf("expected a single attempt for a non-fragile source, got %d", len(run.calls))
	}

	// And the fragile source gets its full budget again.
	run.calls = nil
	if _, err := adapter.Download(context.Background(), downloader.Request{URL: "https://visionias.in/y", Name: name}); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if len(run.calls) != 11 {
		t.Fatalf("expected fresh budget of 10 retries, got %d calls", len(run.calls))
	}
}

func TestDownloadStopsRetryingOnSuccess(t *testing.T) {
	run := &stubRunner{exit: []int{1, 1, 0}}
	adapter := newAdapter(t, run, &sleepRecorder{})

	result, err := adapter.Download(context.Background(), downloader.Request{URL: "https://visionias.in/z", Name: filepath.Join(t.TempDir(), "z.mp4")})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if result.Attempts != 3 || result.ExitCode != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDownloadRunnerFailureIsExternalToolError(t *testing.T) {
	adapter := newAdapter(t, &stubRunner{err: errors.New("exec: yt-dlp not found")}, &sleepRecorder{})
	_, err := adapter.Download(context.Background(), downloader.Request{URL: "https://x/v", Name: filepath.Join(t.TempDir(), "v.mp4")})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestListFormats(t *testing.T) {
	run := &stubRunner{stdout: "[info] Available formats\nID EXT RESOLUTION FPS | FILESIZE\n---------------\n140 m4a audio only | 2MiB\n137 mp4 1280x720 30 | 20MiB\n"}
	adapter := newAdapter(t, run, &sleepRecorder{})

	formats, err := adapter.ListFormats(context.Background(), "https://x/v")
	if err != nil {
		t.Fatalf("ListFormats returned error: %v", err)
	}
	if diff := cmp.Diff([]downloader.Format{{ID: "137", Resolution: "1280x720"}}, formats); diff != "" {
		t.Fatalf("formats mismatch (-want +got):\n%s", diff)
	}
}
