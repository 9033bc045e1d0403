package drm_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"mpdgrab/internal/drm"
	"mpdgrab/internal/keys"
	"mpdgrab/internal/logging"
	"mpdgrab/internal/runner"
	"mpdgrab/internal/services"
)

// fakeDecrypt copies input to output unless the input name is listed in fail.
type fakeDecrypt struct {
	calls [][]string
	fail  map[string]bool
	err   error
}

func (f *fakeDecrypt) Run(_ context.Context, cmd runner.Command) (runner.Result, error) {
	f.calls = append(f.calls, cmd.Args)
	if f.err != nil {
		return runner.Result{ExitCode: -1}, f.err
	}
	in, out := cmd.Args[len(cmd.Args)-2], cmd.Args[len(cmd.Args)-1]
	if f.fail[filepath.Base(in)] {
		return runner.Result{ExitCode: 1}, nil
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return runner.Result{ExitCode: 1}, nil
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return runner.Result{ExitCode: 1}, nil
	}
	return runner.Result{}, nil
}

var material = keys.Material{{KID: "kid", Key: "key"}}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestDecryptDirMarksBothStreamsAndDeletesRawSegments(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "file.f137.mp4", "file.f140.m4a")
	run := &fakeDecrypt{}

	streams, err := drm.New("mp4decrypt", run, logging.NewNop()).DecryptDir(context.Background(), material, dir)
	if err != nil {
		t.Fatalf("DecryptDir returned error: %v", err)
	}
	if !streams.Video.Decrypted || !streams.Audio.Decrypted {
		t.Fatalf("expected both streams decrypted: %+v", streams)
	}
	if exists(filepath.Join(dir, "file.f137.mp4")) || exists(filepath.Join(dir, "file.f140.m4a")) {
		t.Fatal("expected raw segments to be deleted")
	}
	if !exists(filepath.Join(dir, drm.VideoFileName)) || !exists(filepath.Join(dir, drm.AudioFileName)) {
		t.Fatal("expected decrypted outputs")
	}
	if len(run.calls) != 2 {
		t.Fatalf("expected one mp4decrypt call per stream, got %d", len(run.calls))
	}
	if !slices.Equal(run.calls[0][:3], []string{"--key", "kid:key", "--show-progress"}) {
		t.Fatalf("unexpected args: %v", run.calls[0])
	}
}

func TestDecryptDirMissingAudioIsIncomplete(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "file.mp4")

	streams, err := drm.New("", &fakeDecrypt{}, nil).DecryptDir(context.Background(), material, dir)
	if !errors.Is(err, services.ErrDecryptionIncomplete) {
		t.Fatalf("expected ErrDecryptionIncomplete, got %v", err)
	}
	if !streams.Video.Decrypted || streams.Audio.Decrypted {
		t.Fatalf("unexpected streams: %+v", streams)
	}
	if !slices.Equal(streams.Missing(), []drm.Kind{drm.KindAudio}) {
		t.Fatalf("missing = %v", streams.Missing())
	}
}

func TestDecryptDirFailedDecryptStillDeletesSource(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.m4a", "b.mp4")
	run := &fakeDecrypt{fail: map[string]bool{"b.mp4": true}}

	_, err := drm.New("mp4decrypt", run, nil).DecryptDir(context.Background(), material, dir)
	if !errors.Is(err, services.ErrDecryptionIncomplete) {
		t.Fatalf("expected ErrDecryptionIncomplete, got %v", err)
	}
	if exists(filepath.Join(dir, "b.mp4")) {
		t.Fatal("expected raw video to be deleted after failed attempt")
	}
}

func TestDecryptDirFirstSuccessPerKindWins(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.mp4", "b.mp4", "c.m4a")
	run := &fakeDecrypt{}

	if _, err := drm.New("mp4decrypt", run, nil).DecryptDir(context.Background(), material, dir); err != nil {
		t.Fatalf("DecryptDir returned error: %v", err)
	}
	if len(run.calls) != 2 {
		t.Fatalf("expected second video to be ignored, got %d calls", len(run.calls))
	}
	if !exists(filepath.Join(dir, "b.mp4")) {
		t.Fatal("ignored stream should be left for workspace cleanup")
	}
	data, _ := os.ReadFile(filepath.Join(dir, drm.VideoFileName))
	if string(data) != "a.mp4" {
		t.Fatalf("video output came from %q", data)
	}
}

func TestDecryptDirRetriesKindAfterFailedAttempt(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.mp4", "b.mp4", "c.m4a")
	run := &fakeDecrypt{fail: map[string]bool{"a.mp4": true}}

	streams, err := drm.New("mp4decrypt", run, nil).DecryptDir(context.Background(), material, dir)
	if err != nil {
		t.Fatalf("DecryptDir returned error: %v", err)
	}
	if !streams.Complete() || len(run.calls) != 3 {
		t.Fatalf("expected b.mp4 to be tried after a.mp4 failed: %+v calls=%d", streams, len(run.calls))
	}
}

func TestDecryptDirRequiresMaterial(t *testing.T) {
	if _, err := drm.New("mp4decrypt", &fakeDecrypt{}, nil).DecryptDir(context.Background(), nil, t.TempDir()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDecryptDirRunnerFailureIsIncomplete(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.mp4", "a.m4a")
	_, err := drm.New("mp4decrypt", &fakeDecrypt{err: errors.New("not found")}, nil).DecryptDir(context.Background(), material, dir)
	if !errors.Is(err, services.ErrDecryptionIncomplete) {
		t.Fatalf("expected ErrDecryptionIncomplete, got %v", err)
	}
	if exists(filepath.Join(dir, "a.mp4")) {
		t.Fatal("raw source must be removed after each attempt")
	}
}
