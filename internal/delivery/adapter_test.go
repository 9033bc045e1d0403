package delivery_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mpdgrab/internal/delivery"
	"mpdgrab/internal/logging"
	"mpdgrab/internal/postprocess"
	"mpdgrab/internal/services"
)

type fakeTransport struct {
	mu        sync.Mutex
	calls     []string
	nextID    int64
	videoErr  error
	docErr    error
	textErr   error
	deleted   []int64
	edits     []string
	texts     []string
	videos    []delivery.VideoUpload
	documents []delivery.Upload
}

func (f *fakeTransport) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeTransport) SendText(_ context.Context, chatID, text string) (delivery.MessageRef, error) {
	f.record("text")
	if f.textErr != nil {
		return delivery.MessageRef{}, f.textErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.texts = append(f.texts, text)
	return delivery.MessageRef{ChatID: chatID, MessageID: f.nextID}, nil
}

func (f *fakeTransport) EditText(_ context.Context, _ delivery.MessageRef, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeTransport) SendDocument(_ context.Context, _ string, doc delivery.Upload) error {
	f.record("document")
	f.mu.Lock()
	f.documents = append(f.documents, doc)
	f.mu.Unlock()
	if doc.Progress != nil {
		doc.Progress(50, 100)
		doc.Progress(100, 100)
	}
	return f.docErr
}

func (f *fakeTransport) SendVideo(_ context.Context, _ string, video delivery.VideoUpload) error {
	f.record("video")
	f.mu.Lock()
	f.videos = append(f.videos, video)
	f.mu.Unlock()
	if video.Progress != nil {
		video.Progress(10, 100)
		video.Progress(100, 100)
	}
	return f.videoErr
}

func (f *fakeTransport) DeleteMessage(_ context.Context, ref delivery.MessageRef) error {
	f.record("delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref.MessageID)
	return nil
}

func writeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		paths = append(paths, path)
	}
	return paths
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func watermarkedOutput(t *testing.T) postprocess.Output {
	paths := writeFiles(t, "clip.mp4", "w_clip.mp4", "clip.mp4.jpg")
	return postprocess.Output{
		Path:               paths[1],
		Source:             paths[0],
		Thumbnail:          paths[2],
		GeneratedThumbnail: true,
		Watermarked:        true,
		Duration:           61,
		Width:              1280,
		Height:             720,
	}
}

func TestDeliverVideoUploadsAndCleansUp(t *testing.T) {
	transport := &fakeTransport{}
	adapter := delivery.New(transport, logging.NewNop())
	media := watermarkedOutput(t)

	err := adapter.DeliverVideo(context.Background(), delivery.VideoDelivery{
		ChatID: "42", Name: "clip", Caption: "Lecture 1", Media: media,
	})
	if err != nil {
		t.Fatalf("DeliverVideo: %v", err)
	}
	if diff := cmp.Diff([]string{"text", "video", "delete"}, transport.calls); diff != "" {
		t.Fatalf("call order mismatch (-want +got):\n%s", diff)
	}
	got := transport.videos[0]
	if got.Path != media.Path || got.Thumbnail != media.Thumbnail || got.Duration != 61 || got.Width != 1280 {
		t.Fatalf("unexpected video upload %+v", got)
	}
	if got.Caption != "Lecture 1" {
		t.Fatalf("caption = %q", got.Caption)
	}
	for _, path := range []string{media.Source, media.Path, media.Thumbnail} {
		if exists(path) {
			t.Fatalf("expected %s removed", path)
		}
	}
}

func TestDeliverVideoFallsBackToDocument(t *testing.T) {
	transport := &fakeTransport{videoErr: errors.New("file too large")}
	adapter := delivery.New(transport, logging.NewNop())
	media := watermarkedOutput(t)

	if err := adapter.DeliverVideo(context.Background(), delivery.VideoDelivery{ChatID: "42", Name: "clip", Media: media}); err != nil {
		t.Fatalf("DeliverVideo: %v", err)
	}
	if diff := cmp.Diff([]string{"text", "video", "document", "delete"}, transport.calls); diff != "" {
		t.Fatalf("call order mismatch (-want +got):\n%s", diff)
	}
	if transport.documents[0].Path != media.Path {
		t.Fatalf("document path = %q, want %q", transport.documents[0].Path, media.Path)
	}
	if exists(media.Source) {
		t.Fatalf("expected source removed after fallback delivery")
	}
}

func TestDeliverVideoDoubleFailureIsTransportError(t *testing.T) {
	transport := &fakeTransport{videoErr: errors.New("boom"), docErr: errors.New("still boom")}
	adapter := delivery.New(transport, logging.NewNop())
	media := watermarkedOutput(t)

	err := adapter.DeliverVideo(context.Background(), delivery.VideoDelivery{ChatID: "42", Name: "clip", Media: media})
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if len(transport.deleted) != 1 {
		t.Fatalf("expected notice deleted, got %v", transport.deleted)
	}
	if !exists(media.Source) {
		t.Fatalf("source must survive a failed delivery")
	}
	if exists(media.Path) || exists(media.Thumbnail) {
		t.Fatalf("expected derived files removed")
	}
}

func TestDeliverVideoWithoutNotice(t *testing.T) {
	transport := &fakeTransport{textErr: errors.New("chat not found")}
	adapter := delivery.New(transport, logging.NewNop())
	media := watermarkedOutput(t)

	if err := adapter.DeliverVideo(context.Background(), delivery.VideoDelivery{ChatID: "42", Name: "clip", Media: media}); err != nil {
		t.Fatalf("DeliverVideo: %v", err)
	}
	if len(transport.deleted) != 0 || len(transport.edits) != 0 {
		t.Fatalf("no notice means no edits or deletes; got edits=%v deleted=%v", transport.edits, transport.deleted)
	}
}

func TestProgressEditsAreThrottled(t *testing.T) {
	transport := &fakeTransport{}
	adapter := delivery.New(transport, logging.NewNop(), delivery.WithProgressInterval(time.Hour))
	media := watermarkedOutput(t)

	if err := adapter.DeliverVideo(context.Background(), delivery.VideoDelivery{ChatID: "42", Name: "clip", Media: media}); err != nil {
		t.Fatalf("DeliverVideo: %v", err)
	}
	if len(transport.edits) != 1 {
		t.Fatalf("expected a single throttled edit, got %d: %v", len(transport.edits), transport.edits)
	}
	if !strings.Contains(transport.edits[0], "10.0%") {
		t.Fatalf("unexpected progress text %q", transport.edits[0])
	}
}

func TestDeliverDocument(t *testing.T) {
	transport := &fakeTransport{}
	var removed []string
	adapter := delivery.New(transport, logging.NewNop(), delivery.WithRemove(func(path string) error {
		removed = append(removed, path)
		return nil
	}))

	err := adapter.DeliverDocument(context.Background(), delivery.DocumentDelivery{
		ChatID: "42", Name: "notes.pdf", Path: "/tmp/notes.pdf", Caption: "Notes",
	})
	if err != nil {
		t.Fatalf("DeliverDocument: %v", err)
	}
	if diff := cmp.Diff([]string{"text", "document", "delete"}, transport.calls); diff != "" {
		t.Fatalf("call order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/tmp/notes.pdf"}, removed); diff != "" {
		t.Fatalf("removed mismatch (-want +got):\n%s", diff)
	}
}

func TestDeliverDocumentFailureKeepsFile(t *testing.T) {
	transport := &fakeTransport{docErr: errors.New("413")}
	var removed []string
	adapter := delivery.New(transport, logging.NewNop(), delivery.WithRemove(func(path string) error {
		removed = append(removed, path)
		return nil
	}))

	err := adapter.DeliverDocument(context.Background(), delivery.DocumentDelivery{ChatID: "42", Name: "n", Path: "/tmp/n.pdf"})
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if len(removed) != 0 {
		t.Fatalf("file removed after failed upload: %v", removed)
	}
}

func TestReportFailure(t *testing.T) {
	transport := &fakeTransport{}
	adapter := delivery.New(transport, logging.NewNop())
	cause := services.Wrap(services.ErrDecryptionIncomplete, "decrypt", "decrypt streams", "audio missing", nil)

	if err := adapter.ReportFailure(context.Background(), "42", "clip", cause); err != nil {
		t.Fatalf("ReportFailure: %v", err)
	}
	if len(transport.texts) != 1 || !strings.Contains(transport.texts[0], "decryption_incomplete") {
		t.Fatalf("unexpected failure text %v", transport.texts)
	}
	if err := adapter.ReportFailure(context.Background(), "42", "clip", nil); err != nil {
		t.Fatalf("nil cause: %v", err)
	}
	if len(transport.texts) != 1 {
		t.Fatalf("nil cause must not send")
	}
}

func TestProgressText(t *testing.T) {
	got := delivery.ProgressText("Uploading", 512, 1024)
	if !strings.Contains(got, "[●●●●●○○○○○] 50.0%") || !strings.Contains(got, "512.00 B / 1.00 KB") {
		t.Fatalf("unexpected progress text %q", got)
	}
	if got := delivery.ProgressText("Uploading", 2048, 0); !strings.Contains(got, "2.00 KB") {
		t.Fatalf("unknown total text %q", got)
	}
}
