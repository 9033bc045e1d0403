package pdf_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"mpdgrab/internal/logging"
	"mpdgrab/internal/pdf"
	"mpdgrab/internal/services"
)

func TestFetchReplacesExistingFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.7 fresh"))
	}))
	defer server.Close()

	dir := t.TempDir()
	existing := filepath.Join(dir, "notes.pdf")
	if err := os.WriteFile(existing, []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	fetcher := pdf.New(dir, logging.NewNop())
	path, size, err := fetcher.Fetch(context.Background(), pdf.Item{URL: server.URL + "/x", Name: "notes"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if path != existing {
		t.Fatalf("path = %q, want %q", path, existing)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "%PDF-1.7 fresh" || size != int64(len(data)) {
		t.Fatalf("unexpected content %q (size %d)", data, size)
	}
}

func TestFetchRejectsNon200(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusNotFound, http.StatusInternalServerError} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		dir := t.TempDir()
		_, _, err := pdf.New(dir, logging.NewNop()).Fetch(context.Background(), pdf.Item{URL: server.URL, Name: "a"})
		server.Close()
		if !errors.Is(err, services.ErrResolution) {
			t.Fatalf("status %d: expected ErrResolution, got %v", status, err)
		}
		if _, statErr := os.Stat(filepath.Join(dir, "a.pdf")); !errors.Is(statErr, os.ErrNotExist) {
			t.Fatalf("status %d: no file expected", status)
		}
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	fetcher := pdf.New(t.TempDir(), logging.NewNop(), pdf.WithTimeout(50*time.Millisecond))
	_, _, err := fetcher.Fetch(context.Background(), pdf.Item{URL: server.URL, Name: "slow"})
	if !errors.Is(err, services.ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
}

func TestFetchAllKeepsOrderAndIsolatesFailures(t *testing.T) {
	var inflight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		if r.URL.Path == "/bad" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	items := []pdf.Item{
		{URL: server.URL + "/one", Name: "one"},
		{URL: server.URL + "/bad", Name: "bad"},
		{URL: server.URL + "/three", Name: "three.pdf"},
		{URL: server.URL + "/four", Name: "four"},
	}
	outcomes := pdf.New(t.TempDir(), logging.NewNop(), pdf.WithWorkers(2)).FetchAll(context.Background(), items)
	if len(outcomes) != len(items) {
		t.Fatalf("expected %d outcomes, got %d", len(items), len(outcomes))
	}
	for i, outcome := range outcomes {
		if outcome.Item != items[i] {
			t.Fatalf("outcome %d out of order: %+v", i, outcome.Item)
		}
	}
	if outcomes[1].Err == nil {
		t.Fatal("expected failure for /bad")
	}
	for _, i := range []int{0, 2, 3} {
		if outcomes[i].Err != nil {
			t.Fatalf("item %d: %v", i, outcomes[i].Err)
		}
	}
	if filepath.Base(outcomes[2].Path) != "three.pdf" {
		t.Fatalf("unexpected name %s", outcomes[2].Path)
	}
	if peak.Load() > 2 {
		t.Fatalf("worker limit exceeded: %d", peak.Load())
	}
}

func TestFetchAllKeepsCollidingNamesApart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	dir := t.TempDir()
	items := []pdf.Item{
		{URL: server.URL + "/a", Name: "notes"},
		{URL: server.URL + "/b", Name: "notes.pdf"},
		{URL: server.URL + "/c", Name: "Notes"},
	}
	outcomes := pdf.New(dir, logging.NewNop()).FetchAll(context.Background(), items)

	want := []struct{ name, body string }{
		{"notes.pdf", "/a"},
		{"notes (2).pdf", "/b"},
		{"Notes (3).pdf", "/c"},
	}
	for i, w := range want {
		if outcomes[i].Err != nil {
			t.Fatalf("item %d: %v", i, outcomes[i].Err)
		}
		if got := filepath.Base(outcomes[i].Path); got != w.name {
			t.Fatalf("item %d name = %q, want %q", i, got, w.name)
		}
		data, err := os.ReadFile(outcomes[i].Path)
		if err != nil {
			t.Fatalf("read %s: %v", outcomes[i].Path, err)
		}
		if string(data) != w.body {
			t.Fatalf("item %d body = %q, want %q", i, data, w.body)
		}
	}
}

func TestItemFileName(t *testing.T) {
	cases := map[pdf.Item]string{
		{Name: "Chapter 1: Intro"}:                       "Chapter 1- Intro.pdf",
		{Name: "report.PDF"}:                             "report.PDF",
		{URL: "https://cdn.example/files/a.pdf?sig=abc"}: "a.pdf",
		{}: "document.pdf",
	}
	for item, want := range cases {
		if got := item.FileName(); got != want {
			t.Fatalf("FileName(%+v) = %q, want %q", item, got, want)
		}
	}
}
