package downloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mpdgrab/internal/config"
)

func TestPolicyTableClassify(t *testing.T) {
	table := NewPolicyTable([]config.RetryPolicy{
		{Name: "fragile", Hosts: []string{" VisionIAS "}, MaxRetries: 10, BackoffSeconds: 5},
		{Name: "empty", Hosts: []string{""}, MaxRetries: 3},
	})

	tests := []struct {
		source string
		want   string
	}{
		{"https://videos.visionias.in/a.m3u8", "fragile"},
		{"https://VISIONIAS.in/a", "fragile"},
		{"https://cdn.example/visionias.m3u8", DefaultPolicyName},
		{"not a url visionias", "fragile"},
		{"https://cdn.example/v", DefaultPolicyName},
	}
	for _, tt := range tests {
		if got := table.Classify(tt.source); got.Name != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.source, got.Name, tt.want)
		}
	}
	if p := table.Classify("https://visionias.in"); p.Backoff != 5*time.Second || p.MaxRetries != 10 {
		t.Fatalf("unexpected policy: %+v", p)
	}
}

func TestRetryBudget(t *testing.T) {
	budget := NewRetryBudget(2)
	if !budget.Take() || !budget.Take() {
		t.Fatal("expected two retries")
	}
	if budget.Take() {
		t.Fatal("expected budget to be exhausted")
	}
	if budget.Used() != 2 || budget.Remaining() != 0 {
		t.Fatalf("used=%d remaining=%d", budget.Used(), budget.Remaining())
	}
	if NewRetryBudget(-1).Take() {
		t.Fatal("negative budget must allow no retries")
	}
}

func TestLocateOutputProbeOrder(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "talk.v2.mkv")
	touch := func(p string) {
		t.Helper()
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	if path, variant, ok := locateOutput(name); ok || path != name || variant != VariantNone {
		t.Fatalf("expected nothing found, got %q %q %v", path, variant, ok)
	}

	touch(filepath.Join(dir, "talk.mp4.webm"))
	if path, variant, _ := locateOutput(name); variant != VariantMP4Webm || path != filepath.Join(dir, "talk.mp4.webm") {
		t.Fatalf("got %q %q", path, variant)
	}
	touch(filepath.Join(dir, "talk.mp4"))
	if _, variant, _ := locateOutput(name); variant != VariantMP4 {
		t.Fatalf("got %q", variant)
	}
	touch(filepath.Join(dir, "talk.mkv"))
	if _, variant, _ := locateOutput(name); variant != VariantMKV {
		t.Fatalf("got %q", variant)
	}
	touch(name + ".webm")
	if _, variant, _ := locateOutput(name); variant != VariantWebm {
		t.Fatalf("got %q", variant)
	}
	touch(name)
	if path, variant, _ := locateOutput(name); variant != VariantExact || path != name {
		t.Fatalf("got %q %q", path, variant)
	}
}

func TestBaseBeforeFirstDotKeepsDirectories(t *testing.T) {
	if got := baseBeforeFirstDot("/tmp/job.d/a.b.c"); got != "/tmp/job.d/a" {
		t.Fatalf("got %q", got)
	}
	if got := baseBeforeFirstDot("plain"); got != "plain" {
		t.Fatalf("got %q", got)
	}
}
