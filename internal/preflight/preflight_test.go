package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"mpdgrab/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckBinary(t *testing.T) {
	dir := t.TempDir()
	tool := filepath.Join(dir, "mp4decrypt")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	if r := CheckBinary("mp4decrypt", tool); !r.Passed || r.Detail != tool {
		t.Fatalf("expected pass with path detail, got %+v", r)
	}
	if r := CheckBinary("missing", filepath.Join(dir, "nope")); r.Passed {
		t.Fatal("expected failure for missing binary")
	}
	if r := CheckBinary("empty", ""); r.Passed {
		t.Fatal("expected failure for unconfigured binary")
	}
}

func TestCheckEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if r := CheckEndpoint(context.Background(), "Key API", srv.URL+"/keys?id=1"); !r.Passed {
		t.Fatalf("4xx should count as reachable: %s", r.Detail)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	if r := CheckEndpoint(context.Background(), "Key API", broken.URL); r.Passed {
		t.Fatal("expected failure for 5xx")
	}
	if r := CheckEndpoint(context.Background(), "Key API", "::not a url"); r.Passed {
		t.Fatal("expected failure for invalid url")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_DirectoriesAndOptionalTelegram(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Telegram.BotToken = ""

	results := RunAll(context.Background(), &cfg)
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"Work directory", "Output directory"} {
		if !byName[name].Passed {
			t.Errorf("check %q failed: %s", name, byName[name].Detail)
		}
	}
	telegram, ok := byName["Telegram"]
	if !ok || telegram.Passed || !telegram.Optional {
		t.Fatalf("expected optional failing Telegram check, got %+v", telegram)
	}
	if _, ok := byName["Key API"]; ok {
		t.Fatal("key API check should be skipped when unconfigured")
	}
}

func TestFailedIgnoresOptional(t *testing.T) {
	results := []Result{{Name: "a", Passed: true}, {Name: "b", Optional: true}}
	if Failed(results) {
		t.Fatal("optional failures must not fail the run")
	}
	results = append(results, Result{Name: "c"})
	if !Failed(results) {
		t.Fatal("required failure must fail the run")
	}
}
