package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mpdgrab/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The directories exist on return and zero-valued delays keep retries fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Download.RetryPolicies = config.DefaultRetryPolicies()
	for i := range cfgVal.Download.RetryPolicies {
		cfgVal.Download.RetryPolicies[i].BackoffSeconds = 0
	}
	cfgVal.Telegram.ChatID = "1000"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithKeysAPI sets the key-resolution endpoint on the test config.
func WithKeysAPI(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Keys.APIURL = url
	}
}

// WithTelegram points the Telegram transport at a test server.
func WithTelegram(baseURL, token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Telegram.APIBaseURL = baseURL
		b.cfg.Telegram.BotToken = token
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default external tools are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp", "mp4decrypt", "ffmpeg", "ffprobe", "aria2c"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
