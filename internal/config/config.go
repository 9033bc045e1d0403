package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working, output, and log directories.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Tools names the external binaries the pipeline drives.
type Tools struct {
	YTDLP      string `toml:"yt_dlp"`
	Mp4Decrypt string `toml:"mp4decrypt"`
	FFmpeg     string `toml:"ffmpeg"`
	FFprobe    string `toml:"ffprobe"`
	Aria2c     string `toml:"aria2c"`
}

// RetryPolicy binds a source classification to a retry budget.
type RetryPolicy struct {
	Name           string   `toml:"name"`
	Hosts          []string `toml:"hosts"`
	MaxRetries     int      `toml:"max_retries"`
	BackoffSeconds int      `toml:"backoff_seconds"`
}

// Download contains segmented downloader settings.
type Download struct {
	Quality             string        `toml:"quality"`
	ConcurrentFragments int           `toml:"concurrent_fragments"`
	Retries             int           `toml:"retries"`
	FragmentRetries     int           `toml:"fragment_retries"`
	Aria2cArgs          string        `toml:"aria2c_args"`
	RetryPolicies       []RetryPolicy `toml:"retry_policies"`
}

// Keys contains key-resolution API settings.
type Keys struct {
	APIURL         string `toml:"api_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Runner contains command runner settings.
type Runner struct {
	Workers int `toml:"workers"`
}

// PostProcess contains thumbnail and watermark settings.
type PostProcess struct {
	ThumbnailOffset string  `toml:"thumbnail_offset"`
	WatermarkFont   string  `toml:"watermark_font"`
	WatermarkColor  string  `toml:"watermark_color"`
	WatermarkAlpha  float64 `toml:"watermark_alpha"`
	DefaultWidth    int     `toml:"default_width"`
	DefaultHeight   int     `toml:"default_height"`
}

// Telegram contains Bot API delivery settings.
type Telegram struct {
	BotToken              string `toml:"bot_token"`
	APIBaseURL            string `toml:"api_base_url"`
	ChatID                string `toml:"chat_id"`
	UploadTimeoutSeconds  int    `toml:"upload_timeout_seconds"`
	ProgressIntervalMilli int    `toml:"progress_interval_ms"`
}

// Notifications contains configuration for ntfy operator notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// PDF contains bulk document download settings.
type PDF struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	Workers        int `toml:"workers"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mpdgrab.
//
// Configuration sections by subsystem:
//   - Paths: per-job work root, final output directory, logs
//   - Tools: yt-dlp, mp4decrypt, ffmpeg, ffprobe, aria2c binaries
//   - Download: format ceiling, fragment concurrency, retry policy table
//   - Keys: key-resolution API endpoint and timeout
//   - Runner: batch worker pool size
//   - PostProcess: thumbnail offset and watermark styling
//   - Telegram: delivery transport
//   - Notifications: ntfy operator alerts
//   - PDF: bulk document download
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	Download      Download      `toml:"download"`
	Keys          Keys          `toml:"keys"`
	Runner        Runner        `toml:"runner"`
	PostProcess   PostProcess   `toml:"postprocess"`
	Telegram      Telegram      `toml:"telegram"`
	Notifications Notifications `toml:"notifications"`
	PDF           PDF           `toml:"pdf"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mpdgrab.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the work, output, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// KeysTimeout returns the key-resolution HTTP timeout.
func (c *Config) KeysTimeout() time.Duration {
	return time.Duration(c.Keys.TimeoutSeconds) * time.Second
}

// UploadTimeout returns the Telegram upload timeout.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Telegram.UploadTimeoutSeconds) * time.Second
}

// ProgressInterval returns the minimum spacing between progress message edits.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Telegram.ProgressIntervalMilli) * time.Millisecond
}

// PDFTimeout returns the per-document download timeout.
func (c *Config) PDFTimeout() time.Duration {
	return time.Duration(c.PDF.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
