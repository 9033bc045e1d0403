package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	envTelegramToken = "MPDGRAB_TELEGRAM_TOKEN"
	envKeysAPI       = "MPDGRAB_KEYS_API"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeDownload()
	c.normalizeKeys()
	c.normalizePostProcess()
	c.normalizeTelegram()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.YTDLP = orDefault(c.Tools.YTDLP, defaultYTDLP)
	c.Tools.Mp4Decrypt = orDefault(c.Tools.Mp4Decrypt, defaultMp4Decrypt)
	c.Tools.FFmpeg = orDefault(c.Tools.FFmpeg, defaultFFmpeg)
	c.Tools.FFprobe = orDefault(c.Tools.FFprobe, defaultFFprobe)
	c.Tools.Aria2c = orDefault(c.Tools.Aria2c, defaultAria2c)
}

func (c *Config) normalizeDownload() {
	c.Download.Quality = strings.TrimSuffix(orDefault(c.Download.Quality, defaultQuality), "p")
	c.Download.Aria2cArgs = orDefault(c.Download.Aria2cArgs, defaultAria2cArgs)
	if c.Download.ConcurrentFragments <= 0 {
		c.Download.ConcurrentFragments = defaultConcurrentFragments
	}
	if len(c.Download.RetryPolicies) == 0 {
		c.Download.RetryPolicies = DefaultRetryPolicies()
	}
	for i := range c.Download.RetryPolicies {
		policy := &c.Download.RetryPolicies[i]
		policy.Name = strings.TrimSpace(policy.Name)
		hosts := policy.Hosts[:0]
		for _, host := range policy.Hosts {
			if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
				hosts = append(hosts, host)
			}
		}
		policy.Hosts = hosts
	}
}

func (c *Config) normalizeKeys() {
	if strings.TrimSpace(c.Keys.APIURL) == "" {
		if value, ok := os.LookupEnv(envKeysAPI); ok {
			c.Keys.APIURL = value
		}
	}
	c.Keys.APIURL = strings.TrimSpace(c.Keys.APIURL)
	if c.Keys.TimeoutSeconds <= 0 {
		c.Keys.TimeoutSeconds = defaultKeysTimeoutSeconds
	}
}

func (c *Config) normalizePostProcess() {
	c.PostProcess.ThumbnailOffset = orDefault(c.PostProcess.ThumbnailOffset, defaultThumbnailOffset)
	c.PostProcess.WatermarkFont = orDefault(c.PostProcess.WatermarkFont, defaultWatermarkFont)
	c.PostProcess.WatermarkColor = orDefault(c.PostProcess.WatermarkColor, defaultWatermarkColor)
	if c.PostProcess.DefaultWidth <= 0 {
		c.PostProcess.DefaultWidth = defaultVideoWidth
	}
	if c.PostProcess.DefaultHeight <= 0 {
		c.PostProcess.DefaultHeight = defaultVideoHeight
	}
}

func (c *Config) normalizeTelegram() {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		if value, ok := os.LookupEnv(envTelegramToken); ok {
			c.Telegram.BotToken = value
		}
	}
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	c.Telegram.ChatID = strings.TrimSpace(c.Telegram.ChatID)
	c.Telegram.APIBaseURL = strings.TrimRight(orDefault(c.Telegram.APIBaseURL, defaultTelegramAPIBaseURL), "/")
	if c.Telegram.UploadTimeoutSeconds <= 0 {
		c.Telegram.UploadTimeoutSeconds = defaultUploadTimeout
	}
	if c.Telegram.ProgressIntervalMilli <= 0 {
		c.Telegram.ProgressIntervalMilli = defaultProgressIntervalMS
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(orDefault(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(orDefault(c.Logging.Level, defaultLogLevel))
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
