package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateRunner(); err != nil {
		return err
	}
	if err := c.validatePostProcess(); err != nil {
		return err
	}
	if err := c.validatePDF(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDownload() error {
	if _, err := strconv.Atoi(c.Download.Quality); err != nil {
		return fmt.Errorf("download.quality must be a numeric height, got %q", c.Download.Quality)
	}
	if c.Download.Retries < 0 || c.Download.FragmentRetries < 0 {
		return errors.New("download.retries and download.fragment_retries must be >= 0")
	}
	seen := make(map[string]struct{}, len(c.Download.RetryPolicies))
	for _, policy := range c.Download.RetryPolicies {
		if policy.Name == "" {
			return errors.New("download.retry_policies entries require a name")
		}
		if _, dup := seen[policy.Name]; dup {
			return fmt.Errorf("download.retry_policies: duplicate policy %q", policy.Name)
		}
		seen[policy.Name] = struct{}{}
		if len(policy.Hosts) == 0 {
			return fmt.Errorf("download.retry_policies.%s: at least one host is required", policy.Name)
		}
		if policy.MaxRetries < 0 || policy.MaxRetries > 10 {
			return fmt.Errorf("download.retry_policies.%s: max_retries must be between 0 and 10", policy.Name)
		}
		if policy.BackoffSeconds < 0 {
			return fmt.Errorf("download.retry_policies.%s: backoff_seconds must be >= 0", policy.Name)
		}
	}
	return nil
}

func (c *Config) validateRunner() error {
	if c.Runner.Workers <= 0 {
		return errors.New("runner.workers must be positive")
	}
	return nil
}

func (c *Config) validatePostProcess() error {
	if c.PostProcess.WatermarkAlpha < 0 || c.PostProcess.WatermarkAlpha > 1 {
		return errors.New("postprocess.watermark_alpha must be between 0 and 1")
	}
	return nil
}

func (c *Config) validatePDF() error {
	if c.PDF.Workers <= 0 {
		return errors.New("pdf.workers must be positive")
	}
	if c.PDF.TimeoutSeconds <= 0 {
		return errors.New("pdf.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
