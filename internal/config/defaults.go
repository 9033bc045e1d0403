package config

const (
	defaultConfigPath          = "~/.config/mpdgrab/config.toml"
	defaultWorkDir             = "~/.local/share/mpdgrab/work"
	defaultOutputDir           = "~/.local/share/mpdgrab/output"
	defaultLogDir              = "~/.local/share/mpdgrab/logs"
	defaultYTDLP               = "yt-dlp"
	defaultMp4Decrypt          = "mp4decrypt"
	defaultFFmpeg              = "ffmpeg"
	defaultFFprobe             = "ffprobe"
	defaultAria2c              = "aria2c"
	defaultQuality             = "720"
	defaultConcurrentFragments = 4
	defaultRetries             = 25
	defaultFragmentRetries     = 25
	defaultAria2cArgs          = "aria2c: -x 16 -j 32"
	defaultKeysTimeoutSeconds  = 15
	defaultRunnerWorkers       = 4
	defaultThumbnailOffset     = "00:00:10"
	defaultWatermarkFont       = "vidwater.ttf"
	defaultWatermarkColor      = "white"
	defaultWatermarkAlpha      = 0.3
	defaultVideoWidth          = 1280
	defaultVideoHeight         = 720
	defaultTelegramAPIBaseURL  = "https://api.telegram.org"
	defaultUploadTimeout       = 3600
	defaultProgressIntervalMS  = 3000
	defaultNtfyTimeout         = 10
	defaultPDFTimeoutSeconds   = 30
	defaultPDFWorkers          = 4
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"

	// FragileRetryPolicy names the provider class whose downloads fail intermittently
	// and are retried with a fixed backoff.
	FragileRetryPolicy = "fragile"
)

// DefaultRetryPolicies returns the retry table used when the config file defines none.
func DefaultRetryPolicies() []RetryPolicy {
	return []RetryPolicy{
		{
			Name:           FragileRetryPolicy,
			Hosts:          []string{"visionias"},
			MaxRetries:     10,
			BackoffSeconds: 5,
		},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Tools: Tools{
			YTDLP:      defaultYTDLP,
			Mp4Decrypt: defaultMp4Decrypt,
			FFmpeg:     defaultFFmpeg,
			FFprobe:    defaultFFprobe,
			Aria2c:     defaultAria2c,
		},
		Download: Download{
			Quality:             defaultQuality,
			ConcurrentFragments: defaultConcurrentFragments,
			Retries:             defaultRetries,
			FragmentRetries:     defaultFragmentRetries,
			Aria2cArgs:          defaultAria2cArgs,
		},
		Keys: Keys{
			TimeoutSeconds: defaultKeysTimeoutSeconds,
		},
		Runner: Runner{
			Workers: defaultRunnerWorkers,
		},
		PostProcess: PostProcess{
			ThumbnailOffset: defaultThumbnailOffset,
			WatermarkFont:   defaultWatermarkFont,
			WatermarkColor:  defaultWatermarkColor,
			WatermarkAlpha:  defaultWatermarkAlpha,
			DefaultWidth:    defaultVideoWidth,
			DefaultHeight:   defaultVideoHeight,
		},
		Telegram: Telegram{
			APIBaseURL:            defaultTelegramAPIBaseURL,
			UploadTimeoutSeconds:  defaultUploadTimeout,
			ProgressIntervalMilli: defaultProgressIntervalMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		PDF: PDF{
			TimeoutSeconds: defaultPDFTimeoutSeconds,
			Workers:        defaultPDFWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
