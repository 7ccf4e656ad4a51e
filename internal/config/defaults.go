package config

const (
	defaultLogDir             = "~/.local/share/reel/logs"
	defaultDownloaderBinary   = "yt-dlp"
	defaultMergeFormat        = "mkv"
	defaultRateLimit          = 900000
	defaultRetries            = 10
	defaultSyncRequestTimeout = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: ".",
			LogDir:     defaultLogDir,
		},
		Downloader: Downloader{
			Binary:           defaultDownloaderBinary,
			MergeFormat:      defaultMergeFormat,
			RateLimit:        defaultRateLimit,
			Retries:          defaultRetries,
			WriteThumbnails:  true,
			EmbedMetadata:    true,
			WriteInfoJSON:    true,
			WriteDescription: true,
			WriteAnnotations: true,
		},
		Transcoder: Transcoder{
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
		},
		Sync: Sync{
			RSSEnabled:     true,
			RequestTimeout: defaultSyncRequestTimeout,
		},
		Policy: Policy{
			FailureSkip: true,
			AutoSleep:   true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
