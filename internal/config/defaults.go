package config

const (
	defaultLogDir           = "~/.local/share/preziup/logs"
	defaultLanguage         = "@none"
	defaultErrorPolicy      = "continue"
	defaultMintBase         = "https://example.org/uuid/"
	defaultAttributionLabel = "Attribution"
	defaultFetchTimeout     = 30
	defaultUserAgent        = "preziup/dev"
	defaultFetchMaxBytes    = 64 << 20
	defaultCacheTTLHours    = 24 * 7
	defaultOutputFormat     = "json"
	defaultOutputIndent     = 2
	defaultBatchWorkers     = 4
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 14
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir(),
			LogDir:   defaultLogDir,
		},
		Upgrade: Upgrade{
			DefaultLanguage:  defaultLanguage,
			ErrorPolicy:      defaultErrorPolicy,
			MintBase:         defaultMintBase,
			AttributionLabel: defaultAttributionLabel,
		},
		Fetch: Fetch{
			TimeoutSeconds: defaultFetchTimeout,
			UserAgent:      defaultUserAgent,
			MaxBytes:       defaultFetchMaxBytes,
		},
		Cache: Cache{
			Enabled:  false,
			TTLHours: defaultCacheTTLHours,
		},
		Output: Output{
			Format: defaultOutputFormat,
			Indent: defaultOutputIndent,
		},
		Batch: Batch{
			Workers: defaultBatchWorkers,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
