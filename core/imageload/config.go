package imageload

// Config holds configuration for the progressive image loader. The
// network-type mapping and retry constants are policy, not fixed
// behavior, so all of them live here.
type Config struct {
	// TimeoutSeconds bounds a single load attempt.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"10"`
	// RetryCount is how many times a failed load is retried.
	RetryCount int `mapstructure:"retry_count" default:"3"`
	// RetryBaseDelayMillis is the first backoff delay; it doubles per attempt.
	RetryBaseDelayMillis int `mapstructure:"retry_base_delay_millis" default:"200"`
	// PreloadCount bounds how many URLs a preload batch loads eagerly.
	PreloadCount int `mapstructure:"preload_count" default:"5"`
	// CacheMaxEntries bounds the loader's result cache.
	CacheMaxEntries int `mapstructure:"cache_max_entries" default:"100"`
	// CacheTTLSeconds is the result cache entry lifetime.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" default:"300"`
	// PreferredFormats is the probe order for format selection, most
	// modern first, comma separated.
	PreferredFormats string `mapstructure:"preferred_formats" default:"webp"`
	// AssetBaseURL is the base the preload operation resolves relative
	// asset paths against.
	AssetBaseURL string `mapstructure:"asset_base_url" default:"http://localhost:8080/assets"`

	// EffectiveType is the static network estimate used when no live
	// estimator is injected (slow-2g, 2g, 3g, 4g).
	EffectiveType string `mapstructure:"effective_type" default:"4g"`
	// DataSaver forces the low quality tier when set.
	DataSaver bool `mapstructure:"data_saver" default:"false"`

	// Per-tier target widths and encode qualities.
	LowWidth      int `mapstructure:"low_width" default:"480"`
	LowQuality    int `mapstructure:"low_quality" default:"40"`
	MediumWidth   int `mapstructure:"medium_width" default:"1024"`
	MediumQuality int `mapstructure:"medium_quality" default:"65"`
	HighWidth     int `mapstructure:"high_width" default:"1920"`
	HighQuality   int `mapstructure:"high_quality" default:"85"`
}
