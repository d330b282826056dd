package cache

// Config holds configuration for the tiered cache.
type Config struct {
	// MaxMemoryBytes is the byte budget of the in-memory tier.
	MaxMemoryBytes int64 `mapstructure:"max_memory_bytes" default:"10485760"`
	// DefaultTTLSeconds is the entry lifetime used when a caller passes
	// no explicit TTL.
	DefaultTTLSeconds int `mapstructure:"default_ttl_seconds" default:"300"`
	// BlobThresholdBytes is the serialized size above which an entry is
	// additionally written to the large-object tier.
	BlobThresholdBytes int64 `mapstructure:"blob_threshold_bytes" default:"1048576"`
	// SweepIntervalSeconds is the period of the background expiry sweep.
	// Zero disables the sweep.
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" default:"60"`
	// BlobDir is the directory of the filesystem blob tier. Empty
	// disables the blob tier unless an object-storage tier is injected.
	BlobDir string `mapstructure:"blob_dir" default:".babybook-cache/blobs"`
	// Persistent controls whether the key-value tier is used at all.
	Persistent bool `mapstructure:"persistent" default:"true"`
}
