package server

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API. Empty disables auth.
	ApiKey string `mapstructure:"api_key" default:""`
	// ServeAssets controls whether derived image assets are served statically.
	ServeAssets bool `mapstructure:"serve_assets" default:"true"`
	// Source selects where books are read from: "file" for the pipeline
	// output directory, "bucket" for a published object-storage bucket.
	Source string `mapstructure:"source" default:"file"`
}
