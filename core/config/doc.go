// Package config provides configuration management for Baby Book.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file loaded through godotenv.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings,
// divided into subsections:
//   - Server: HTTP server settings (port, API key, static asset serving)
//   - Log: Logging level and format
//   - Database: key-value store backing the persistent cache tier
//   - Storage: S3/MinIO credentials and bucket settings for publishing
//   - Pipeline: book root, output directory, target widths, concurrency
//   - Cache: memory budget, TTLs, blob tier threshold
//   - Loader: image loader retry, timeout and quality policy
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
