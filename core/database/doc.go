// Package database handles the connection backing the persistent cache tier.
//
// It provides a wrapper around GORM to configure either an embedded SQLite
// file (the default, suitable for a single-machine viewer) or a MySQL server
// for shared deployments.
//
// # Connect
//
// The Connect function establishes a connection based on the configured
// driver. The persistent tier is best-effort: a failed connection degrades
// the cache to memory-only operation rather than failing startup.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Warn("Persistent cache tier unavailable", zap.Error(err))
//	}
package database
