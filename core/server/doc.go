// Package server holds the HTTP server configuration.
//
// The serve command handles the actual server startup; this package only
// defines the configuration structure embedded by core/config: the listen
// port, the optional API key, and whether derived assets are served
// statically alongside the books API.
package server
