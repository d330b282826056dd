package pipeline

import (
	"strconv"
	"strings"
)

// Config holds configuration for the asset pipeline.
type Config struct {
	// Root is the directory scanned for book folders.
	Root string `mapstructure:"root" default:"books"`
	// Out is the directory derived assets and the manifest are written to.
	Out string `mapstructure:"out" default:"public"`
	// TargetWidths is the comma-separated list of responsive widths.
	TargetWidths string `mapstructure:"target_widths" default:"320,640,1024,1920"`
	// Quality is the lossy encode quality for full-size variants (1-100).
	Quality int `mapstructure:"quality" default:"80"`
	// LQIPWidth is the pixel width of the embedded placeholder.
	LQIPWidth int `mapstructure:"lqip_width" default:"24"`
	// LQIPQuality is the encode quality of the placeholder.
	LQIPQuality int `mapstructure:"lqip_quality" default:"30"`
	// Concurrency bounds how many images are processed at once.
	Concurrency int `mapstructure:"concurrency" default:"4"`
	// WatchDebounceMillis is the quiet period before a watch-mode rescan.
	WatchDebounceMillis int `mapstructure:"watch_debounce_millis" default:"500"`
}

// Widths parses TargetWidths into a sorted-as-written slice of ints,
// skipping anything unparsable.
func (c Config) Widths() []int {
	parts := strings.Split(c.TargetWidths, ",")
	widths := make([]int, 0, len(parts))
	for _, p := range parts {
		w, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || w <= 0 {
			continue
		}
		widths = append(widths, w)
	}
	return widths
}
