package imageload

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	_ "image/gif"  // register gif decoder
	_ "image/jpeg" // register jpeg decoder
	_ "image/png"  // register png decoder

	_ "golang.org/x/image/bmp"  // register bmp decoder
	_ "golang.org/x/image/webp" // register webp decoder
)

// Options controls one load request. Options participate in the cache
// key, so two loads with different options are distinct requests.
type Options struct {
	// Quality is the requested tier, or QualityAdaptive to derive it
	// from network conditions.
	Quality QualityTier `json:"quality"`
	// ProbeFormats enables sibling-format probing (webp next to jpg).
	ProbeFormats bool `json:"probeFormats"`
	// Width overrides the tier's target width when positive.
	Width int `json:"width"`
}

// Result describes one successfully loaded image.
type Result struct {
	URL       string        `json:"url"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Format    string        `json:"format"`
	LoadTime  time.Duration `json:"loadTime"`
	FromCache bool          `json:"fromCache"`
}

// Loader resolves image URLs with format probing, adaptive quality,
// timeout plus exponential-backoff retries, request coalescing and a
// bounded result cache.
type Loader struct {
	cfg       Config
	logger    *zap.Logger
	client    *http.Client
	estimator NetworkEstimator

	sf    singleflight.Group
	cache *resultCache

	probeMu sync.Mutex
	probed  map[string]bool // sibling URL -> exists from a previous HEAD
}

// Option customizes loader construction.
type Option func(*Loader)

// WithHTTPClient replaces the HTTP client. Tests inject a client bound
// to an httptest server.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithEstimator injects a live network estimator.
func WithEstimator(est NetworkEstimator) Option {
	return func(l *Loader) { l.estimator = est }
}

// NewLoader creates an image loader.
func NewLoader(cfg Config, logger *zap.Logger, opts ...Option) *Loader {
	l := &Loader{
		cfg:       cfg,
		logger:    logger,
		client:    &http.Client{},
		estimator: StaticEstimator{Type: cfg.EffectiveType, Save: cfg.DataSaver},
		cache: newResultCache(
			max(1, cfg.CacheMaxEntries),
			time.Duration(cfg.CacheTTLSeconds)*time.Second,
		),
		probed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// cacheKey identifies a request by URL plus its canonical options.
func cacheKey(rawURL string, opts Options) string {
	return fmt.Sprintf("%s|q=%s|p=%t|w=%d", rawURL, opts.Quality, opts.ProbeFormats, opts.Width)
}

// LoadImage resolves the URL to a loaded image. Identical concurrent
// requests share one in-flight load; finished loads are served from the
// result cache until their TTL lapses.
func (l *Loader) LoadImage(ctx context.Context, rawURL string, opts Options) (Result, error) {
	key := cacheKey(rawURL, opts)

	if r, ok := l.cache.get(key); ok {
		r.FromCache = true
		return r, nil
	}

	v, err, _ := l.sf.Do(key, func() (any, error) {
		if r, ok := l.cache.get(key); ok {
			r.FromCache = true
			return r, nil
		}

		resolved := l.resolveURL(ctx, rawURL, opts)
		r, err := l.loadWithRetry(ctx, resolved)
		if err != nil {
			return Result{}, err
		}
		l.cache.put(key, r)
		return r, nil
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// PreloadImages loads up to the configured count of the given URLs
// eagerly. A single failure is logged and does not fail the batch; the
// successful results are returned.
func (l *Loader) PreloadImages(ctx context.Context, urls []string, opts Options) []Result {
	limit := l.cfg.PreloadCount
	if limit <= 0 {
		limit = 5
	}
	if len(urls) > limit {
		urls = urls[:limit]
	}

	results := make([]Result, 0, len(urls))
	for _, u := range urls {
		r, err := l.LoadImage(ctx, u, opts)
		if err != nil {
			l.logger.Warn("Preload failed", zap.String("url", u), zap.Error(err))
			continue
		}
		results = append(results, r)
	}
	return results
}

// CacheLen reports the current result cache occupancy.
func (l *Loader) CacheLen() int {
	return l.cache.len()
}

// resolveURL applies format probing and quality parameters.
func (l *Loader) resolveURL(ctx context.Context, rawURL string, opts Options) string {
	resolved := rawURL
	if opts.ProbeFormats {
		resolved = l.probeBestFormat(ctx, resolved)
	}

	tier := opts.Quality
	if tier == QualityAdaptive {
		tier = resolveTier(l.estimator)
	}

	width, quality := opts.Width, 0
	switch tier {
	case QualityLow:
		if width <= 0 {
			width = l.cfg.LowWidth
		}
		quality = l.cfg.LowQuality
	case QualityMedium:
		if width <= 0 {
			width = l.cfg.MediumWidth
		}
		quality = l.cfg.MediumQuality
	case QualityHigh:
		if width <= 0 {
			width = l.cfg.HighWidth
		}
		quality = l.cfg.HighQuality
	default:
		return resolved
	}

	u, err := url.Parse(resolved)
	if err != nil {
		return resolved
	}
	q := u.Query()
	if width > 0 {
		q.Set("w", strconv.Itoa(width))
	}
	if quality > 0 {
		q.Set("q", strconv.Itoa(quality))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// probeBestFormat checks, per preference order, whether a sibling asset
// in a more modern format exists at the same base path, and returns the
// first hit. Probe outcomes are remembered per URL.
func (l *Loader) probeBestFormat(ctx context.Context, rawURL string) string {
	ext := strings.ToLower(pathExt(rawURL))
	for _, format := range strings.Split(l.cfg.PreferredFormats, ",") {
		format = strings.TrimSpace(format)
		if format == "" || "."+format == ext {
			break // already the preferred format
		}
		sibling := strings.TrimSuffix(rawURL, pathExt(rawURL)) + "." + format
		if l.siblingExists(ctx, sibling) {
			return sibling
		}
	}
	return rawURL
}

func (l *Loader) siblingExists(ctx context.Context, sibling string) bool {
	l.probeMu.Lock()
	exists, known := l.probed[sibling]
	l.probeMu.Unlock()
	if known {
		return exists
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, sibling, nil)
	if err != nil {
		return false
	}
	resp, err := l.client.Do(req)
	exists = err == nil && resp.StatusCode == http.StatusOK
	if resp != nil {
		resp.Body.Close()
	}

	l.probeMu.Lock()
	l.probed[sibling] = exists
	l.probeMu.Unlock()
	return exists
}

// loadWithRetry runs the attempt loop: RetryCount+1 attempts with the
// base delay doubling between them. The last error is surfaced once the
// budget is exhausted.
func (l *Loader) loadWithRetry(ctx context.Context, resolved string) (Result, error) {
	attempts := l.cfg.RetryCount + 1
	if attempts < 1 {
		attempts = 1
	}
	delay := time.Duration(l.cfg.RetryBaseDelayMillis) * time.Millisecond
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		r, err := l.fetchOnce(ctx, resolved)
		if err == nil {
			return r, nil
		}
		lastErr = err
		l.logger.Debug("Image load attempt failed",
			zap.String("url", resolved),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return Result{}, fmt.Errorf("image load failed after %d attempts: %w", attempts, lastErr)
}

// fetchOnce performs one bounded fetch and decodes the image header for
// dimensions and format. The per-attempt timeout doubles as the
// cancellation mechanism.
func (l *Loader) fetchOnce(ctx context.Context, resolved string) (Result, error) {
	timeout := time.Duration(l.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, resolved, nil)
	if err != nil {
		return Result{}, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, resolved)
	}

	cfg, format, err := image.DecodeConfig(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode %s: %w", resolved, err)
	}

	return Result{
		URL:      resolved,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Format:   format,
		LoadTime: time.Since(start),
	}, nil
}

// pathExt returns the extension of a URL path, query stripped.
func pathExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	path := rawURL
	if err == nil {
		path = u.Path
	}
	if i := strings.LastIndexByte(path, '.'); i >= 0 && !strings.ContainsRune(path[i:], '/') {
		return path[i:]
	}
	return ""
}
