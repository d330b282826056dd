package books

import (
	"context"
	"sort"
	"strings"
	"time"

	"babybook/core/cache"
	"babybook/core/imageload"
	"babybook/core/manifest"

	"go.uber.org/zap"
)

const (
	manifestCacheKey = "books:manifest"
	bookCachePrefix  = "books:book:"

	defaultManifestTTL = time.Minute
	defaultBookTTL     = 5 * time.Minute
	defaultPageLimit   = 20
)

// Filters narrows a book listing.
type Filters struct {
	// Query is matched case-insensitively against title, description
	// and baby name.
	Query string
	// Tags keeps books sharing at least one of the given tags.
	Tags []string
	// ModifiedAfter/ModifiedBefore bound the lastModified timestamp.
	ModifiedAfter  time.Time
	ModifiedBefore time.Time
	// SortBy is one of title, lastModified, totalPages, createdAt.
	SortBy string
	// SortDesc flips the sort direction.
	SortDesc bool
}

// Pagination selects one page of a filtered listing.
type Pagination struct {
	Page  int
	Limit int
}

// BookList is one page of a filtered, sorted listing plus the total
// filtered count before pagination.
type BookList struct {
	Books []manifest.BookEntry `json:"books"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

// Service exposes typed read operations over the manifest, with a
// short-TTL manifest cache and a per-book cache on top of the tiered
// cache.
type Service struct {
	source    Source
	cache     *cache.Cache
	images    *imageload.Loader
	assetBase string
	logger    *zap.Logger

	manifestTTL time.Duration
	bookTTL     time.Duration
}

// NewService creates a books service. images warms page assets through
// the progressive loader; assetBase is the URL its relative asset paths
// resolve against.
func NewService(source Source, c *cache.Cache, images *imageload.Loader, assetBase string, logger *zap.Logger) *Service {
	return &Service{
		source:      source,
		cache:       c,
		images:      images,
		assetBase:   strings.TrimRight(assetBase, "/"),
		logger:      logger,
		manifestTTL: defaultManifestTTL,
		bookTTL:     defaultBookTTL,
	}
}

// LoadManifest returns the manifest, cached for its TTL window. force
// bypasses and refreshes the cache. Validation failures reject the
// document wholesale; the previous cached manifest is left untouched
// until its own expiry.
func (s *Service) LoadManifest(ctx context.Context, force bool) (*manifest.Manifest, error) {
	if force {
		s.cache.Delete(ctx, manifestCacheKey)
	}

	var m manifest.Manifest
	err := s.cache.GetOrLoad(ctx, manifestCacheKey, s.manifestTTL, &m,
		func(ctx context.Context) (any, error) {
			loaded, err := s.source.Load(ctx)
			if err != nil {
				return nil, err
			}
			return loaded, nil
		})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetAllBooks filters, sorts and paginates the manifest's book entries.
func (s *Service) GetAllBooks(ctx context.Context, filters Filters, page Pagination) (*BookList, error) {
	m, err := s.LoadManifest(ctx, false)
	if err != nil {
		return nil, err
	}

	filtered := make([]manifest.BookEntry, 0, len(m.Books))
	for _, b := range m.Books {
		if matchesFilters(b.BookEntry, filters) {
			filtered = append(filtered, b.BookEntry)
		}
	}

	sortEntries(filtered, filters.SortBy, filters.SortDesc)

	total := len(filtered)
	if page.Limit <= 0 {
		page.Limit = defaultPageLimit
	}
	if page.Page <= 0 {
		page.Page = 1
	}
	start := (page.Page - 1) * page.Limit
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}

	return &BookList{
		Books: filtered[start:end],
		Total: total,
		Page:  page.Page,
		Limit: page.Limit,
	}, nil
}

// GetBookByID resolves one book, served from the per-book cache when
// fresh. Unknown ids report ErrNotFound.
func (s *Service) GetBookByID(ctx context.Context, id string) (*manifest.Book, error) {
	var book manifest.Book
	ok, err := s.cache.Get(ctx, bookCachePrefix+id, &book)
	if err == nil && ok {
		return &book, nil
	}

	m, err := s.LoadManifest(ctx, false)
	if err != nil {
		return nil, err
	}

	for _, b := range m.Books {
		if b.ID == id {
			if err := s.cache.Set(ctx, bookCachePrefix+id, b, s.bookTTL); err != nil {
				s.logger.Warn("Failed to cache book", zap.String("id", id), zap.Error(err))
			}
			return &b, nil
		}
	}
	return nil, notFound("book", id)
}

// GetBookPages fetches a book's pages from the source. Pages are not
// part of the cached listing entries, so this is a separate fetch and
// its errors surface as-is.
func (s *Service) GetBookPages(ctx context.Context, id string) ([]manifest.Page, error) {
	return s.source.LoadPages(ctx, id)
}

// SearchBooks is a convenience wrapper over GetAllBooks for free-text
// queries.
func (s *Service) SearchBooks(ctx context.Context, query string, page Pagination) (*BookList, error) {
	return s.GetAllBooks(ctx, Filters{Query: query}, page)
}

// PreloadBook warms the loader's result cache with a book's page
// images, cover first, up to the loader's preload budget. Unknown ids
// report ErrNotFound; individual image failures are logged by the
// loader and skipped.
func (s *Service) PreloadBook(ctx context.Context, id string) ([]imageload.Result, error) {
	book, err := s.GetBookByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pages, err := s.GetBookPages(ctx, id)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(pages)+1)
	seen := make(map[string]struct{}, len(pages)+1)
	add := func(src string) {
		if src == "" {
			return
		}
		u := s.assetURL(src)
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	add(book.CoverImage)
	for _, p := range pages {
		add(p.Image.Src)
	}

	opts := imageload.Options{Quality: imageload.QualityAdaptive, ProbeFormats: true}
	return s.images.PreloadImages(ctx, urls, opts), nil
}

// assetURL resolves a manifest asset path against the configured base.
// Absolute URLs pass through untouched.
func (s *Service) assetURL(src string) string {
	if strings.Contains(src, "://") {
		return src
	}
	return s.assetBase + "/" + strings.TrimLeft(src, "/")
}

// GetAllTags returns the sorted union of every book's tags.
func (s *Service) GetAllTags(ctx context.Context) ([]string, error) {
	m, err := s.LoadManifest(ctx, false)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, b := range m.Books {
		for _, t := range b.Tags {
			seen[t] = struct{}{}
		}
	}

	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags, nil
}

func matchesFilters(b manifest.BookEntry, f Filters) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		haystack := strings.ToLower(b.Title + "\x00" + b.Description + "\x00" + b.Metadata.BabyName)
		if !strings.Contains(haystack, q) {
			return false
		}
	}

	if len(f.Tags) > 0 {
		have := make(map[string]struct{}, len(b.Tags))
		for _, t := range b.Tags {
			have[strings.ToLower(t)] = struct{}{}
		}
		hit := false
		for _, t := range f.Tags {
			if _, ok := have[strings.ToLower(t)]; ok {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}

	if !f.ModifiedAfter.IsZero() && b.LastModified.Before(f.ModifiedAfter) {
		return false
	}
	if !f.ModifiedBefore.IsZero() && b.LastModified.After(f.ModifiedBefore) {
		return false
	}
	return true
}

// sortEntries orders entries by the selected key, ties broken by id so
// the order is total.
func sortEntries(entries []manifest.BookEntry, key string, desc bool) {
	less := func(a, b manifest.BookEntry) bool {
		switch key {
		case "lastModified":
			if !a.LastModified.Equal(b.LastModified) {
				return a.LastModified.Before(b.LastModified)
			}
		case "totalPages":
			if a.TotalPages != b.TotalPages {
				return a.TotalPages < b.TotalPages
			}
		case "createdAt":
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		default: // title
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		}
		return a.ID < b.ID
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if desc {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})
}
