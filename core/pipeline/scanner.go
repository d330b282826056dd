package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"babybook/core/manifest"
	"babybook/core/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pipeline scans a root directory of book folders and produces the
// manifest plus derived image assets.
type Pipeline struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a pipeline.
func New(cfg Config, logger *zap.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logger}
}

// bookFolder is one discovered book candidate before processing.
type bookFolder struct {
	dir    string // absolute folder path
	name   string // folder base name
	slug   string // disambiguated id
	meta   BookMetadata
	images []string // ordered image file names
}

// Run executes one full scan: discover book folders, process their
// images, and write the manifest atomically. A single book's or image's
// failure is logged and skipped, never fatal to the run.
func (p *Pipeline) Run(ctx context.Context) (*manifest.Manifest, error) {
	if err := p.ensureRoot(); err != nil {
		return nil, err
	}

	folders, err := p.discoverBooks()
	if err != nil {
		return nil, err
	}

	books := make([]manifest.Book, 0, len(folders))
	for _, folder := range folders {
		book, err := p.processBook(ctx, folder)
		if err != nil {
			p.logger.Warn("Skipping book",
				zap.String("folder", folder.name), zap.Error(err))
			continue
		}
		if book == nil {
			continue // empty folder, already warned
		}
		books = append(books, *book)
	}

	// Manifest ordering is by title so output is reproducible regardless
	// of processing completion order.
	sort.SliceStable(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ID < books[j].ID
	})

	m := &manifest.Manifest{
		Books:       books,
		GeneratedAt: time.Now().UTC(),
		Version:     manifest.Version,
	}

	if err := os.MkdirAll(p.cfg.Out, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := manifest.Write(filepath.Join(p.cfg.Out, manifest.FileName), m); err != nil {
		return nil, err
	}

	p.logger.Info("Manifest written",
		zap.Int("books", len(books)),
		zap.String("path", filepath.Join(p.cfg.Out, manifest.FileName)))
	return m, nil
}

// ensureRoot creates the root directory together with a self-documenting
// sample book when it does not exist yet.
func (p *Pipeline) ensureRoot() error {
	info, err := os.Stat(p.cfg.Root)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("root %s is not a directory", p.cfg.Root)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat root: %w", err)
	}

	p.logger.Info("Root directory missing, creating it with a sample book",
		zap.String("root", p.cfg.Root))
	return p.createSampleBook()
}

// discoverBooks lists book folders and assigns collision-free slugs.
// Folders are processed in lexicographic name order so slug suffixes are
// deterministic across runs and filesystems.
func (p *Pipeline) discoverBooks() ([]bookFolder, error) {
	entries, err := os.ReadDir(p.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to read root: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	taken := make(map[string]int, len(names))
	folders := make([]bookFolder, 0, len(names))
	for _, name := range names {
		dir := filepath.Join(p.cfg.Root, name)

		meta, err := loadMetadata(dir)
		if err != nil {
			p.logger.Warn("Malformed metadata, falling back to defaults",
				zap.String("folder", name), zap.Error(err))
			meta = BookMetadata{}
		}

		images, err := discoverImages(dir)
		if err != nil {
			p.logger.Warn("Failed to list folder, skipping",
				zap.String("folder", name), zap.Error(err))
			continue
		}
		if len(images) == 0 {
			p.logger.Warn("Book folder has no images, skipping",
				zap.String("folder", name))
			continue
		}

		slug := utils.Slugify(name)
		if slug == "" {
			slug = "book"
		}
		// Two folders can produce the same slug; append a numeric
		// suffix in discovery order rather than silently overwriting.
		taken[slug]++
		if n := taken[slug]; n > 1 {
			slug = fmt.Sprintf("%s-%d", slug, n)
		}

		folders = append(folders, bookFolder{
			dir:    dir,
			name:   name,
			slug:   slug,
			meta:   meta,
			images: orderImages(images, meta.PageOrder),
		})
	}
	return folders, nil
}

// discoverImages returns the image file names of a folder, case-insensitive
// on extension, de-duplicated, non-recursive. Nested folders are tolerated
// and ignored.
func discoverImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var images []string
	for _, e := range entries {
		if e.IsDir() || !isImageFile(e.Name()) {
			continue
		}
		if _, dup := seen[e.Name()]; dup {
			continue
		}
		seen[e.Name()] = struct{}{}
		images = append(images, e.Name())
	}
	return images, nil
}

// orderImages applies the explicit pageOrder when present: listed files
// keep their listed position, unlisted files follow sorted by name. The
// result is a total order independent of filesystem enumeration.
func orderImages(images []string, pageOrder []string) []string {
	rank := make(map[string]int, len(pageOrder))
	for i, name := range pageOrder {
		rank[name] = i
	}

	sorted := append([]string(nil), images...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, iListed := rank[sorted[i]]
		rj, jListed := rank[sorted[j]]
		switch {
		case iListed && jListed:
			return ri < rj
		case iListed:
			return true
		case jListed:
			return false
		default:
			return sorted[i] < sorted[j]
		}
	})
	return sorted
}

// processBook derives assets for every image of a book and assembles its
// manifest record. Image failures are isolated: the failed page is
// dropped and numbering stays dense.
func (p *Pipeline) processBook(ctx context.Context, folder bookFolder) (*manifest.Book, error) {
	outDir := filepath.Join(p.cfg.Out, "books", folder.slug)
	relDir := path.Join("books", folder.slug)

	type pageResult struct {
		index   int
		name    string
		derived *derivedImage
	}

	results := make([]*pageResult, len(folder.images))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.cfg.Concurrency))

	for i, name := range folder.images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			derived, err := deriveImage(filepath.Join(folder.dir, name), outDir, relDir, p.cfg)
			if err != nil {
				// Isolated failure domain: log and let siblings finish.
				p.logger.Warn("Failed to process image, skipping page",
					zap.String("book", folder.slug),
					zap.String("image", name),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			results[i] = &pageResult{index: i, name: name, derived: derived}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pages []manifest.Page
	pageIDs := make(map[string]int)
	for _, r := range results {
		if r == nil {
			continue
		}
		base := utils.BaseName(r.name)
		doc := loadPageDoc(folder.dir, base)

		pageID := utils.Slugify(base)
		if pageID == "" {
			pageID = "page"
		}
		pageIDs[pageID]++
		if n := pageIDs[pageID]; n > 1 {
			pageID = fmt.Sprintf("%s-%d", pageID, n)
		}

		number := len(pages) + 1
		title := doc.Title
		if title == "" {
			title = fmt.Sprintf("Page %d", number)
		}

		src := r.derived.Original[len(r.derived.Original)-1].RelPath
		pages = append(pages, manifest.Page{
			ID:          pageID,
			Title:       title,
			Description: doc.Description,
			PageNumber:  number,
			Image: manifest.ResponsiveImage{
				Src: src,
				SrcSet: manifest.SrcSet{
					WebP:     srcSetString(r.derived.WebP),
					Original: srcSetString(r.derived.Original),
				},
				Alt:         doc.Alt,
				Width:       r.derived.Width,
				Height:      r.derived.Height,
				LQIP:        r.derived.LQIP,
				AspectRatio: float64(r.derived.Width) / float64(r.derived.Height),
			},
		})
	}

	if len(pages) == 0 {
		p.logger.Warn("No image of the book could be processed, skipping",
			zap.String("book", folder.slug))
		return nil, nil
	}

	title := folder.meta.Title
	if title == "" {
		title = utils.Titleize(folder.name)
	}
	description := folder.meta.Description
	if description == "" {
		description = loadDescription(folder.dir)
	}

	book := &manifest.Book{
		BookEntry: manifest.BookEntry{
			ID:           folder.slug,
			Title:        title,
			Description:  description,
			Author:       folder.meta.Author,
			CoverImage:   pages[0].Image.Src,
			TotalPages:   len(pages),
			LastModified: latestModTime(folder.dir, folder.images),
			CreatedAt:    parseCreatedAt(folder.meta.CreatedAt),
			Tags:         normalizeTags(folder.meta.Tags),
			Metadata: manifest.BookMeta{
				BabyName:  folder.meta.BabyName,
				BirthDate: folder.meta.BirthDate,
				Parents:   folder.meta.Parents,
			},
		},
		Pages: pages,
	}

	// Pages are also written per book so the listing manifest can stay
	// lightweight for consumers that fetch pages on demand.
	if err := manifest.WriteAtomic(filepath.Join(outDir, "pages.json"), pages); err != nil {
		return nil, err
	}

	return book, nil
}

// latestModTime returns the newest modification time among the book's
// images, falling back to the folder's own mtime.
func latestModTime(dir string, images []string) time.Time {
	var latest time.Time
	for _, name := range images {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil {
			if info.ModTime().After(latest) {
				latest = info.ModTime()
			}
		}
	}
	if latest.IsZero() {
		if info, err := os.Stat(dir); err == nil {
			latest = info.ModTime()
		}
	}
	return latest.UTC()
}

func parseCreatedAt(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// normalizeTags trims, lowercases and de-duplicates tags, keeping first
// occurrence order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
