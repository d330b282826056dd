package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"babybook/core/manifest"
	"babybook/core/utils"
)

// VerifyResult is the reconciliation report for one book: the manifest,
// the derived assets on disk, and the source folder compared pairwise.
type VerifyResult struct {
	BookID         string   `json:"bookId"`
	SourcePresent  bool     `json:"sourcePresent"`
	MissingAssets  []string `json:"missingAssets,omitempty"`
	OrphanedAssets []string `json:"orphanedAssets,omitempty"`
}

// OK reports whether the book reconciles cleanly.
func (r VerifyResult) OK() bool {
	return r.SourcePresent && len(r.MissingAssets) == 0 && len(r.OrphanedAssets) == 0
}

// Verify reconciles the written manifest against the derived assets and
// the source tree. It reports, per book, derived files the manifest
// references but that are missing on disk, and derived files present on
// disk that no manifest page references. Results are sorted by book id
// for deterministic output.
func (p *Pipeline) Verify() ([]VerifyResult, error) {
	m, err := manifest.Read(filepath.Join(p.cfg.Out, manifest.FileName))
	if err != nil {
		return nil, fmt.Errorf("cannot verify without a manifest: %w", err)
	}

	results := make([]VerifyResult, 0, len(m.Books))
	for _, book := range m.Books {
		r := VerifyResult{BookID: book.ID}

		// A book's source folder may have been renamed or deleted
		// since the manifest was generated.
		r.SourcePresent = sourceFolderExists(p.cfg.Root, book.ID)

		referenced := referencedAssets(book)
		for asset := range referenced {
			if _, err := os.Stat(filepath.Join(p.cfg.Out, filepath.FromSlash(asset))); err != nil {
				r.MissingAssets = append(r.MissingAssets, asset)
			}
		}

		bookDir := filepath.Join(p.cfg.Out, "books", book.ID)
		entries, err := os.ReadDir(bookDir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() || e.Name() == "pages.json" {
					continue
				}
				rel := "books/" + book.ID + "/" + e.Name()
				if _, ok := referenced[rel]; !ok {
					r.OrphanedAssets = append(r.OrphanedAssets, rel)
				}
			}
		}

		sort.Strings(r.MissingAssets)
		sort.Strings(r.OrphanedAssets)
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].BookID < results[j].BookID
	})
	return results, nil
}

// referencedAssets collects every derived file path a book's pages name,
// from src and both srcset lists.
func referencedAssets(book manifest.Book) map[string]struct{} {
	assets := make(map[string]struct{})
	add := func(p string) {
		if p != "" {
			assets[p] = struct{}{}
		}
	}
	addSet := func(srcset string) {
		for _, part := range strings.Split(srcset, ",") {
			fields := strings.Fields(strings.TrimSpace(part))
			if len(fields) > 0 {
				add(fields[0])
			}
		}
	}

	add(book.CoverImage)
	for _, page := range book.Pages {
		add(page.Image.Src)
		addSet(page.Image.SrcSet.WebP)
		addSet(page.Image.SrcSet.Original)
	}
	return assets
}

// sourceFolderExists checks whether any folder of the root still slugs to
// the book id. The manifest does not record the original folder name, so
// the match is done the same way discovery does it.
func sourceFolderExists(root, bookID string) bool {
	entries, err := os.ReadDir(root)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		slug := utils.Slugify(e.Name())
		// Disambiguated ids carry a "-N" suffix over the folder slug.
		if slug == bookID || strings.HasPrefix(bookID, slug+"-") {
			return true
		}
	}
	return false
}
