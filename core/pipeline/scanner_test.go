package pipeline

import (
	"context"
	"crypto/sha256"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"babybook/core/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPipeline(t *testing.T) (*Pipeline, string, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "books")
	out := filepath.Join(t.TempDir(), "public")
	cfg := Config{
		Root:         root,
		Out:          out,
		TargetWidths: "8,16,1024",
		Quality:      80,
		LQIPWidth:    4,
		LQIPQuality:  30,
		Concurrency:  2,
	}
	return New(cfg, zap.NewNop()), root, out
}

// writeImage writes a small test image; format follows the extension.
func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 17), G: uint8(y * 31), B: 120, A: 255})
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		require.NoError(t, png.Encode(f, img))
	default:
		require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
	}
}

func TestManifestBuildScenario(t *testing.T) {
	p, root, out := testPipeline(t)

	dir := filepath.Join(root, "first-smile")
	writeImage(t, filepath.Join(dir, "001-a.jpg"), 32, 24)
	writeImage(t, filepath.Join(dir, "002-b.jpg"), 32, 24)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002-b.md"),
		[]byte("# Walking\nAlt: baby walking\n"), 0o644))

	m, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Books, 1)

	book := m.Books[0]
	assert.Equal(t, "first-smile", book.ID)
	assert.Equal(t, "First Smile", book.Title)
	assert.Equal(t, 2, book.TotalPages)
	require.Len(t, book.Pages, 2)

	assert.Equal(t, 1, book.Pages[0].PageNumber)
	assert.Equal(t, 2, book.Pages[1].PageNumber)
	assert.Equal(t, "Walking", book.Pages[1].Title)
	assert.Equal(t, "baby walking", book.Pages[1].Image.Alt)
	assert.Equal(t, book.Pages[0].Image.Src, book.CoverImage)

	assert.True(t, strings.HasPrefix(book.Pages[0].Image.LQIP, "data:image/jpeg;base64,"))
	assert.Contains(t, book.Pages[0].Image.SrcSet.WebP, ".webp 8w")

	// The manifest file itself is valid and readable.
	read, err := manifest.Read(filepath.Join(out, manifest.FileName))
	require.NoError(t, err)
	assert.Equal(t, manifest.Version, read.Version)

	// Per-book pages are written alongside the derived assets.
	_, err = os.Stat(filepath.Join(out, "books", "first-smile", "pages.json"))
	assert.NoError(t, err)
}

func TestNoUpscaleInvariant(t *testing.T) {
	p, root, _ := testPipeline(t)
	writeImage(t, filepath.Join(root, "tiny", "a.jpg"), 10, 8)

	m, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Books, 1)

	img := m.Books[0].Pages[0].Image
	assert.Equal(t, 10, img.Width)
	// Target widths 16 and 1024 exceed the source and must be skipped;
	// only the 8px variant remains.
	assert.NotContains(t, img.SrcSet.Original, "16w")
	assert.NotContains(t, img.SrcSet.Original, "1024w")
	assert.Contains(t, img.SrcSet.Original, "8w")
}

func TestPageOrderFromMetadata(t *testing.T) {
	p, root, _ := testPipeline(t)

	dir := filepath.Join(root, "ordered")
	writeImage(t, filepath.Join(dir, "a.jpg"), 16, 16)
	writeImage(t, filepath.Join(dir, "b.jpg"), 16, 16)
	writeImage(t, filepath.Join(dir, "c.jpg"), 16, 16)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"),
		[]byte(`{"pageOrder": ["c.jpg", "a.jpg"]}`), 0o644))

	m, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Books, 1)
	require.Len(t, m.Books[0].Pages, 3)

	// Listed files first in listed order, unlisted after by name.
	assert.Equal(t, "c", m.Books[0].Pages[0].ID)
	assert.Equal(t, "a", m.Books[0].Pages[1].ID)
	assert.Equal(t, "b", m.Books[0].Pages[2].ID)
}

func TestOrderImages(t *testing.T) {
	tests := []struct {
		name      string
		images    []string
		pageOrder []string
		want      []string
	}{
		{
			name:   "lexicographic without explicit order",
			images: []string{"c.jpg", "a.jpg", "b.jpg"},
			want:   []string{"a.jpg", "b.jpg", "c.jpg"},
		},
		{
			name:      "explicit order wins, unlisted trail sorted",
			images:    []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"},
			pageOrder: []string{"d.jpg", "b.jpg"},
			want:      []string{"d.jpg", "b.jpg", "a.jpg", "c.jpg"},
		},
		{
			name:      "order entries for missing files are ignored",
			images:    []string{"a.jpg"},
			pageOrder: []string{"ghost.jpg", "a.jpg"},
			want:      []string{"a.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderImages(tt.images, tt.pageOrder))
		})
	}
}

func TestSlugCollisionGetsNumericSuffix(t *testing.T) {
	p, root, _ := testPipeline(t)
	writeImage(t, filepath.Join(root, "First Smile", "a.jpg"), 16, 16)
	writeImage(t, filepath.Join(root, "first_smile", "a.jpg"), 16, 16)

	m, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Books, 2)

	ids := []string{m.Books[0].ID, m.Books[1].ID}
	assert.ElementsMatch(t, []string{"first-smile", "first-smile-2"}, ids)
}

func TestEmptyBookFolderIsSkipped(t *testing.T) {
	p, root, _ := testPipeline(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	writeImage(t, filepath.Join(root, "full", "a.jpg"), 16, 16)

	m, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Books, 1)
	assert.Equal(t, "full", m.Books[0].ID)
}

func TestCorruptImageIsIsolated(t *testing.T) {
	p, root, _ := testPipeline(t)
	dir := filepath.Join(root, "mixed")
	writeImage(t, filepath.Join(dir, "good.jpg"), 16, 16)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.jpg"), []byte("not an image"), 0o644))

	m, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Books, 1)
	require.Len(t, m.Books[0].Pages, 1, "corrupt image drops its page only")
	assert.Equal(t, "good", m.Books[0].Pages[0].ID)
	assert.Equal(t, 1, m.Books[0].Pages[0].PageNumber, "numbering stays dense")
}

func TestMalformedMetadataFallsBack(t *testing.T) {
	p, root, _ := testPipeline(t)
	dir := filepath.Join(root, "broken-meta")
	writeImage(t, filepath.Join(dir, "a.jpg"), 16, 16)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("{nope"), 0o644))

	m, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Books, 1)
	assert.Equal(t, "Broken Meta", m.Books[0].Title)
}

func TestMissingRootCreatesSampleBook(t *testing.T) {
	p, root, _ := testPipeline(t)
	require.NoDirExists(t, root)

	m, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, m.Books, 1)
	assert.Equal(t, "My First Book", m.Books[0].Title)
	assert.DirExists(t, filepath.Join(root, "my-first-book"))
}

func TestIdempotentRerun(t *testing.T) {
	p, root, out := testPipeline(t)
	dir := filepath.Join(root, "stable")
	writeImage(t, filepath.Join(dir, "a.jpg"), 32, 24)
	writeImage(t, filepath.Join(dir, "b.png"), 20, 20)

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	firstHashes := hashTree(t, out)

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	secondHashes := hashTree(t, out)

	// Derived asset bytes are identical.
	for path, sum := range firstHashes {
		if strings.HasSuffix(path, manifest.FileName) {
			continue // generatedAt differs
		}
		assert.Equal(t, sum, secondHashes[path], "asset %s changed between runs", path)
	}

	// The manifest is equivalent apart from the timestamp.
	first.GeneratedAt = time.Time{}
	second.GeneratedAt = time.Time{}
	assert.Equal(t, first, second)
}

func hashTree(t *testing.T, root string) map[string][32]byte {
	t.Helper()
	hashes := make(map[string][32]byte)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		hashes[rel] = sha256.Sum256(data)
		return nil
	})
	require.NoError(t, err)
	return hashes
}

func TestParsePageDoc(t *testing.T) {
	doc := parsePageDoc("# Walking\nAlt: baby walking\n\nFirst steps in the garden.")
	assert.Equal(t, "Walking", doc.Title)
	assert.Equal(t, "baby walking", doc.Alt)
	assert.Contains(t, doc.Description, "First steps in the garden.")

	empty := parsePageDoc("")
	assert.Equal(t, PageDoc{}, empty)
}

func TestVerifyReconciles(t *testing.T) {
	p, root, out := testPipeline(t)
	writeImage(t, filepath.Join(root, "book", "a.jpg"), 32, 24)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	results, err := p.Verify()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK(), "fresh run must reconcile cleanly: %+v", results[0])

	// Delete one derived asset and plant a stray file.
	bookDir := filepath.Join(out, "books", "book")
	entries, err := os.ReadDir(bookDir)
	require.NoError(t, err)
	var deleted string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".webp") {
			deleted = e.Name()
			require.NoError(t, os.Remove(filepath.Join(bookDir, e.Name())))
			break
		}
	}
	require.NotEmpty(t, deleted)
	require.NoError(t, os.WriteFile(filepath.Join(bookDir, "stray.jpg"), []byte("x"), 0o644))

	results, err = p.Verify()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].OK())
	assert.Contains(t, results[0].MissingAssets, "books/book/"+deleted)
	assert.Contains(t, results[0].OrphanedAssets, "books/book/stray.jpg")
}
