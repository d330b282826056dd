package pipeline

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/webp" // register webp decoder
)

// imageExtensions is the accepted set of raster image extensions,
// matched case-insensitively.
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".gif":  {},
	".bmp":  {},
}

func isImageFile(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// variant is one derived file of a source image.
type variant struct {
	RelPath string
	Width   int
}

// derivedImage is the result of processing one source image.
type derivedImage struct {
	Width    int
	Height   int
	LQIP     string
	WebP     []variant
	Original []variant
}

// deriveImage decodes the source, writes resized variants in WebP and the
// original format for every target width not exceeding the source width,
// and builds a base64 LQIP data URI. Derived files land in outDir; the
// variants carry paths relative to the output root, prefixed by relDir.
func deriveImage(srcPath, outDir, relDir string, cfg Config) (*derivedImage, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", srcPath, err)
	}
	img, format, err := image.Decode(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", srcPath, err)
	}

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= 0 || srcH <= 0 {
		return nil, fmt.Errorf("image %s has empty bounds", srcPath)
	}

	// Never upscale: keep only target widths the source can serve. When
	// every target exceeds the source, fall back to the source width so
	// at least one variant exists.
	widths := make([]int, 0, len(cfg.Widths()))
	for _, w := range cfg.Widths() {
		if w <= srcW {
			widths = append(widths, w)
		}
	}
	if len(widths) == 0 {
		widths = []int{srcW}
	}
	sort.Ints(widths)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	origExt := normalizedExt(format)

	d := &derivedImage{Width: srcW, Height: srcH}

	for _, w := range widths {
		resized := resizeTo(img, w)

		webpName := fmt.Sprintf("%s-%dw.webp", base, w)
		if err := encodeToFile(filepath.Join(outDir, webpName), resized, "webp", cfg.Quality); err != nil {
			return nil, err
		}
		d.WebP = append(d.WebP, variant{RelPath: path.Join(relDir, webpName), Width: w})

		origName := fmt.Sprintf("%s-%dw%s", base, w, origExt)
		if format == "webp" {
			// Source already WebP: one encode serves both slots.
			d.Original = append(d.Original, variant{RelPath: path.Join(relDir, webpName), Width: w})
		} else {
			if err := encodeToFile(filepath.Join(outDir, origName), resized, format, cfg.Quality); err != nil {
				return nil, err
			}
			d.Original = append(d.Original, variant{RelPath: path.Join(relDir, origName), Width: w})
		}
	}

	lqip, err := encodeLQIP(img, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build lqip for %s: %w", srcPath, err)
	}
	d.LQIP = lqip

	return d, nil
}

// resizeTo scales the image to the given width preserving aspect ratio.
func resizeTo(img image.Image, width int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == width {
		return img
	}
	height := (width*bounds.Dy() + bounds.Dx()/2) / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

func encodeToFile(path string, img image.Image, format string, quality int) error {
	var buf bytes.Buffer
	if err := encodeImage(&buf, img, format, quality); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func encodeImage(w *bytes.Buffer, img image.Image, format string, quality int) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "png":
		return png.Encode(w, img)
	case "gif":
		return gif.Encode(w, img, nil)
	case "bmp":
		return bmp.Encode(w, img)
	case "webp":
		return nativewebp.Encode(w, img, nil)
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// encodeLQIP produces the tiny placeholder as a base64 JPEG data URI.
// It is embedded in the manifest; no file is written.
func encodeLQIP(img image.Image, cfg Config) (string, error) {
	width := cfg.LQIPWidth
	if width <= 0 {
		width = 24
	}
	if b := img.Bounds(); width > b.Dx() {
		width = b.Dx()
	}
	tiny := resizeTo(img, width)

	var buf bytes.Buffer
	quality := cfg.LQIPQuality
	if quality <= 0 {
		quality = 30
	}
	if err := jpeg.Encode(&buf, tiny, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// normalizedExt maps a decoded format name to its canonical extension.
func normalizedExt(format string) string {
	if format == "jpeg" {
		return ".jpg"
	}
	return "." + format
}

// srcSetString renders variants as a srcset descriptor list.
func srcSetString(variants []variant) string {
	parts := make([]string, 0, len(variants))
	for _, v := range variants {
		parts = append(parts, fmt.Sprintf("%s %dw", v.RelPath, v.Width))
	}
	return strings.Join(parts, ", ")
}
