package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

const sampleReadme = `# My First Book

This folder was generated because the book root did not exist yet.

Each sub-folder of the root is one book:

  - drop image files (jpg, png, webp, gif, bmp) into the folder
  - optional metadata.json: title, description, tags, pageOrder, babyName
  - optional <image-name>.md next to an image: first "# " line is the
    page title, an "Alt: " line is the alt text, the body the description
  - optional description.md / README.md for the book description

Run "babybook scan" again after editing.
`

const sampleMetadata = `{
  "title": "My First Book",
  "description": "A generated sample book. Replace it with your own.",
  "tags": ["sample"]
}
`

// createSampleBook creates the root directory and a self-documenting
// sample book with one generated image, so a first run produces a
// browsable result instead of an error.
func (p *Pipeline) createSampleBook() error {
	dir := filepath.Join(p.cfg.Root, "my-first-book")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create sample book folder: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte(sampleReadme), 0o644); err != nil {
		return fmt.Errorf("failed to write sample readme: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(sampleMetadata), 0o644); err != nil {
		return fmt.Errorf("failed to write sample metadata: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "001-welcome.png"))
	if err != nil {
		return fmt.Errorf("failed to create sample image: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, sampleImage(640, 480)); err != nil {
		return fmt.Errorf("failed to encode sample image: %w", err)
	}
	return nil
}

// sampleImage renders a simple two-axis gradient.
func sampleImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(200 + 55*x/w),
				G: uint8(180 + 40*y/h),
				B: uint8(210 - 60*x/w),
				A: 255,
			})
		}
	}
	return img
}
