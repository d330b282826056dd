package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"babybook/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Publish uploads the manifest and every derived asset from the output
// directory to the configured bucket. Per-object failures are logged and
// counted; only a wholly failed run returns an error.
func (p *Pipeline) Publish(ctx context.Context, client storage.Client, bucket, region string) error {
	if err := storage.EnsureBucket(ctx, client, bucket, region); err != nil {
		return err
	}

	var uploaded, failed int
	err := filepath.WalkDir(p.cfg.Out, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(p.cfg.Out, path)
		if err != nil {
			return err
		}
		objectName := filepath.ToSlash(rel)

		f, err := os.Open(path)
		if err != nil {
			p.logger.Warn("Failed to open asset for upload",
				zap.String("path", path), zap.Error(err))
			failed++
			return nil
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			failed++
			return nil
		}

		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		if _, err := client.PutObject(ctx, bucket, objectName, f, info.Size(),
			minio.PutObjectOptions{ContentType: contentType}); err != nil {
			p.logger.Warn("Failed to upload asset",
				zap.String("object", objectName), zap.Error(err))
			failed++
			return nil
		}
		uploaded++
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish walk failed: %w", err)
	}

	p.logger.Info("Publish finished",
		zap.Int("uploaded", uploaded),
		zap.Int("failed", failed),
		zap.String("bucket", bucket))

	if uploaded == 0 && failed > 0 {
		return fmt.Errorf("publish failed for all %d assets", failed)
	}
	return nil
}
