package cmd

import (
	"log"
	"os/signal"
	"syscall"

	"babybook/core/config"
	"babybook/core/logger"
	"babybook/core/pipeline"
	"babybook/core/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	scanWatch   bool
	scanPublish bool
	scanRoot    string
	scanOut     string
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan book folders and build derived assets",
	Long: `Scans the book root for folders of images, derives responsive
variants, WebP siblings and LQIP placeholders, and writes the books
manifest plus per-book page documents to the output directory.

With --watch the scan reruns whenever the book root changes. With
--publish the output directory is uploaded to object storage after a
successful scan.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if scanRoot != "" {
			cfg.Pipeline.Root = scanRoot
		}
		if scanOut != "" {
			cfg.Pipeline.Out = scanOut
		}

		p := pipeline.New(cfg.Pipeline, logg)

		if scanWatch {
			// Watch runs an initial scan itself and republishing on
			// every change is wasteful, so --publish is one-shot only.
			if scanPublish {
				logg.Warn("--publish is ignored in watch mode")
			}
			return p.Watch(ctx)
		}

		m, err := p.Run(ctx)
		if err != nil {
			return err
		}
		logg.Info("Scan complete", zap.Int("books", len(m.Books)))

		if !scanPublish {
			return nil
		}

		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return err
		}
		if err := storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
			return err
		}
		return p.Publish(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanWatch, "watch", false, "rescan on changes to the book root")
	scanCmd.Flags().BoolVar(&scanPublish, "publish", false, "upload the output directory to object storage")
	scanCmd.Flags().StringVar(&scanRoot, "root", "", "book root directory (overrides configuration)")
	scanCmd.Flags().StringVar(&scanOut, "out", "", "output directory (overrides configuration)")
	RootCmd.AddCommand(scanCmd)
}
