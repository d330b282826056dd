package cmd

import (
	"fmt"
	"log"

	"babybook/core/config"
	"babybook/core/logger"
	"babybook/core/pipeline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verifyRoot string
	verifyOut  string
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the manifest against the output directory",
	Long: `Reconciles the books manifest against the assets actually present
in the output directory. Reports assets the manifest references but
that are missing on disk, orphan books whose source folder is gone,
and per-book totals.`,
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

		if verifyRoot != "" {
			cfg.Pipeline.Root = verifyRoot
		}
		if verifyOut != "" {
			cfg.Pipeline.Out = verifyOut
		}

		p := pipeline.New(cfg.Pipeline, logg)
		results, err := p.Verify()
		if err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if r.OK() {
				logg.Info("Book verified", zap.String("book", r.BookID))
				continue
			}
			failed++
			logg.Error("Book failed verification",
				zap.String("book", r.BookID),
				zap.Bool("sourcePresent", r.SourcePresent),
				zap.Strings("missingAssets", r.MissingAssets),
				zap.Strings("orphanedAssets", r.OrphanedAssets),
			)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d books failed verification", failed, len(results))
		}
		logg.Info("All books verified", zap.Int("books", len(results)))
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyRoot, "root", "", "book root directory (overrides configuration)")
	verifyCmd.Flags().StringVar(&verifyOut, "out", "", "output directory (overrides configuration)")
	RootCmd.AddCommand(verifyCmd)
}
