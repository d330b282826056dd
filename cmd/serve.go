package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"babybook/core/cache"
	"babybook/core/config"
	"babybook/core/database"
	"babybook/core/imageload"
	"babybook/core/loader"
	"babybook/core/logger"
	"babybook/core/middleware/auth"
	"babybook/core/middleware/rayid"
	"babybook/core/storage"
	"babybook/feature/books"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the book API and derived assets",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database (Optional)
		// The cache degrades to its memory tier without it.
		var db *gorm.DB
		if conn, err := database.Connect(cfg.Database); err != nil {
			logg.Warn("Optional database connection failed", zap.Error(err))
		} else {
			db = conn
			logg.Info("Connected to cache database")
		}

		// 4. Resolve the book source. Bucket mode reads a published
		// bucket and keeps the cache blob tier in the same bucket.
		var source books.Source = books.FileSource{Dir: cfg.Pipeline.Out}
		var cacheOpts []cache.Option
		if cfg.Server.Source == "bucket" {
			store, err := storage.NewClient(cfg.Storage)
			if err != nil {
				logg.Fatal("Failed to create storage client", zap.Error(err))
			}
			source = books.StorageSource{Client: store, Bucket: cfg.Storage.Bucket}
			cacheOpts = append(cacheOpts, cache.WithBlobStore(cache.NewObjectBlobStore(store, cfg.Storage.Bucket)))
			logg.Info("Serving books from object storage", zap.String("bucket", cfg.Storage.Bucket))
		}

		// 5. Initialize Tiered Cache
		tiered, err := cache.New(cfg.Cache, db, logg, cacheOpts...)
		if err != nil {
			logg.Fatal("Failed to create cache", zap.Error(err))
		}
		defer tiered.Close()

		// 6. Initialize Image Loader
		images := imageload.NewLoader(cfg.Loader, logg)

		// 7. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// 8. Initialize Feature Loader
		mgr := loader.NewManager()
		mgr.Register(books.NewFeature(source, tiered, images, cfg.Loader.AssetBaseURL, logg))

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Logging Middleware (Custom to use Zap + RayID)
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 3. Auth (Protect API)
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// 4. Cache metrics endpoint
		app.Get("/cache/metrics", func(c *fiber.Ctx) error {
			return c.JSON(tiered.Metrics())
		})

		// 5. Static asset serving (derived images, manifest)
		if cfg.Server.ServeAssets {
			app.Static("/assets", cfg.Pipeline.Out, fiber.Static{
				MaxAge: 3600,
			})
		}

		// 6. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 7. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 8. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
