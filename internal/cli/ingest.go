package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitrine-search/vitrine/internal/config"
	"github.com/vitrine-search/vitrine/internal/domain"
	"github.com/vitrine-search/vitrine/internal/index"
	indexredis "github.com/vitrine-search/vitrine/internal/index/redis"
	"github.com/vitrine-search/vitrine/internal/logger"
	"github.com/vitrine-search/vitrine/internal/metrics"
	"github.com/vitrine-search/vitrine/internal/transport/clip"
	openaiemb "github.com/vitrine-search/vitrine/internal/transport/openai"
	ingestuc "github.com/vitrine-search/vitrine/internal/usecase/ingest"
)

var (
	catalogPath string
	imagesDir   string
	batchSize   int
	workers     int
	dryRun      bool
	reindex     bool
	totalRows   int
)

var ingestCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the catalog ingestion pipeline",
	Long: `Read the catalog CSV, embed each product's description and image,
upsert the fused vectors into the index and rebuild it.

Records with missing or unreadable images are ingested in degraded mode
(text vector only). Records with blank description fields are skipped.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&catalogPath, "catalog", "", "path to the catalog CSV (required)")
	ingestCmd.Flags().StringVar(&imagesDir, "images-dir", "", "directory with product images (falls back to ImageUrl)")
	ingestCmd.Flags().IntVar(&batchSize, "batch-size", 100, "records per bulk upsert")
	ingestCmd.Flags().IntVar(&workers, "workers", 4, "number of parallel embed+upsert workers")
	ingestCmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and embed without writing to the index")
	ingestCmd.Flags().BoolVar(&reindex, "reindex", false, "proceed even when the index was built with a different embedding configuration")
	ingestCmd.Flags().IntVar(&totalRows, "total", 0, "expected row count, for the progress bar")
	_ = ingestCmd.MarkFlagRequired("catalog")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	log, err := logger.NewLogger(config.GetEnv(), cfg.Logging.Level)
	if err != nil {
		log, _ = zap.NewDevelopment()
	}
	defer func() { _ = log.Sync() }()

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()

	store, err := indexredis.NewStore(indexredis.Config{
		Addrs:     cfg.Index.Addrs,
		Password:  cfg.Index.Password,
		KeyPrefix: cfg.Index.KeyPrefix,
		IndexName: cfg.Index.Name,
	})
	if err != nil {
		return fmt.Errorf("connect index: %w", err)
	}
	defer store.Close()

	readiness := time.Duration(cfg.Index.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, readiness); err != nil {
		return fmt.Errorf("index not ready: %w", err)
	}

	embedTimeout := time.Duration(cfg.Embedding.TimeoutSec) * time.Second

	textEmb := openaiemb.NewEmbedder(&openaiemb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.TextModel,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     log,
	})
	imageEmb := clip.NewEmbedder(&clip.Config{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.ImageModel,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Timeout:    embedTimeout,
		Logger:     log,
	})

	loader := ingestuc.NewFileOrURLLoader(imagesDir, cfg.HTTP.MaxImageBytes, embedTimeout)

	bar := newProgressBar(totalRows)

	svc := ingestuc.New(store, textEmb, imageEmb, loader, ingestuc.Config{
		BatchSize: batchSize,
		Workers:   workers,
		DryRun:    dryRun,
		Reindex:   reindex,
		Progress:  func(n int) { _ = bar.Add(n) },
		IndexParams: index.Params{
			Dimensions:         cfg.Embedding.Dimensions,
			Metric:             index.Metric(cfg.Index.Metric),
			Algorithm:          index.Algorithm(cfg.Index.Algorithm),
			HNSWM:              cfg.Index.HNSWM,
			EFConstruct:        cfg.Index.HNSWEFConstruct,
			Provider:           cfg.Embedding.Provider,
			Model:              cfg.Embedding.TextModel,
			DescriptionVersion: domain.DescriptionVersion,
		},
	}, log)

	start := time.Now()
	report, err := svc.Run(ctx, ingestuc.NewCSVSource(catalogPath))
	_ = bar.Finish()
	fmt.Println()

	fmt.Printf("inserted: %d\ndegraded: %d\nskipped:  %d\nduration: %s\n",
		report.Inserted, report.Degraded, len(report.Skipped), time.Since(start).Round(time.Second))

	for _, s := range report.Skipped {
		log.Warn("skipped record", zap.Int64("id", s.ID), zap.String("reason", s.Reason))
	}

	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	return nil
}

func newProgressBar(total int) *progressbar.ProgressBar {
	if total <= 0 {
		total = -1 // spinner
	}
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
	)
}
