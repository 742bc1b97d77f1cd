// Package ingest loads a product catalog into the vector index.
// Pipeline: source → batches → N workers → embed + upsert, then a single
// index build once every batch has landed.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vitrine-search/vitrine/internal/domain"
	"github.com/vitrine-search/vitrine/internal/index"
	"github.com/vitrine-search/vitrine/internal/metrics"
)

// ErrIncompatibleIndex signals that the index was built with a different
// embedding configuration than the one this run carries.
var ErrIncompatibleIndex = errors.New("incompatible index configuration")

// Config holds ingestion knobs.
type Config struct {
	BatchSize   int
	Workers     int
	IndexParams index.Params
	DryRun      bool // embed and validate but skip writes
	Reindex     bool // proceed past an incompatible recorded index identity
	Progress    func(n int)
}

// Service runs the catalog ingestion pipeline.
type Service struct {
	writer IndexWriter
	text   TextEmbedder
	image  ImageEmbedder
	images ImageLoader
	cfg    Config
	logger *zap.Logger
}

// New creates an ingestion service.
func New(
	writer IndexWriter,
	text TextEmbedder,
	image ImageEmbedder,
	images ImageLoader,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Service{
		writer: writer,
		text:   text,
		image:  image,
		images: images,
		cfg:    cfg,
		logger: logger,
	}
}

type batchItem struct {
	records []domain.Record
}

// collector accumulates per-record outcomes across workers.
type collector struct {
	inserted atomic.Int64
	degraded atomic.Int64

	mu    sync.Mutex
	skips []domain.Skip
}

func (c *collector) skip(id int64, reason string) {
	c.mu.Lock()
	c.skips = append(c.skips, domain.Skip{ID: id, Reason: reason})
	c.mu.Unlock()
	metrics.IngestRecordsTotal.WithLabelValues("skipped").Inc()
}

// Run streams records from the source through the worker pool and builds
// the index once all upserts finish. A bulk-write failure is fatal and
// cancels the whole run; per-record embedding or validation failures
// only skip that record.
func (s *Service) Run(ctx context.Context, source Source) (domain.Report, error) {
	if err := s.checkIndexIdentity(ctx); err != nil {
		return domain.Report{}, err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	batches := make(chan batchItem, s.cfg.Workers*2)
	col := &collector{}

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID, batches, col, cancel)
		}(i)
	}

	var sourceErr error
	go func() {
		defer close(batches)
		sourceErr = s.produce(ctx, source, batches, col)
	}()

	wg.Wait()

	report := domain.Report{
		Inserted: int(col.inserted.Load()),
		Degraded: int(col.degraded.Load()),
		Skipped:  col.skips,
	}

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return report, fmt.Errorf("ingest aborted: %w", cause)
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("ingest interrupted: %w", err)
	}
	if sourceErr != nil {
		return report, fmt.Errorf("read source: %w", sourceErr)
	}

	if s.cfg.DryRun {
		return report, nil
	}

	if err := s.writer.Build(ctx, s.cfg.IndexParams); err != nil {
		return report, fmt.Errorf("build index: %w", err)
	}

	return report, nil
}

// checkIndexIdentity compares the recorded index identity against this
// run's parameters. Mixing vectors from different embedding configurations
// silently corrupts retrieval quality, so a mismatch stops the run unless
// the caller explicitly asked for a full reindex.
func (s *Service) checkIndexIdentity(ctx context.Context) error {
	meta, ok, err := s.writer.ReadMeta(ctx)
	if err != nil {
		return fmt.Errorf("read index identity: %w", err)
	}
	if !ok {
		return nil // fresh index
	}

	p := s.cfg.IndexParams
	compatible := meta.Dimensions == p.Dimensions &&
		meta.Metric == p.Metric &&
		meta.Provider == p.Provider &&
		meta.Model == p.Model &&
		meta.DescriptionVersion == p.DescriptionVersion
	if compatible {
		return nil
	}
	if s.cfg.Reindex {
		s.logger.Warn("Reindexing over an incompatible index",
			zap.Any("recorded", meta), zap.Any("requested", p))
		return nil
	}
	return fmt.Errorf(
		"index holds %s/%s dim=%d metric=%s desc=%s, run wants %s/%s dim=%d metric=%s desc=%s: %w",
		meta.Provider, meta.Model, meta.Dimensions, meta.Metric, meta.DescriptionVersion,
		p.Provider, p.Model, p.Dimensions, p.Metric, p.DescriptionVersion,
		ErrIncompatibleIndex)
}

// produce validates records and groups them into batches. Malformed
// records are skipped here, before any embedding cost.
func (s *Service) produce(ctx context.Context, source Source, out chan<- batchItem, col *collector) error {
	batch := make([]domain.Record, 0, s.cfg.BatchSize)

	err := source.Records(ctx, func(rec domain.Record) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if err := rec.Validate(); err != nil {
			s.logger.Warn("Skipping malformed record",
				zap.Int64("id", rec.ID), zap.Error(err))
			col.skip(rec.ID, err.Error())
			return true
		}

		batch = append(batch, rec)
		if len(batch) >= s.cfg.BatchSize {
			select {
			case out <- batchItem{records: batch}:
				batch = make([]domain.Record, 0, s.cfg.BatchSize)
			case <-ctx.Done():
				return false
			}
		}
		return true
	})

	if len(batch) > 0 {
		select {
		case out <- batchItem{records: batch}:
		case <-ctx.Done():
		}
	}

	return err
}

func (s *Service) worker(
	ctx context.Context,
	id int,
	batches <-chan batchItem,
	col *collector,
	abort context.CancelCauseFunc,
) {
	for batch := range batches {
		if ctx.Err() != nil {
			continue // drain
		}
		s.processBatch(ctx, id, batch, col, abort)
	}
}

func (s *Service) processBatch(
	ctx context.Context,
	id int,
	batch batchItem,
	col *collector,
	abort context.CancelCauseFunc,
) {
	textVecs, err := s.embedDescriptions(ctx, batch.records)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("Batch text embedding failed, skipping batch",
			zap.Int("batch_size", len(batch.records)), zap.Error(err))
		for _, rec := range batch.records {
			col.skip(rec.ID, fmt.Sprintf("embed description: %v", err))
		}
		s.reportProgress(len(batch.records))
		return
	}

	entries := make([]index.Entry, 0, len(batch.records))

	for i, rec := range batch.records {
		entry, degraded, err := s.buildEntry(ctx, rec, textVecs[i])
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("Skipping record after embedding failure",
				zap.Int64("id", rec.ID), zap.Error(err))
			col.skip(rec.ID, err.Error())
			continue
		}
		if degraded {
			col.degraded.Add(1)
			metrics.IngestRecordsTotal.WithLabelValues("degraded").Inc()
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		s.reportProgress(len(batch.records))
		return
	}

	if s.cfg.DryRun {
		col.inserted.Add(int64(len(entries)))
		s.reportProgress(len(batch.records))
		return
	}

	start := time.Now()
	err = s.writer.Upsert(ctx, entries)
	metrics.IngestBatchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		// A failed bulk write means the index is in an unknown state;
		// there is no per-record recovery, so the whole run stops.
		s.logger.Error("Bulk upsert failed, aborting ingest",
			zap.Int("worker", id), zap.Int("batch_size", len(entries)), zap.Error(err))
		abort(fmt.Errorf("bulk upsert: %w", err))
		return
	}

	col.inserted.Add(int64(len(entries)))
	metrics.IngestRecordsTotal.WithLabelValues("inserted").Add(float64(len(entries)))
	s.reportProgress(len(batch.records))
}

// embedDescriptions vectorizes every description in the batch, in one
// provider call when the embedder supports it. A failed call fails the
// whole batch: all of its records genuinely failed to embed.
func (s *Service) embedDescriptions(ctx context.Context, recs []domain.Record) ([]domain.Vector, error) {
	texts := make([]string, len(recs))
	for i, rec := range recs {
		texts[i] = rec.Description()
	}

	var res domain.BatchEmbeddingResult
	var err error
	if be, ok := s.text.(domain.BatchTextEmbedder); ok {
		res, err = be.BatchEmbedText(ctx, texts)
	} else {
		res, err = domain.BatchFallback(ctx, s.text, texts)
	}
	if err != nil {
		return nil, err
	}
	if len(res.Vectors) != len(recs) {
		return nil, fmt.Errorf("got %d vectors for %d records", len(res.Vectors), len(recs))
	}
	return res.Vectors, nil
}

// buildEntry fuses one record's vectors into an index entry. Image trouble
// is not fatal: the record degrades to its text vector and is marked so
// downstream consumers can tell.
func (s *Service) buildEntry(ctx context.Context, rec domain.Record, textVec domain.Vector) (index.Entry, bool, error) {
	imageVec, degraded, err := s.embedRecordImage(ctx, rec)
	if err != nil {
		return index.Entry{}, false, err
	}

	vector, err := domain.Fuse(textVec, imageVec)
	if err != nil {
		return index.Entry{}, false, fmt.Errorf("fuse vectors: %w", err)
	}

	return index.Entry{
		ID:       rec.ID,
		Vector:   vector,
		Degraded: degraded,
	}, degraded, nil
}

// embedRecordImage returns the image vector. Only an unresolvable image
// degrades the record to text-only; a provider failure on an image that
// did load is a per-record embedding failure and skips the record.
func (s *Service) embedRecordImage(ctx context.Context, rec domain.Record) (domain.Vector, bool, error) {
	img, err := s.images.Load(ctx, rec)
	if err != nil {
		s.logger.Debug("Image unavailable, degrading to text-only",
			zap.Int64("id", rec.ID), zap.Error(err))
		return nil, true, nil
	}

	res, err := s.image.EmbedImage(ctx, img)
	if err != nil {
		return nil, false, fmt.Errorf("embed image: %w", err)
	}

	return res.Vector, false, nil
}

func (s *Service) reportProgress(n int) {
	if s.cfg.Progress != nil {
		s.cfg.Progress(n)
	}
}
