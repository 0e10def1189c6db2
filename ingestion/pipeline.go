package ingestion

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/corpus/core"
)

// Pipeline orchestrates batch ingestion over a Registry. Items in a batch
// are processed concurrently and failures are isolated: one bad item never
// aborts the rest of the batch.
type Pipeline struct {
	registry *Registry
	pool     *ants.Pool
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent batch processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "pipeline")
		return nil
	}
}

// NewPipeline creates a batch ingestion pipeline over a registry.
func NewPipeline(registry *Registry, opts ...Option) (*Pipeline, error) {
	if registry == nil {
		return nil, ErrRepositoryRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		registry: registry,
		pool:     pool,
		logger:   slog.Default().With("component", "pipeline"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// ItemResult is the outcome of one item in a batch.
type ItemResult struct {
	// Index is the item's position in the submitted batch.
	Index int

	// Record is the stored record, nil when Err is set.
	Record *core.ContentRecord

	// Err is the item's failure, nil on success.
	Err error
}

// BatchReport summarizes a batch ingest.
type BatchReport struct {
	Total      int
	Successful int
	Failed     int

	// Results holds one entry per submitted item, in batch order.
	Results []ItemResult
}

// IngestBatch ingests all requests concurrently and reports per-item
// outcomes. The returned error covers only batch-level problems; individual
// item failures are reported in the BatchReport.
func (p *Pipeline) IngestBatch(ctx context.Context, requests []IngestRequest) (*BatchReport, error) {
	if len(requests) == 0 {
		return nil, ErrEmptyBatch
	}

	report := &BatchReport{
		Total:   len(requests),
		Results: make([]ItemResult, len(requests)),
	}

	var wg sync.WaitGroup
	for i := range requests {
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			record, err := p.registry.Ingest(ctx, requests[i])
			report.Results[i] = ItemResult{Index: i, Record: record, Err: err}
			if err != nil {
				p.logger.Warn("batch item failed", "index", i, "err", err)
			}
		}
		if err := p.pool.Submit(task); err != nil {
			// Pool unavailable, run inline
			task()
		}
	}
	wg.Wait()

	for _, result := range report.Results {
		if result.Err != nil {
			report.Failed++
		} else {
			report.Successful++
		}
	}

	p.logger.Info("batch ingest complete",
		"total", report.Total,
		"successful", report.Successful,
		"failed", report.Failed)

	return report, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
