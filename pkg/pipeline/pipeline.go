// pkg/pipeline/pipeline.go
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/cleaner"
	"github.com/David-Botos/sales-ingress/pkg/config"
	"github.com/David-Botos/sales-ingress/pkg/model"
	"github.com/David-Botos/sales-ingress/pkg/report"
	"github.com/David-Botos/sales-ingress/pkg/sink"
	"github.com/David-Botos/sales-ingress/pkg/source"
)

// Manager orchestrates one cleaning run: load, deduplicate, clean in
// parallel, persist, verify, report. Deduplication runs strictly
// sequentially before any worker starts, so which duplicate survives
// never depends on scheduling; workers only ever see distinct keys.
type Manager struct {
	source        source.RecordSource
	sink          sink.Sink
	verifier      *Verifier
	deduplicator  *cleaner.Deduplicator
	recordCleaner *cleaner.RecordCleaner
	errorHandler  *ErrorHandler
	metrics       *RunMetrics
	logger        *zap.Logger
	runID         uuid.UUID
	workerCount   int
	chunkSize     int
	dryRun        bool
}

// NewManager creates a manager for one run
func NewManager(
	runID uuid.UUID,
	src source.RecordSource,
	snk sink.Sink,
	verifier *Verifier,
	cfg *config.Config,
) *Manager {
	logger := zap.L().Named("pipeline")

	workerCount := cfg.WorkerPoolSize
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	return &Manager{
		source:        src,
		sink:          snk,
		verifier:      verifier,
		deduplicator:  cleaner.NewDeduplicator(),
		recordCleaner: cleaner.NewRecordCleaner(),
		errorHandler:  NewErrorHandler(logger),
		metrics:       NewRunMetrics(runID.String(), logger),
		logger:        logger,
		runID:         runID,
		workerCount:   workerCount,
		chunkSize:     cfg.ChunkSize,
	}
}

// WithDryRun skips persistence and verification, producing the report
// only
func (m *Manager) WithDryRun(dryRun bool) *Manager {
	m.dryRun = dryRun
	return m
}

// Metrics returns the run metrics
func (m *Manager) Metrics() *RunMetrics {
	return m.metrics
}

// Run executes the pipeline once. Row-level problems become rejections
// and never fail the run; any error returned here is systemic and
// means no result was committed beyond what the sink already reported.
func (m *Manager) Run(ctx context.Context) (*report.QualityReport, *RunSummary, error) {
	m.logger.Info("Starting run",
		zap.String("runID", m.runID.String()),
		zap.String("source", m.source.Name()),
		zap.Int("workers", m.workerCount),
		zap.Int("chunkSize", m.chunkSize),
		zap.Bool("dryRun", m.dryRun))

	// Load. The source must preserve input order.
	records, err := m.source.Load(ctx)
	if err != nil {
		m.errorHandler.HandleError(NewErrorRecord(err, ErrorCategorySourceLevel).
			WithStage("load"))
		return nil, nil, fmt.Errorf("source load failed: %w", err)
	}
	m.metrics.RecordSourceRead(len(records))

	// Deduplicate before anything runs concurrently.
	deduped, dupRejections := m.deduplicator.Deduplicate(records)
	m.metrics.RecordDeduplication(len(dupRejections))

	// Clean across the worker pool.
	cleaned, cleanRejections, operations, err := m.cleanParallel(ctx, deduped)
	if err != nil {
		return nil, nil, err
	}

	rejections := append(dupRejections, cleanRejections...)

	if !m.dryRun {
		if err := m.persist(ctx, cleaned, rejections, operations); err != nil {
			return nil, nil, err
		}

		if m.verifier != nil {
			verification, err := m.verifier.VerifyRun(ctx, cleaned)
			if err != nil {
				m.errorHandler.HandleError(NewErrorRecord(err, ErrorCategorySinkLevel).
					WithStage("verify"))
				return nil, nil, fmt.Errorf("verification failed: %w", err)
			}
			if !verification.Passed() {
				err := fmt.Errorf("verification found %d integrity issues and %d sample discrepancies",
					len(verification.IntegrityIssues), len(verification.Discrepancies))
				m.errorHandler.HandleError(NewErrorRecord(err, ErrorCategoryCritical).
					WithStage("verify"))
				return nil, nil, err
			}
		}
	}

	qualityReport := report.Generate(len(records), cleaned, rejections)

	m.metrics.Complete()
	summary := m.metrics.GenerateRunSummary()

	return qualityReport, summary, nil
}

// cleanParallel fans the deduplicated batch out to the worker pool and
// reassembles results in chunk sequence order, so the output matches
// the sequential pipeline for any worker count.
func (m *Manager) cleanParallel(
	ctx context.Context,
	records []model.RawRecord,
) ([]model.CleanRecord, []model.Rejection, []model.CleaningOperation, error) {
	jobs := m.buildJobs(records)
	if len(jobs) == 0 {
		return nil, nil, nil, nil
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	jobQueue := make(chan ChunkJob, len(jobs))
	resultQueue := make(chan ChunkResult, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < m.workerCount; i++ {
		worker := NewWorker(i, m.recordCleaner, m.errorHandler, m.logger)
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Start(workerCtx, jobQueue, resultQueue)
		}(worker)
	}

	for _, job := range jobs {
		jobQueue <- job
	}
	close(jobQueue)

	results := make([]ChunkResult, 0, len(jobs))
	for i := 0; i < len(jobs); i++ {
		select {
		case result := <-resultQueue:
			m.metrics.RecordChunk(result)
			if !result.Success {
				for _, errRec := range result.Errors {
					if m.errorHandler.HandleError(errRec) == ActionAbort {
						cancelWorkers()
						wg.Wait()
						return nil, nil, nil, fmt.Errorf("cleaning aborted: %s", errRec.String())
					}
				}
			}
			results = append(results, result)
		case <-ctx.Done():
			cancelWorkers()
			wg.Wait()
			return nil, nil, nil, ctx.Err()
		}
	}

	wg.Wait()

	// Reassemble in input order.
	sort.Slice(results, func(i, j int) bool {
		return results[i].Seq < results[j].Seq
	})

	var cleaned []model.CleanRecord
	var rejections []model.Rejection
	var operations []model.CleaningOperation
	for _, result := range results {
		cleaned = append(cleaned, result.Cleaned...)
		rejections = append(rejections, result.Rejections...)
		operations = append(operations, result.Operations...)
	}

	return cleaned, rejections, operations, nil
}

// buildJobs splits the batch into sequence-numbered chunks
func (m *Manager) buildJobs(records []model.RawRecord) []ChunkJob {
	if len(records) == 0 {
		return nil
	}

	jobs := make([]ChunkJob, 0, (len(records)+m.chunkSize-1)/m.chunkSize)
	for seq, start := 0, 0; start < len(records); seq, start = seq+1, start+m.chunkSize {
		end := start + m.chunkSize
		if end > len(records) {
			end = len(records)
		}
		jobs = append(jobs, NewChunkJob(seq, records[start:end]))
	}

	return jobs
}

// persist provisions the sink and writes the batch plus audit trail
func (m *Manager) persist(
	ctx context.Context,
	cleaned []model.CleanRecord,
	rejections []model.Rejection,
	operations []model.CleaningOperation,
) error {
	if err := m.sink.EnsureSchema(ctx); err != nil {
		m.errorHandler.HandleError(NewErrorRecord(err, ErrorCategorySinkLevel).
			WithStage("provision"))
		return fmt.Errorf("sink provisioning failed: %w", err)
	}

	persisted, err := m.sink.PersistCleaned(ctx, cleaned)
	if err != nil {
		m.errorHandler.HandleError(NewErrorRecord(err, ErrorCategorySinkLevel).
			WithStage("persist"))
		return fmt.Errorf("persisting cleaned records failed: %w", err)
	}
	m.metrics.RecordPersisted(persisted)

	if _, err := m.sink.PersistRejections(ctx, rejections); err != nil {
		m.errorHandler.HandleError(NewErrorRecord(err, ErrorCategorySinkLevel).
			WithStage("persist"))
		return fmt.Errorf("persisting rejections failed: %w", err)
	}

	if _, err := m.sink.PersistOperations(ctx, operations); err != nil {
		m.errorHandler.HandleError(NewErrorRecord(err, ErrorCategorySinkLevel).
			WithStage("persist"))
		return fmt.Errorf("persisting cleaning operations failed: %w", err)
	}

	return nil
}
