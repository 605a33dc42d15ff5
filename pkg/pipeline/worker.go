// pkg/pipeline/worker.go
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/cleaner"
	"github.com/David-Botos/sales-ingress/pkg/model"
)

// Worker cleans chunks of deduplicated records. The cleaner is pure,
// so any number of workers can run concurrently; chunk order is
// restored by the manager, not here.
type Worker struct {
	ID            int
	recordCleaner *cleaner.RecordCleaner
	errorHandler  *ErrorHandler
	logger        *zap.Logger
}

// NewWorker creates a new worker
func NewWorker(
	id int,
	recordCleaner *cleaner.RecordCleaner,
	errorHandler *ErrorHandler,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		ID:            id,
		recordCleaner: recordCleaner,
		errorHandler:  errorHandler,
		logger:        logger.With(zap.Int("workerID", id)),
	}
}

// Start begins the worker processing loop
func (w *Worker) Start(ctx context.Context, jobs <-chan ChunkJob, results chan<- ChunkResult) {
	w.logger.Debug("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Worker stopping due to context cancellation")
			return

		case job, ok := <-jobs:
			if !ok {
				w.logger.Debug("Worker stopping due to closed job channel")
				return
			}

			result := w.ProcessJob(ctx, job)

			select {
			case results <- result:
			case <-ctx.Done():
				w.logger.Warn("Context cancelled while sending result",
					zap.Int("seq", job.Seq))
				return
			}
		}
	}
}

// ProcessJob cleans a single chunk
func (w *Worker) ProcessJob(ctx context.Context, job ChunkJob) ChunkResult {
	result := NewChunkResult(job, w.ID)
	startTime := time.Now()

	for _, raw := range job.Records {
		if err := ctx.Err(); err != nil {
			result.AddError(NewErrorRecord(err, ErrorCategorySystemLevel).
				WithStage(model.StageClean))
			result.Complete(false)
			return *result
		}

		rec, ops, rejection := w.recordCleaner.Clean(raw)
		if rejection != nil {
			result.Rejections = append(result.Rejections, *rejection)
			continue
		}

		// A record that violates its own guarantees is a pipeline bug
		if err := cleaner.ValidateRecord(*rec); err != nil {
			result.AddError(NewErrorRecord(err, ErrorCategoryCritical).
				WithStage(model.StageClean).
				WithLine(raw.Line))
			result.Complete(false)
			return *result
		}

		result.Cleaned = append(result.Cleaned, *rec)
		result.Operations = append(result.Operations, ops...)
	}

	result.Complete(true)
	result.Duration = time.Since(startTime)

	w.logger.Debug("Chunk cleaned",
		zap.Int("seq", job.Seq),
		zap.Int("input", len(job.Records)),
		zap.Int("cleaned", len(result.Cleaned)),
		zap.Int("rejected", len(result.Rejections)),
		zap.Duration("duration", result.Duration))

	return *result
}
