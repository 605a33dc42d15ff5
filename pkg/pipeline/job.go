// pkg/pipeline/job.go
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// ChunkJob is one contiguous slice of the deduplicated batch. Seq is
// the chunk's position in the original input: results are reassembled
// in Seq order so the parallel pipeline emits exactly the sequential
// output.
type ChunkJob struct {
	ID        string // Unique job identifier
	Seq       int    // Position of this chunk in the input
	Records   []model.RawRecord
	CreatedAt time.Time
}

// NewChunkJob creates a chunk job with defaults
func NewChunkJob(seq int, records []model.RawRecord) ChunkJob {
	return ChunkJob{
		ID:        uuid.New().String(),
		Seq:       seq,
		Records:   records,
		CreatedAt: time.Now(),
	}
}

// ChunkResult is the cleaning output for one chunk
type ChunkResult struct {
	JobID      string
	Seq        int
	WorkerID   int
	Success    bool
	Cleaned    []model.CleanRecord
	Rejections []model.Rejection
	Operations []model.CleaningOperation
	Errors     []ErrorRecord
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}

// NewChunkResult initializes a result for a job
func NewChunkResult(job ChunkJob, workerID int) *ChunkResult {
	return &ChunkResult{
		JobID:     job.ID,
		Seq:       job.Seq,
		WorkerID:  workerID,
		StartTime: time.Now(),
		Errors:    make([]ErrorRecord, 0),
	}
}

// Complete marks the result as finished and calculates duration
func (r *ChunkResult) Complete(success bool) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Success = success
}

// AddError adds an error to the result
func (r *ChunkResult) AddError(err ErrorRecord) {
	r.Errors = append(r.Errors, err)
	r.Success = false
}

// HasErrors checks if any errors occurred
func (r *ChunkResult) HasErrors() bool {
	return len(r.Errors) > 0
}
