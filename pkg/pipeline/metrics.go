// pkg/pipeline/metrics.go
package pipeline

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunMetrics tracks metrics for one cleaning run
type RunMetrics struct {
	mu                   sync.Mutex
	logger               *zap.Logger
	RunID                string
	StartTime            time.Time
	EndTime              time.Time
	RowsRead             int64
	DuplicatesSuppressed int64
	RowsCleaned          int64
	RowsRejected         int64
	RejectionsByReason   map[string]int64
	CleaningOperations   int64
	RowsPersisted        int64
	ErrorCounts          map[ErrorCategory]int
	WorkerUtilization    map[int]time.Duration
	ThroughputSamples    []ThroughputSample
	sampleInterval       time.Duration
	lastSampleTime       time.Time
}

// ThroughputSample represents a point-in-time throughput measurement
type ThroughputSample struct {
	Timestamp     time.Time
	RowsPerSecond float64
	ActiveWorkers int
	MemoryUsageMB float64
}

// NewRunMetrics creates a new RunMetrics instance
func NewRunMetrics(runID string, logger *zap.Logger) *RunMetrics {
	return &RunMetrics{
		RunID:              runID,
		StartTime:          time.Now(),
		RejectionsByReason: make(map[string]int64),
		ErrorCounts:        make(map[ErrorCategory]int),
		WorkerUtilization:  make(map[int]time.Duration),
		ThroughputSamples:  make([]ThroughputSample, 0),
		sampleInterval:     time.Second * 10,
		lastSampleTime:     time.Now(),
		logger:             logger,
	}
}

// RecordSourceRead records the size of the loaded batch
func (rm *RunMetrics) RecordSourceRead(rows int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.RowsRead = int64(rows)
}

// RecordDeduplication records how many duplicate rows were suppressed
func (rm *RunMetrics) RecordDeduplication(duplicates int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.DuplicatesSuppressed = int64(duplicates)
	if duplicates > 0 {
		rm.RejectionsByReason["DuplicateKey"] += int64(duplicates)
	}
	rm.RowsRejected += int64(duplicates)
}

// RecordChunk records metrics for a completed chunk
func (rm *RunMetrics) RecordChunk(result ChunkResult) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.RowsCleaned += int64(len(result.Cleaned))
	rm.RowsRejected += int64(len(result.Rejections))
	rm.CleaningOperations += int64(len(result.Operations))

	for _, rej := range result.Rejections {
		rm.RejectionsByReason[rej.Reason.String()]++
	}

	for _, err := range result.Errors {
		rm.ErrorCounts[err.Category]++
	}

	rm.WorkerUtilization[result.WorkerID] += result.Duration

	now := time.Now()
	if now.Sub(rm.lastSampleTime) >= rm.sampleInterval {
		rm.takeThroughputSample()
		rm.lastSampleTime = now
	}

	if rm.logger != nil {
		rm.logger.Debug("Chunk completed",
			zap.Int("seq", result.Seq),
			zap.Int("worker", result.WorkerID),
			zap.Int("cleaned", len(result.Cleaned)),
			zap.Int("rejected", len(result.Rejections)),
			zap.Duration("duration", result.Duration))
	}
}

// RecordPersisted records how many rows reached the sink
func (rm *RunMetrics) RecordPersisted(rows int64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.RowsPersisted = rows
}

// RecordError increments the count for a specific error category
func (rm *RunMetrics) RecordError(category ErrorCategory) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.ErrorCounts[category]++
}

// takeThroughputSample records a throughput sample point
func (rm *RunMetrics) takeThroughputSample() {
	elapsedTime := time.Since(rm.StartTime).Seconds()
	if elapsedTime <= 0 {
		return
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	sample := ThroughputSample{
		Timestamp:     time.Now(),
		RowsPerSecond: float64(rm.RowsCleaned) / elapsedTime,
		ActiveWorkers: len(rm.WorkerUtilization),
		MemoryUsageMB: float64(memStats.Alloc) / (1024 * 1024),
	}

	rm.ThroughputSamples = append(rm.ThroughputSamples, sample)
}

// Complete marks the run as complete
func (rm *RunMetrics) Complete() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.EndTime = time.Now()
	rm.takeThroughputSample()

	if rm.logger != nil {
		rm.logger.Info("Run completed",
			zap.String("runID", rm.RunID),
			zap.Duration("totalDuration", rm.EndTime.Sub(rm.StartTime)),
			zap.Int64("rowsRead", rm.RowsRead),
			zap.Int64("duplicatesSuppressed", rm.DuplicatesSuppressed),
			zap.Int64("rowsCleaned", rm.RowsCleaned),
			zap.Int64("rowsRejected", rm.RowsRejected),
			zap.Int64("cleaningOperations", rm.CleaningOperations),
			zap.Int64("rowsPersisted", rm.RowsPersisted),
			zap.Float64("throughput", rm.calculateThroughput()))
	}
}

// CalculateThroughput calculates the rows/second throughput
func (rm *RunMetrics) CalculateThroughput() float64 {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.calculateThroughput()
}

func (rm *RunMetrics) calculateThroughput() float64 {
	duration := rm.duration().Seconds()
	if duration <= 0 {
		return 0
	}
	return float64(rm.RowsCleaned) / duration
}

// Duration returns the total duration of the run
func (rm *RunMetrics) Duration() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.duration()
}

func (rm *RunMetrics) duration() time.Duration {
	if rm.EndTime.IsZero() {
		return time.Since(rm.StartTime)
	}
	return rm.EndTime.Sub(rm.StartTime)
}

// GetWorkerEfficiency calculates worker efficiency metrics
func (rm *RunMetrics) GetWorkerEfficiency() map[int]float64 {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	efficiency := make(map[int]float64)
	totalDuration := rm.duration()

	if totalDuration <= 0 {
		return efficiency
	}

	for workerID, duration := range rm.WorkerUtilization {
		efficiency[workerID] = float64(duration) / float64(totalDuration)
	}

	return efficiency
}

// RunSummary is the final summary of one run
type RunSummary struct {
	RunID                string
	RowsRead             int64
	DuplicatesSuppressed int64
	RowsCleaned          int64
	RowsRejected         int64
	RejectionsByReason   map[string]int64
	CleaningOperations   int64
	RowsPersisted        int64
	ErrorCategories      map[ErrorCategory]int
	Duration             time.Duration
	StartTime            time.Time
	EndTime              time.Time
	Throughput           float64 // rows/second
}

// GenerateRunSummary creates a RunSummary from metrics
func (rm *RunMetrics) GenerateRunSummary() *RunSummary {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	endTime := rm.EndTime
	if endTime.IsZero() {
		endTime = time.Now()
	}

	reasons := make(map[string]int64, len(rm.RejectionsByReason))
	for reason, count := range rm.RejectionsByReason {
		reasons[reason] = count
	}

	errorCounts := make(map[ErrorCategory]int, len(rm.ErrorCounts))
	for category, count := range rm.ErrorCounts {
		errorCounts[category] = count
	}

	return &RunSummary{
		RunID:                rm.RunID,
		RowsRead:             rm.RowsRead,
		DuplicatesSuppressed: rm.DuplicatesSuppressed,
		RowsCleaned:          rm.RowsCleaned,
		RowsRejected:         rm.RowsRejected,
		RejectionsByReason:   reasons,
		CleaningOperations:   rm.CleaningOperations,
		RowsPersisted:        rm.RowsPersisted,
		ErrorCategories:      errorCounts,
		Duration:             rm.duration(),
		StartTime:            rm.StartTime,
		EndTime:              endTime,
		Throughput:           rm.calculateThroughput(),
	}
}

// GenerateMetricsReport creates a detailed metrics report
func (rm *RunMetrics) GenerateMetricsReport() string {
	summary := rm.GenerateRunSummary()

	report := fmt.Sprintf(`
Run Metrics Report
==================
Run ID:                  %s
Duration:                %s
Start Time:              %s
End Time:                %s

Row Summary
-----------
Rows Read:               %d
Duplicates Suppressed:   %d
Rows Cleaned:            %d
Rows Rejected:           %d
Cleaning Operations:     %d
Rows Persisted:          %d
Average Throughput:      %.2f rows/sec
`,
		summary.RunID,
		formatDuration(summary.Duration),
		summary.StartTime.Format(time.RFC3339),
		summary.EndTime.Format(time.RFC3339),

		summary.RowsRead,
		summary.DuplicatesSuppressed,
		summary.RowsCleaned,
		summary.RowsRejected,
		summary.CleaningOperations,
		summary.RowsPersisted,
		summary.Throughput,
	)

	if len(summary.RejectionsByReason) > 0 {
		report += "\nRejections by Reason\n--------------------\n"
		for reason, count := range summary.RejectionsByReason {
			report += fmt.Sprintf("- %s: %d\n", reason, count)
		}
	}

	if len(summary.ErrorCategories) > 0 {
		report += "\nError Distribution\n------------------\n"
		for category, count := range summary.ErrorCategories {
			report += fmt.Sprintf("- %s: %d\n", category.String(), count)
		}
	}

	report += "\nWorker Efficiency\n-----------------\n"
	for workerID, eff := range rm.GetWorkerEfficiency() {
		report += fmt.Sprintf("- Worker %d: %.1f%% active time\n", workerID, eff*100)
	}

	return report
}

// formatDuration formats a duration to a human-readable string
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// ToJSON serializes metrics to JSON
func (rm *RunMetrics) ToJSON() ([]byte, error) {
	summary := rm.GenerateRunSummary()

	errorCounts := make(map[string]int, len(summary.ErrorCategories))
	for category, count := range summary.ErrorCategories {
		errorCounts[category.String()] = count
	}

	return json.Marshal(struct {
		RunID                string           `json:"runID"`
		Duration             string           `json:"duration"`
		RowsRead             int64            `json:"rowsRead"`
		DuplicatesSuppressed int64            `json:"duplicatesSuppressed"`
		RowsCleaned          int64            `json:"rowsCleaned"`
		RowsRejected         int64            `json:"rowsRejected"`
		RejectionsByReason   map[string]int64 `json:"rejectionsByReason"`
		CleaningOperations   int64            `json:"cleaningOperations"`
		RowsPersisted        int64            `json:"rowsPersisted"`
		Throughput           float64          `json:"throughput"`
		ErrorCounts          map[string]int   `json:"errorCounts"`
	}{
		RunID:                summary.RunID,
		Duration:             formatDuration(summary.Duration),
		RowsRead:             summary.RowsRead,
		DuplicatesSuppressed: summary.DuplicatesSuppressed,
		RowsCleaned:          summary.RowsCleaned,
		RowsRejected:         summary.RowsRejected,
		RejectionsByReason:   summary.RejectionsByReason,
		CleaningOperations:   summary.CleaningOperations,
		RowsPersisted:        summary.RowsPersisted,
		Throughput:           summary.Throughput,
		ErrorCounts:          errorCounts,
	})
}
