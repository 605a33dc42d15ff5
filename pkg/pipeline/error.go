// pkg/pipeline/error.go
package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Action defines the recommended action after an error
type Action int

const (
	// ActionContinue indicates processing should continue despite the error
	ActionContinue Action = iota
	// ActionRetry indicates the operation should be retried
	ActionRetry
	// ActionSkipRow indicates the current row should be skipped
	ActionSkipRow
	// ActionSkipChunk indicates the current chunk should be skipped
	ActionSkipChunk
	// ActionAbort indicates the entire run should be aborted
	ActionAbort
)

// ErrorCategory defines categories of errors during a run
type ErrorCategory int

const (
	// Error categories with increasing severity
	ErrorCategoryNone ErrorCategory = iota
	ErrorCategoryWarning
	ErrorCategoryRowLevel
	ErrorCategoryChunkLevel
	ErrorCategorySourceLevel
	ErrorCategorySinkLevel
	ErrorCategoryConnectionLevel
	ErrorCategorySystemLevel
	ErrorCategoryCritical
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryWarning:
		return "Warning"
	case ErrorCategoryRowLevel:
		return "RowLevel"
	case ErrorCategoryChunkLevel:
		return "ChunkLevel"
	case ErrorCategorySourceLevel:
		return "SourceLevel"
	case ErrorCategorySinkLevel:
		return "SinkLevel"
	case ErrorCategoryConnectionLevel:
		return "ConnectionLevel"
	case ErrorCategorySystemLevel:
		return "SystemLevel"
	case ErrorCategoryCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// ErrorRecord represents a single error during a run
type ErrorRecord struct {
	Category    ErrorCategory
	Stage       string
	Line        int
	ColumnName  string
	Error       error
	Message     string // Derived from Error but stored for serialization
	Timestamp   time.Time
	RetryCount  int
	Recoverable bool
}

// NewErrorRecord creates a new error record with current timestamp
func NewErrorRecord(err error, category ErrorCategory) ErrorRecord {
	record := ErrorRecord{
		Category:    category,
		Error:       err,
		Timestamp:   time.Now(),
		Recoverable: category < ErrorCategorySourceLevel,
	}

	if err != nil {
		record.Message = err.Error()
	}

	return record
}

// WithStage adds the pipeline stage to the error record
func (r ErrorRecord) WithStage(stage string) ErrorRecord {
	r.Stage = stage
	return r
}

// WithLine adds the source line to the error record
func (r ErrorRecord) WithLine(line int) ErrorRecord {
	r.Line = line
	return r
}

// WithColumn adds column information to the error record
func (r ErrorRecord) WithColumn(columnName string) ErrorRecord {
	r.ColumnName = columnName
	return r
}

// WithRetry sets retry information
func (r ErrorRecord) WithRetry(retryCount int) ErrorRecord {
	r.RetryCount = retryCount
	r.Recoverable = r.Category < ErrorCategorySourceLevel && retryCount < 3
	return r
}

// String returns a formatted error message
func (r ErrorRecord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))

	if r.Stage != "" {
		sb.WriteString(fmt.Sprintf("Stage: %s ", r.Stage))
	}

	if r.Line > 0 {
		sb.WriteString(fmt.Sprintf("Line: %d ", r.Line))
	}

	if r.ColumnName != "" {
		sb.WriteString(fmt.Sprintf("Column: %s ", r.ColumnName))
	}

	if r.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Error.Error()))
	} else if r.Message != "" {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Message))
	}

	if r.RetryCount > 0 {
		sb.WriteString(fmt.Sprintf(" (Retry: %d)", r.RetryCount))
	}

	return sb.String()
}

// ErrorHandler manages error handling during a run
type ErrorHandler struct {
	logger          *zap.Logger
	errorThresholds map[ErrorCategory]int
	errorCounts     map[ErrorCategory]int
	sampleErrors    map[ErrorCategory][]ErrorRecord
	stageErrors     map[string]int
	mu              sync.Mutex
	maxSamples      int
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	// Default error thresholds by category. Row-level problems are the
	// normal business of a cleaning run; systemic problems are not.
	defaultThresholds := map[ErrorCategory]int{
		ErrorCategoryWarning:         1000,
		ErrorCategoryRowLevel:        0, // Unlimited; rejections are expected
		ErrorCategoryChunkLevel:      10,
		ErrorCategorySourceLevel:     1,
		ErrorCategorySinkLevel:       1,
		ErrorCategoryConnectionLevel: 3,
		ErrorCategorySystemLevel:     1,
		ErrorCategoryCritical:        0,
	}

	thresholds := make(map[ErrorCategory]int)
	for category, threshold := range defaultThresholds {
		thresholds[category] = threshold
	}

	return &ErrorHandler{
		logger:          logger,
		errorThresholds: thresholds,
		errorCounts:     make(map[ErrorCategory]int),
		sampleErrors:    make(map[ErrorCategory][]ErrorRecord),
		stageErrors:     make(map[string]int),
		maxSamples:      5, // Store up to 5 sample errors per category
	}
}

// HandleError processes an error and determines action. Row-level
// errors never abort the run; source and sink errors always do, since
// a half-loaded batch is worse than no batch.
func (eh *ErrorHandler) HandleError(record ErrorRecord) Action {
	eh.RecordError(record)

	switch record.Category {
	case ErrorCategoryNone, ErrorCategoryWarning:
		return ActionContinue

	case ErrorCategoryRowLevel:
		return ActionSkipRow

	case ErrorCategoryChunkLevel:
		if record.Recoverable && record.RetryCount < 2 {
			return ActionRetry
		}
		return ActionSkipChunk

	case ErrorCategoryConnectionLevel:
		if record.RetryCount < 3 {
			if eh.logger != nil {
				eh.logger.Warn("Retrying after connection error",
					zap.String("stage", record.Stage),
					zap.Int("retry", record.RetryCount+1),
					zap.String("error", record.Message))
			}
			return ActionRetry
		}
		return ActionAbort

	case ErrorCategorySourceLevel, ErrorCategorySinkLevel,
		ErrorCategorySystemLevel, ErrorCategoryCritical:
		if eh.logger != nil {
			eh.logger.Error("Systemic error, aborting run",
				zap.String("category", record.Category.String()),
				zap.String("stage", record.Stage),
				zap.String("error", record.Message))
		}
		return ActionAbort

	default:
		return ActionContinue
	}
}

// ShouldAbortRun determines if accumulated errors warrant aborting
func (eh *ErrorHandler) ShouldAbortRun() bool {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	if eh.errorCounts[ErrorCategoryCritical] > 0 {
		return true
	}

	for _, category := range []ErrorCategory{
		ErrorCategorySourceLevel,
		ErrorCategorySinkLevel,
		ErrorCategorySystemLevel,
	} {
		if eh.errorCounts[category] >= eh.errorThresholds[category] &&
			eh.errorCounts[category] > 0 {
			return true
		}
	}

	if count := eh.errorCounts[ErrorCategoryConnectionLevel]; count >= eh.errorThresholds[ErrorCategoryConnectionLevel] {
		return true
	}

	if count := eh.errorCounts[ErrorCategoryChunkLevel]; count >= eh.errorThresholds[ErrorCategoryChunkLevel] {
		return true
	}

	return false
}

// ShouldRetry determines if operation should be retried
func (eh *ErrorHandler) ShouldRetry(record ErrorRecord) bool {
	if record.RetryCount >= 3 {
		return false
	}

	switch record.Category {
	case ErrorCategoryConnectionLevel:
		return true

	case ErrorCategoryChunkLevel:
		return record.RetryCount < 2

	default:
		// Row rejections are terminal and systemic errors are fatal
		return false
	}
}

// RecordError saves an error occurrence
func (eh *ErrorHandler) RecordError(record ErrorRecord) {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	eh.errorCounts[record.Category]++

	samples := eh.sampleErrors[record.Category]
	if len(samples) < eh.maxSamples {
		eh.sampleErrors[record.Category] = append(samples, record)
	}

	if record.Stage != "" {
		eh.stageErrors[record.Stage]++
	}

	if eh.logger != nil {
		logLevel := zap.InfoLevel

		switch record.Category {
		case ErrorCategoryWarning, ErrorCategoryConnectionLevel, ErrorCategoryChunkLevel:
			logLevel = zap.WarnLevel
		case ErrorCategorySourceLevel, ErrorCategorySinkLevel,
			ErrorCategorySystemLevel, ErrorCategoryCritical:
			logLevel = zap.ErrorLevel
		default:
			logLevel = zap.InfoLevel
		}

		eh.logger.Log(logLevel, "Pipeline error",
			zap.String("category", record.Category.String()),
			zap.String("stage", record.Stage),
			zap.String("error", record.Message),
			zap.Bool("recoverable", record.Recoverable),
			zap.Int("retryCount", record.RetryCount))
	}
}

// GetErrorSummary generates an error summary report
func (eh *ErrorHandler) GetErrorSummary() map[ErrorCategory]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	summary := make(map[ErrorCategory]int)
	for category, count := range eh.errorCounts {
		summary[category] = count
	}

	return summary
}

// GetErrorSamples returns sample errors for each category
func (eh *ErrorHandler) GetErrorSamples() map[ErrorCategory][]ErrorRecord {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	samples := make(map[ErrorCategory][]ErrorRecord)
	for category, records := range eh.sampleErrors {
		categorySamples := make([]ErrorRecord, len(records))
		copy(categorySamples, records)
		samples[category] = categorySamples
	}

	return samples
}
