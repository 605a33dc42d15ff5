// pkg/sink/sink.go
package sink

import (
	"context"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// Sink persists the output of a cleaning run. Implementations must
// treat every error they return as systemic: row-level problems are
// settled before anything reaches a sink.
type Sink interface {
	// EnsureSchema provisions the output and audit tables
	EnsureSchema(ctx context.Context) error

	// PersistCleaned writes the cleaned batch. A uniqueness violation on
	// transaction_id means deduplication was skipped and is fatal.
	PersistCleaned(ctx context.Context, records []model.CleanRecord) (int64, error)

	// PersistRejections appends the run's rejections to the audit table
	PersistRejections(ctx context.Context, rejections []model.Rejection) (int64, error)

	// PersistOperations appends the run's cleaning operations to the audit table
	PersistOperations(ctx context.Context, operations []model.CleaningOperation) (int64, error)

	// Close releases sink resources
	Close() error
}
