// pkg/cleaner/dedup.go
package cleaner

import (
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// Deduplicator resolves duplicate transaction ids by first-seen-wins.
// The stage is strictly sequential: which duplicate survives is defined
// solely by input order, so this must never run concurrently with
// itself over one batch.
type Deduplicator struct {
	logger *zap.Logger
}

// NewDeduplicator creates a new deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		logger: zap.L().Named("deduplicator"),
	}
}

// Deduplicate returns, in input order, the first occurrence of every
// parseable transaction id plus every record without one. Records
// without a parseable id are passed through rather than rejected here,
// so "no valid id" and "duplicate id" stay distinguishable causes in
// the report; the cleaner rejects the former as MissingKey downstream.
// Suppressed duplicates come back as DuplicateKey rejections carrying
// the id and source line.
func (d *Deduplicator) Deduplicate(records []model.RawRecord) ([]model.RawRecord, []model.Rejection) {
	seen := make(map[int64]struct{}, len(records))
	kept := make([]model.RawRecord, 0, len(records))
	var rejections []model.Rejection

	for _, rec := range records {
		id, ok := ParseTransactionID(rec.TransactionID)
		if !ok {
			kept = append(kept, rec)
			continue
		}

		if _, dup := seen[id]; dup {
			rejections = append(rejections, model.Rejection{
				Line:          rec.Line,
				TransactionID: &id,
				Reason:        model.RejectReasonDuplicateKey,
				Stage:         model.StageDeduplicate,
				Raw:           rec,
			})
			continue
		}

		seen[id] = struct{}{}
		kept = append(kept, rec)
	}

	if len(rejections) > 0 {
		d.logger.Debug("Suppressed duplicate transaction ids",
			zap.Int("duplicates", len(rejections)),
			zap.Int("kept", len(kept)))
	}

	return kept, rejections
}
