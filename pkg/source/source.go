// pkg/source/source.go
package source

import (
	"context"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// RecordSource loads the raw sales export as an ordered sequence.
// Order is load-bearing: deduplication keeps the first occurrence of
// each transaction id, so a source must return rows exactly as the
// export supplies them.
type RecordSource interface {
	// Load reads the full batch. The returned slice preserves source
	// order and every record carries its 1-based line number.
	Load(ctx context.Context) ([]model.RawRecord, error)

	// Name identifies the source for logging and metrics
	Name() string
}

// Canonical column names of the sales export, in export order
var expectedColumns = []string{
	"transaction_id",
	"customer_id",
	"customer_name",
	"email",
	"purchase_date",
	"product_id",
	"category",
	"price",
	"quantity",
	"total_amount",
	"payment_method",
	"delivery_status",
	"customer_address",
}
