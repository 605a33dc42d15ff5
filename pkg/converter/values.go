// pkg/converter/values.go
package converter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// CleanedRowArgs binds a cleaned record to driver arguments in
// CleanedSalesMetadata column order.
func (c *RowConverter) CleanedRowArgs(rec model.CleanRecord, runID uuid.UUID) []interface{} {
	return []interface{}{
		rec.TransactionID,
		nullInt64(rec.CustomerID),
		nullString(rec.CustomerName),
		nullString(rec.Email),
		rec.PurchaseDate,
		nullInt64(rec.ProductID),
		rec.Category,
		nullDecimal(rec.Price),
		nullInt64(rec.Quantity),
		nullDecimal(rec.TotalAmount),
		rec.PaymentMethod,
		rec.DeliveryStatus,
		nullString(rec.CustomerAddress),
		runID.String(),
	}
}

// RejectionArgs binds a rejection to driver arguments in
// RejectedRowsMetadata column order. The raw record is serialized to
// JSON so the audit trail preserves the input exactly as received.
func (c *RowConverter) RejectionArgs(rej model.Rejection, runID uuid.UUID) ([]interface{}, error) {
	raw, err := json.Marshal(rawRecordDoc(rej.Raw))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize raw record for line %d: %w", rej.Line, err)
	}

	return []interface{}{
		runID.String(),
		int64(rej.Line),
		nullInt64(rej.TransactionID),
		rej.Reason.String(),
		rej.Stage,
		string(raw),
	}, nil
}

// OperationArgs binds a cleaning operation to driver arguments in
// CleaningOperationsMetadata column order.
func (c *RowConverter) OperationArgs(op model.CleaningOperation, runID uuid.UUID) []interface{} {
	return []interface{}{
		runID.String(),
		int64(op.Line),
		nullInt64(op.TransactionID),
		op.ColumnName,
		auditText(op.OriginalValue),
		auditText(op.NewValue),
		op.Operation,
		op.Reason,
		op.CleanedAt,
	}
}

// rawRecordDoc shapes a raw record for the JSONB audit column using the
// source's own column names.
func rawRecordDoc(r model.RawRecord) map[string]string {
	return map[string]string{
		"transaction_id":   r.TransactionID,
		"customer_id":      r.CustomerID,
		"customer_name":    r.CustomerName,
		"email":            r.Email,
		"purchase_date":    r.PurchaseDate,
		"product_id":       r.ProductID,
		"category":         r.Category,
		"price":            r.Price,
		"quantity":         r.Quantity,
		"total_amount":     r.TotalAmount,
		"payment_method":   r.PaymentMethod,
		"delivery_status":  r.DeliveryStatus,
		"customer_address": r.CustomerAddress,
	}
}

// nullString converts an optional string to a driver argument
func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// nullInt64 converts an optional int64 to a driver argument
func nullInt64(n *int64) interface{} {
	if n == nil {
		return nil
	}
	return *n
}

// nullDecimal converts an optional decimal to a driver argument.
// NUMERIC columns are bound as fixed two-digit strings so the driver
// never round-trips through float64.
func nullDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.StringFixed(2)
}

// auditText renders a cleaning operation value for the TEXT audit
// columns. Nil stays NULL; everything else gets a stable textual form.
func auditText(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	case *string:
		return nullString(val)
	case *int64:
		return nullInt64(val)
	case *decimal.Decimal:
		return nullDecimal(val)
	case decimal.Decimal:
		return val.StringFixed(2)
	case time.Time:
		return val.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", val)
	}
}
