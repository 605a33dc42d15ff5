// pkg/cleaner/cleaner.go
package cleaner

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// RecordCleaner converts raw sales rows into typed, repaired records.
// It holds no per-record state: Clean is a pure function over its input
// and safe for concurrent use by multiple workers.
type RecordCleaner struct {
	logger *zap.Logger
}

// NewRecordCleaner creates a new record cleaner
func NewRecordCleaner() *RecordCleaner {
	return &RecordCleaner{
		logger: zap.L().Named("record-cleaner"),
	}
}

// Clean converts one raw record into a cleaned record or a terminal
// rejection, together with the audit trail of every substitution made.
// Steps run in a fixed order; a malformed field never aborts the rest
// of the record unless it is load-bearing (transaction id, purchase
// date).
func (rc *RecordCleaner) Clean(raw model.RawRecord) (*model.CleanRecord, []model.CleaningOperation, *model.Rejection) {
	var ops []model.CleaningOperation

	// Step 1: keys. A row without a usable transaction id is unusable.
	transactionID, ok := ParseTransactionID(raw.TransactionID)
	if !ok {
		return nil, nil, reject(raw, nil, model.RejectReasonMissingKey)
	}

	customerID, op := parseOptionalID(raw.CustomerID, "customer_id")
	collect(&ops, op)
	productID, op := parseOptionalID(raw.ProductID, "product_id")
	collect(&ops, op)

	// Step 2: free-text trims.
	customerName := trimToPtr(raw.CustomerName)
	customerAddress := trimToPtr(raw.CustomerAddress)

	// Step 3: email.
	email, op := normalizeEmail(raw.Email)
	collect(&ops, op)

	// Step 4: the other load-bearing field.
	purchaseDate, ok := parseDate(raw.PurchaseDate)
	if !ok {
		return nil, nil, reject(raw, &transactionID, model.RejectReasonUnparsableDate)
	}

	// Step 5: category is only trimmed here; the default lands in the
	// repair pass so "absent" stays distinguishable until then.
	category := trimToPtr(raw.Category)

	// Steps 6-7: numeric fields, best effort.
	price, op := parsePrice(raw.Price)
	collect(&ops, op)
	total, op := parseTotalAmount(raw.TotalAmount)
	collect(&ops, op)
	quantity, op := parseQuantity(raw.Quantity)
	collect(&ops, op)

	// Step 8: repair pass.
	status := trimToPtr(raw.DeliveryStatus)
	quantity, total, status, signOps := repairNegativeQuantity(quantity, total, status)
	ops = append(ops, signOps...)

	total, op = reconcileTotalAmount(price, quantity, total)
	collect(&ops, op)
	// The sign must be settled before the price is backed out of the
	// total: a price derived from a negative total would be negative.
	total, op = normalizeResidualNegativeTotal(total)
	collect(&ops, op)
	price, op = derivePriceFromTotal(price, quantity, total)
	collect(&ops, op)

	categoryValue, op := defaultCategory(category)
	collect(&ops, op)
	paymentMethod, op := normalizePaymentMethod(raw.PaymentMethod)
	collect(&ops, op)
	deliveryStatus, op := defaultDeliveryStatus(status)
	collect(&ops, op)

	// Step 9: a row with zero quantity and zero total carries no signal.
	if quantity != nil && *quantity == 0 && total != nil && total.IsZero() {
		return nil, nil, reject(raw, &transactionID, model.RejectReasonZeroSignalRow)
	}

	// Stamp provenance on the collected operations.
	now := time.Now().UTC()
	for i := range ops {
		ops[i].Line = raw.Line
		ops[i].TransactionID = &transactionID
		ops[i].CleanedAt = now
	}

	record := &model.CleanRecord{
		TransactionID:   transactionID,
		CustomerID:      customerID,
		CustomerName:    customerName,
		Email:           email,
		PurchaseDate:    purchaseDate,
		ProductID:       productID,
		Category:        categoryValue,
		Price:           price,
		Quantity:        quantity,
		TotalAmount:     total,
		PaymentMethod:   paymentMethod,
		DeliveryStatus:  deliveryStatus,
		CustomerAddress: customerAddress,
	}

	return record, ops, nil
}

// CleanRows cleans an already-deduplicated batch sequentially, in
// order. Rejections are collected, never fatal: the batch always runs
// to completion.
func (rc *RecordCleaner) CleanRows(records []model.RawRecord) ([]model.CleanRecord, []model.Rejection, []model.CleaningOperation) {
	cleaned := make([]model.CleanRecord, 0, len(records))
	var rejections []model.Rejection
	var ops []model.CleaningOperation

	for _, raw := range records {
		rec, recOps, rejection := rc.Clean(raw)
		if rejection != nil {
			rejections = append(rejections, *rejection)
			continue
		}
		cleaned = append(cleaned, *rec)
		ops = append(ops, recOps...)
	}

	rc.logger.Debug("Cleaned record batch",
		zap.Int("input", len(records)),
		zap.Int("cleaned", len(cleaned)),
		zap.Int("rejected", len(rejections)),
		zap.Int("operations", len(ops)))

	return cleaned, rejections, ops
}

// CleanAll is the sequential reference pipeline over one ordered batch:
// deduplicate first, then clean each survivor. The parallel manager in
// pkg/pipeline restores output order so its results match this function
// for any worker count.
func CleanAll(records []model.RawRecord) ([]model.CleanRecord, []model.Rejection, []model.CleaningOperation) {
	deduped, rejections := NewDeduplicator().Deduplicate(records)
	cleaned, cleanRejections, ops := NewRecordCleaner().CleanRows(deduped)
	return cleaned, append(rejections, cleanRejections...), ops
}

// ValidateRecord checks the guarantees every cleaned record must
// satisfy. A failure here is a pipeline bug, not a data defect.
func ValidateRecord(rec model.CleanRecord) error {
	if rec.PurchaseDate.IsZero() {
		return fmt.Errorf("record %d: purchase date is zero", rec.TransactionID)
	}
	if rec.Quantity != nil && *rec.Quantity < 0 {
		return fmt.Errorf("record %d: negative quantity %d", rec.TransactionID, *rec.Quantity)
	}
	if rec.Price != nil && rec.Price.IsNegative() {
		return fmt.Errorf("record %d: negative price %s", rec.TransactionID, rec.Price)
	}
	if rec.TotalAmount != nil && rec.TotalAmount.IsNegative() {
		return fmt.Errorf("record %d: negative total %s", rec.TransactionID, rec.TotalAmount)
	}
	if rec.Price != nil && rec.Quantity != nil && rec.TotalAmount != nil {
		expected := rec.Price.Mul(decimal.NewFromInt(*rec.Quantity))
		if rec.TotalAmount.Sub(expected).Abs().GreaterThan(totalTolerance) {
			return fmt.Errorf("record %d: total %s drifts beyond tolerance from %s",
				rec.TransactionID, rec.TotalAmount, expected)
		}
	}
	if rec.Quantity != nil && *rec.Quantity == 0 && rec.TotalAmount != nil && rec.TotalAmount.IsZero() {
		return fmt.Errorf("record %d: zero-signal row survived cleaning", rec.TransactionID)
	}
	if rec.Category == "" || rec.PaymentMethod == "" || rec.DeliveryStatus == "" {
		return fmt.Errorf("record %d: empty categorical field", rec.TransactionID)
	}
	return nil
}

// reject builds a terminal rejection for the clean stage.
func reject(raw model.RawRecord, id *int64, reason model.RejectReason) *model.Rejection {
	return &model.Rejection{
		Line:          raw.Line,
		TransactionID: id,
		Reason:        reason,
		Stage:         model.StageClean,
		Raw:           raw,
	}
}

// collect appends an operation when one was recorded.
func collect(ops *[]model.CleaningOperation, op *model.CleaningOperation) {
	if op != nil {
		*ops = append(*ops, *op)
	}
}
