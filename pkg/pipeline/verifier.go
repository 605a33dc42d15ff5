// pkg/pipeline/verifier.go
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/connector"
	"github.com/David-Botos/sales-ingress/pkg/model"
)

// IntegrityIssue represents a data integrity issue found at rest
type IntegrityIssue struct {
	IssueType    string
	Description  string
	AffectedRows int64
}

// RowDiscrepancy represents a mismatch between an in-memory record and
// its persisted row
type RowDiscrepancy struct {
	TransactionID int64
	ColumnName    string
	Expected      string
	Actual        string
}

// VerificationReport contains the results of a post-persist verification
type VerificationReport struct {
	Schema           string
	Table            string
	VerificationTime time.Time
	RowCountMatches  bool
	ExpectedRowCount int64
	ActualRowCount   int64
	KeysUnique       bool
	DistinctKeyCount int64
	IntegrityIssues  []IntegrityIssue
	SampleSize       int
	Discrepancies    []RowDiscrepancy
	Duration         time.Duration
}

// Passed reports whether every check succeeded
func (r *VerificationReport) Passed() bool {
	return r.RowCountMatches && r.KeysUnique &&
		len(r.IntegrityIssues) == 0 && len(r.Discrepancies) == 0
}

// Verifier checks the persisted batch against what the pipeline
// produced in memory. It only ever reads.
type Verifier struct {
	postgres   *connector.PostgresConnector
	logger     *zap.Logger
	schema     string
	runID      uuid.UUID
	sampleSize int
	timeout    time.Duration
}

// NewVerifier creates a new verifier for one run
func NewVerifier(
	postgres *connector.PostgresConnector,
	schema string,
	runID uuid.UUID,
	sampleSize int,
) *Verifier {
	return &Verifier{
		postgres:   postgres,
		logger:     zap.L().Named("verifier"),
		schema:     schema,
		runID:      runID,
		sampleSize: sampleSize,
		timeout:    time.Minute * 5,
	}
}

// WithTimeout sets a custom timeout for verification queries
func (v *Verifier) WithTimeout(timeout time.Duration) *Verifier {
	v.timeout = timeout
	return v
}

// VerifyRun runs all post-persist checks for the cleaned batch
func (v *Verifier) VerifyRun(ctx context.Context, records []model.CleanRecord) (*VerificationReport, error) {
	startTime := time.Now()
	report := &VerificationReport{
		Schema:           v.schema,
		Table:            model.CleanedSalesTable,
		VerificationTime: startTime,
		ExpectedRowCount: int64(len(records)),
	}

	v.logger.Info("Verifying persisted batch",
		zap.String("schema", v.schema),
		zap.String("table", model.CleanedSalesTable),
		zap.Int64("expectedRows", report.ExpectedRowCount))

	if err := v.verifyRowCount(ctx, report); err != nil {
		return nil, err
	}

	if err := v.verifyKeyUniqueness(ctx, report); err != nil {
		return nil, err
	}

	if err := v.verifyInvariants(ctx, report); err != nil {
		return nil, err
	}

	if err := v.verifySampleRows(ctx, records, report); err != nil {
		return nil, err
	}

	report.Duration = time.Since(startTime)

	if report.Passed() {
		v.logger.Info("Verification passed",
			zap.Int64("rows", report.ActualRowCount),
			zap.Int("sampleSize", report.SampleSize),
			zap.Duration("duration", report.Duration))
	} else {
		v.logger.Warn("Verification found discrepancies",
			zap.Bool("rowCountMatches", report.RowCountMatches),
			zap.Bool("keysUnique", report.KeysUnique),
			zap.Int("integrityIssues", len(report.IntegrityIssues)),
			zap.Int("sampleDiscrepancies", len(report.Discrepancies)))
	}

	return report, nil
}

// verifyRowCount checks that the table holds exactly the cleaned batch
func (v *Verifier) verifyRowCount(ctx context.Context, report *VerificationReport) error {
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s.%s WHERE run_id = $1",
		v.schema, model.CleanedSalesTable)

	count, err := v.scanInt64(ctx, query, v.runID.String())
	if err != nil {
		return fmt.Errorf("failed to count persisted rows: %w", err)
	}

	report.ActualRowCount = count
	report.RowCountMatches = count == report.ExpectedRowCount

	if !report.RowCountMatches {
		v.logger.Warn("Row count mismatch",
			zap.Int64("expected", report.ExpectedRowCount),
			zap.Int64("actual", count))
	}

	return nil
}

// verifyKeyUniqueness checks the transaction id is unique at rest.
// The primary key should make this impossible; the check proves it.
func (v *Verifier) verifyKeyUniqueness(ctx context.Context, report *VerificationReport) error {
	query := fmt.Sprintf(
		"SELECT COUNT(DISTINCT transaction_id) FROM %s.%s WHERE run_id = $1",
		v.schema, model.CleanedSalesTable)

	distinct, err := v.scanInt64(ctx, query, v.runID.String())
	if err != nil {
		return fmt.Errorf("failed to count distinct keys: %w", err)
	}

	report.DistinctKeyCount = distinct
	report.KeysUnique = distinct == report.ActualRowCount

	return nil
}

// verifyInvariants sweeps the table for rows the cleaner should never
// have emitted
func (v *Verifier) verifyInvariants(ctx context.Context, report *VerificationReport) error {
	checks := []struct {
		issueType   string
		description string
		predicate   string
	}{
		{
			issueType:   "negative_quantity",
			description: "rows with negative quantity",
			predicate:   "quantity < 0",
		},
		{
			issueType:   "negative_total",
			description: "rows with negative total amount",
			predicate:   "total_amount < 0",
		},
		{
			issueType:   "zero_signal_row",
			description: "rows with zero quantity and zero total",
			predicate:   "quantity = 0 AND total_amount = 0",
		},
		{
			issueType:   "total_drift",
			description: "rows where total drifts from price * quantity beyond tolerance",
			predicate: "price IS NOT NULL AND quantity IS NOT NULL AND total_amount IS NOT NULL " +
				"AND ABS(total_amount - price * quantity) > 0.05",
		},
		{
			issueType:   "missing_date",
			description: "rows with a null purchase date",
			predicate:   "purchase_date IS NULL",
		},
	}

	for _, check := range checks {
		query := fmt.Sprintf(
			"SELECT COUNT(*) FROM %s.%s WHERE run_id = $1 AND %s",
			v.schema, model.CleanedSalesTable, check.predicate)

		count, err := v.scanInt64(ctx, query, v.runID.String())
		if err != nil {
			return fmt.Errorf("invariant check %s failed: %w", check.issueType, err)
		}

		if count > 0 {
			report.IntegrityIssues = append(report.IntegrityIssues, IntegrityIssue{
				IssueType:    check.issueType,
				Description:  check.description,
				AffectedRows: count,
			})
			v.logger.Warn("Invariant violated at rest",
				zap.String("check", check.issueType),
				zap.Int64("affectedRows", count))
		}
	}

	return nil
}

// verifySampleRows fetches a spread of records back by key and compares
// field by field
func (v *Verifier) verifySampleRows(
	ctx context.Context,
	records []model.CleanRecord,
	report *VerificationReport,
) error {
	if len(records) == 0 || v.sampleSize <= 0 {
		return nil
	}

	sample := sampleRecords(records, v.sampleSize)
	report.SampleSize = len(sample)

	query := fmt.Sprintf(
		`SELECT customer_id, category, payment_method, delivery_status, quantity, total_amount
		 FROM %s.%s WHERE run_id = $1 AND transaction_id = $2`,
		v.schema, model.CleanedSalesTable)

	for _, rec := range sample {
		rows, err := v.postgres.QueryWithTimeout(ctx, query, v.timeout, v.runID.String(), rec.TransactionID)
		if err != nil {
			return fmt.Errorf("failed to fetch sample row %d: %w", rec.TransactionID, err)
		}

		if !rows.Next() {
			rows.Close()
			report.Discrepancies = append(report.Discrepancies, RowDiscrepancy{
				TransactionID: rec.TransactionID,
				ColumnName:    "transaction_id",
				Expected:      fmt.Sprintf("%d", rec.TransactionID),
				Actual:        "missing",
			})
			continue
		}

		var (
			customerID     sql.NullInt64
			category       string
			paymentMethod  string
			deliveryStatus string
			quantity       sql.NullInt64
			totalAmount    sql.NullString
		)
		err = rows.Scan(&customerID, &category, &paymentMethod, &deliveryStatus, &quantity, &totalAmount)
		rows.Close()
		if err != nil {
			return fmt.Errorf("failed to scan sample row %d: %w", rec.TransactionID, err)
		}

		v.compareSample(rec, customerID, category, paymentMethod, deliveryStatus, quantity, totalAmount, report)
	}

	return nil
}

func (v *Verifier) compareSample(
	rec model.CleanRecord,
	customerID sql.NullInt64,
	category, paymentMethod, deliveryStatus string,
	quantity sql.NullInt64,
	totalAmount sql.NullString,
	report *VerificationReport,
) {
	mismatch := func(column, expected, actual string) {
		report.Discrepancies = append(report.Discrepancies, RowDiscrepancy{
			TransactionID: rec.TransactionID,
			ColumnName:    column,
			Expected:      expected,
			Actual:        actual,
		})
	}

	if !nullableInt64Equal(rec.CustomerID, customerID) {
		mismatch("customer_id", formatNullableInt(rec.CustomerID), formatSQLInt(customerID))
	}
	if rec.Category != category {
		mismatch("category", rec.Category, category)
	}
	if rec.PaymentMethod != paymentMethod {
		mismatch("payment_method", rec.PaymentMethod, paymentMethod)
	}
	if rec.DeliveryStatus != deliveryStatus {
		mismatch("delivery_status", rec.DeliveryStatus, deliveryStatus)
	}
	if !nullableInt64Equal(rec.Quantity, quantity) {
		mismatch("quantity", formatNullableInt(rec.Quantity), formatSQLInt(quantity))
	}
	if !nullableDecimalEqual(rec.TotalAmount, totalAmount) {
		mismatch("total_amount", formatNullableDecimal(rec.TotalAmount), formatSQLString(totalAmount))
	}
}

// scanInt64 runs a single-value count query
func (v *Verifier) scanInt64(ctx context.Context, query string, args ...interface{}) (int64, error) {
	rows, err := v.postgres.QueryWithTimeout(ctx, query, v.timeout, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var value int64
	if rows.Next() {
		if err := rows.Scan(&value); err != nil {
			return 0, err
		}
	} else {
		return 0, fmt.Errorf("no rows returned for count query")
	}

	return value, rows.Err()
}

// sampleRecords takes an evenly spread sample across the batch
func sampleRecords(records []model.CleanRecord, size int) []model.CleanRecord {
	if len(records) <= size {
		return records
	}

	sample := make([]model.CleanRecord, 0, size)
	stride := len(records) / size
	for i := 0; i < len(records) && len(sample) < size; i += stride {
		sample = append(sample, records[i])
	}
	return sample
}

func nullableInt64Equal(expected *int64, actual sql.NullInt64) bool {
	if expected == nil {
		return !actual.Valid
	}
	return actual.Valid && *expected == actual.Int64
}

func nullableDecimalEqual(expected *decimal.Decimal, actual sql.NullString) bool {
	if expected == nil {
		return !actual.Valid
	}
	if !actual.Valid {
		return false
	}
	actualDec, err := decimal.NewFromString(actual.String)
	if err != nil {
		return false
	}
	return expected.Equal(actualDec)
}

func formatNullableInt(v *int64) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%d", *v)
}

func formatSQLInt(v sql.NullInt64) string {
	if !v.Valid {
		return "NULL"
	}
	return fmt.Sprintf("%d", v.Int64)
}

func formatNullableDecimal(v *decimal.Decimal) string {
	if v == nil {
		return "NULL"
	}
	return v.StringFixed(2)
}

func formatSQLString(v sql.NullString) string {
	if !v.Valid {
		return "NULL"
	}
	return v.String
}
