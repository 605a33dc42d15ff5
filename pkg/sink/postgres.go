// pkg/sink/postgres.go
package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/connector"
	"github.com/David-Botos/sales-ingress/pkg/converter"
	"github.com/David-Botos/sales-ingress/pkg/model"
)

const uniqueViolation = "23505"

// PostgresSink persists cleaned records and the audit trail to
// PostgreSQL. Bulk loads use COPY inside a transaction so a failed
// chunk leaves nothing behind.
type PostgresSink struct {
	postgres  *connector.PostgresConnector
	converter *converter.RowConverter
	logger    *zap.Logger

	schema   string
	runID    uuid.UUID
	truncate bool
}

// NewPostgresSink creates a sink writing into the given schema.
// When truncate is set, the cleaned table is emptied before the first
// load so a re-run replaces the batch instead of colliding with it.
func NewPostgresSink(
	postgres *connector.PostgresConnector,
	schema string,
	runID uuid.UUID,
	truncate bool,
) *PostgresSink {
	return &PostgresSink{
		postgres:  postgres,
		converter: converter.NewRowConverter(),
		logger:    zap.L().Named("postgres-sink"),
		schema:    schema,
		runID:     runID,
		truncate:  truncate,
	}
}

// EnsureSchema provisions the cleaned table, its audit tables, and the
// secondary indexes.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	tables := []model.TableMetadata{
		model.CleanedSalesMetadata(s.schema),
		model.RejectedRowsMetadata(s.schema),
		model.CleaningOperationsMetadata(s.schema),
	}

	for _, metadata := range tables {
		query := s.createTableSQL(metadata)
		if _, err := s.postgres.ExecWithTimeout(ctx, query, time.Minute); err != nil {
			return fmt.Errorf("failed to create table %s: %w", metadata.FullName(), err)
		}
		s.logger.Info("Ensured table",
			zap.String("schema", metadata.Schema),
			zap.String("table", metadata.Table))
	}

	for _, query := range s.indexSQL() {
		if _, err := s.postgres.ExecWithTimeout(ctx, query, time.Minute); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if s.truncate {
		query := fmt.Sprintf("TRUNCATE TABLE %s.%s", s.schema, model.CleanedSalesTable)
		if _, err := s.postgres.ExecWithTimeout(ctx, query, time.Minute); err != nil {
			return fmt.Errorf("failed to truncate %s.%s: %w", s.schema, model.CleanedSalesTable, err)
		}
		s.logger.Info("Truncated cleaned table before load",
			zap.String("schema", s.schema),
			zap.String("table", model.CleanedSalesTable))
	}

	return nil
}

// createTableSQL renders the CREATE TABLE statement for a table.
// Kept free of side effects so provisioning is testable without a
// database.
func (s *PostgresSink) createTableSQL(metadata model.TableMetadata) string {
	defs := s.converter.GenerateColumnDefinitions(&metadata)

	if metadata.Table == model.CleanedSalesTable {
		// Invariants the cleaner guarantees, enforced at rest as well
		defs = append(defs,
			"CHECK (quantity >= 0)",
			"CHECK (total_amount >= 0)")
	}

	if len(metadata.PrimaryKeys) > 0 {
		defs = append(defs,
			fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(metadata.PrimaryKeys, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (%s)",
		metadata.Schema, metadata.Table, strings.Join(defs, ", "))
}

// indexSQL renders the secondary indexes on the cleaned table. Lookup
// performance only; uniqueness is carried by the primary key.
func (s *PostgresSink) indexSQL() []string {
	return []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_customer_id ON %s.%s (customer_id)",
			model.CleanedSalesTable, s.schema, model.CleanedSalesTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_purchase_date ON %s.%s (purchase_date)",
			model.CleanedSalesTable, s.schema, model.CleanedSalesTable),
	}
}

// PersistCleaned bulk-loads the cleaned batch via COPY
func (s *PostgresSink) PersistCleaned(ctx context.Context, records []model.CleanRecord) (int64, error) {
	metadata := model.CleanedSalesMetadata(s.schema)

	args := make([][]interface{}, len(records))
	for i, rec := range records {
		args[i] = s.converter.CleanedRowArgs(rec, s.runID)
	}

	inserted, err := s.copyRows(ctx, metadata, args)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, fmt.Errorf("duplicate transaction_id reached the sink, batch was not deduplicated: %w", err)
		}
		return 0, fmt.Errorf("failed to persist cleaned records: %w", err)
	}

	s.logger.Info("Persisted cleaned records",
		zap.Int64("rows", inserted),
		zap.String("run_id", s.runID.String()))
	return inserted, nil
}

// PersistRejections appends the run's rejections to the audit table
func (s *PostgresSink) PersistRejections(ctx context.Context, rejections []model.Rejection) (int64, error) {
	metadata := model.RejectedRowsMetadata(s.schema)

	args := make([][]interface{}, 0, len(rejections))
	for _, rej := range rejections {
		row, err := s.converter.RejectionArgs(rej, s.runID)
		if err != nil {
			return 0, err
		}
		args = append(args, row)
	}

	inserted, err := s.copyRows(ctx, metadata, args)
	if err != nil {
		return 0, fmt.Errorf("failed to persist rejections: %w", err)
	}
	return inserted, nil
}

// PersistOperations appends the run's cleaning operations to the audit table
func (s *PostgresSink) PersistOperations(ctx context.Context, operations []model.CleaningOperation) (int64, error) {
	metadata := model.CleaningOperationsMetadata(s.schema)

	args := make([][]interface{}, len(operations))
	for i, op := range operations {
		args[i] = s.converter.OperationArgs(op, s.runID)
	}

	inserted, err := s.copyRows(ctx, metadata, args)
	if err != nil {
		return 0, fmt.Errorf("failed to persist cleaning operations: %w", err)
	}
	return inserted, nil
}

// copyRows loads rows into a table with COPY inside a transaction
func (s *PostgresSink) copyRows(
	ctx context.Context,
	metadata model.TableMetadata,
	rows [][]interface{},
) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.postgres.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	columns := make([]string, len(metadata.Columns))
	for i, col := range metadata.Columns {
		columns[i] = col.Name
	}

	var stmt *sql.Stmt
	stmt, err = tx.PrepareContext(ctx, pq.CopyInSchema(metadata.Schema, metadata.Table, columns...))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare COPY statement: %w", err)
	}

	for _, row := range rows {
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("COPY buffer write failed: %w", err)
		}
	}

	// Flush the COPY buffer
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("COPY flush failed: %w", err)
	}

	if err = stmt.Close(); err != nil {
		return 0, fmt.Errorf("failed to close COPY statement: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return int64(len(rows)), nil
}

// Close is a no-op: the connector owns the connection pool
func (s *PostgresSink) Close() error {
	return nil
}
