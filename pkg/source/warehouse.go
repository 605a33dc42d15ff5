// pkg/source/warehouse.go
package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/connector"
	"github.com/David-Botos/sales-ingress/pkg/model"
)

// WarehouseSource loads the raw sales export from a Snowflake staging
// table. The staging table must carry a monotonic load-order column:
// LIMIT/OFFSET pagination and the first-seen-wins dedup contract are
// both undefined without a stable ordering.
type WarehouseSource struct {
	conn            *connector.SnowflakeConnector
	schema          string
	table           string
	loadOrderColumn string
	batchSize       int
	logger          *zap.Logger
}

// NewWarehouseSource creates a source reading from the given staging table
func NewWarehouseSource(
	conn *connector.SnowflakeConnector,
	schema, table, loadOrderColumn string,
	batchSize int,
) *WarehouseSource {
	return &WarehouseSource{
		conn:            conn,
		schema:          schema,
		table:           table,
		loadOrderColumn: loadOrderColumn,
		batchSize:       batchSize,
		logger:          zap.L().Named("warehouse-source"),
	}
}

// Name identifies the source for logging and metrics
func (s *WarehouseSource) Name() string {
	return fmt.Sprintf("snowflake:%s.%s", s.schema, s.table)
}

// Load fetches the staging table in batches, ordered by the load-order
// column. Line numbers are assigned sequentially from 2, mirroring the
// CSV convention of a header on line 1.
func (s *WarehouseSource) Load(ctx context.Context) ([]model.RawRecord, error) {
	exists, err := s.conn.HasSchema(s.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to check staging schema %s: %w", s.schema, err)
	}
	if !exists {
		return nil, fmt.Errorf("staging schema %s does not exist", s.schema)
	}

	columns := make([]string, len(expectedColumns))
	for i, name := range expectedColumns {
		columns[i] = strings.ToUpper(name)
	}

	query := fmt.Sprintf("SELECT %s FROM %s.%s ORDER BY %s",
		strings.Join(columns, ", "),
		s.schema, s.table,
		strings.ToUpper(s.loadOrderColumn))

	var records []model.RawRecord
	line := 1

	err = s.conn.BatchQuery(ctx, query, s.batchSize, func(rows *sql.Rows) error {
		fields := make([]sql.NullString, len(expectedColumns))
		dest := make([]interface{}, len(fields))
		for i := range fields {
			dest[i] = &fields[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan staging row: %w", err)
		}

		line++
		records = append(records, recordFromFields(fields, line))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load staging table %s.%s: %w", s.schema, s.table, err)
	}

	s.logger.Info("loaded warehouse source",
		zap.String("table", s.schema+"."+s.table),
		zap.Int("rows", len(records)))

	return records, nil
}

// recordFromFields maps scanned columns to a raw record. NULLs become
// empty strings: the cleaner treats both as absent.
func recordFromFields(fields []sql.NullString, line int) model.RawRecord {
	text := func(i int) string {
		if fields[i].Valid {
			return fields[i].String
		}
		return ""
	}
	return model.RawRecord{
		TransactionID:   text(0),
		CustomerID:      text(1),
		CustomerName:    text(2),
		Email:           text(3),
		PurchaseDate:    text(4),
		ProductID:       text(5),
		Category:        text(6),
		Price:           text(7),
		Quantity:        text(8),
		TotalAmount:     text(9),
		PaymentMethod:   text(10),
		DeliveryStatus:  text(11),
		CustomerAddress: text(12),
		Line:            line,
	}
}
