// pkg/model/metadata.go
package model

import "strings"

// TableMetadata contains the structure information for a database table
type TableMetadata struct {
	Schema      string   // Schema name
	Table       string   // Table name
	Columns     []Column // Column definitions
	PrimaryKeys []string // List of primary key column names
}

// Column represents metadata about a database column
type Column struct {
	Name         string // Column name
	PgType       string // PostgreSQL type
	Nullable     bool   // Whether column allows NULL values
	IsPrimaryKey bool   // Whether column is part of primary key
}

// GetColumnByName returns a column by name (case-insensitive)
// Returns nil if column not found
func (tm *TableMetadata) GetColumnByName(name string) *Column {
	normalizedName := strings.ToLower(name)
	for i, col := range tm.Columns {
		if strings.ToLower(col.Name) == normalizedName {
			return &tm.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the column names in declaration order
func (tm *TableMetadata) ColumnNames() []string {
	names := make([]string, len(tm.Columns))
	for i, col := range tm.Columns {
		names[i] = col.Name
	}
	return names
}

// FullName returns the fully qualified table name
func (tm *TableMetadata) FullName() string {
	return tm.Schema + "." + tm.Table
}

// Table names for the cleaned output and the audit trail
const (
	CleanedSalesTable       = "cleaned_sales"
	RejectedRowsTable       = "rejected_rows"
	CleaningOperationsTable = "cleaning_operations"
)

// CleanedSalesMetadata returns the fixed structure of the cleaned sales
// table. Column order here is the column order everywhere: provisioning,
// bulk load, and verification all derive from this one definition.
func CleanedSalesMetadata(schema string) TableMetadata {
	return TableMetadata{
		Schema: schema,
		Table:  CleanedSalesTable,
		Columns: []Column{
			{Name: "transaction_id", PgType: "BIGINT", Nullable: false, IsPrimaryKey: true},
			{Name: "customer_id", PgType: "BIGINT", Nullable: true},
			{Name: "customer_name", PgType: "TEXT", Nullable: true},
			{Name: "email", PgType: "TEXT", Nullable: true},
			{Name: "purchase_date", PgType: "DATE", Nullable: false},
			{Name: "product_id", PgType: "BIGINT", Nullable: true},
			{Name: "category", PgType: "TEXT", Nullable: false},
			{Name: "price", PgType: "NUMERIC(12,2)", Nullable: true},
			{Name: "quantity", PgType: "BIGINT", Nullable: true},
			{Name: "total_amount", PgType: "NUMERIC(12,2)", Nullable: true},
			{Name: "payment_method", PgType: "TEXT", Nullable: false},
			{Name: "delivery_status", PgType: "TEXT", Nullable: false},
			{Name: "customer_address", PgType: "TEXT", Nullable: true},
			{Name: "run_id", PgType: "UUID", Nullable: false},
		},
		PrimaryKeys: []string{"transaction_id"},
	}
}

// RejectedRowsMetadata returns the structure of the rejection audit
// table. No primary key: a run may reject the same source line more
// than once across re-runs, and the table is append-only.
func RejectedRowsMetadata(schema string) TableMetadata {
	return TableMetadata{
		Schema: schema,
		Table:  RejectedRowsTable,
		Columns: []Column{
			{Name: "run_id", PgType: "UUID", Nullable: false},
			{Name: "line", PgType: "BIGINT", Nullable: false},
			{Name: "transaction_id", PgType: "BIGINT", Nullable: true},
			{Name: "reason", PgType: "TEXT", Nullable: false},
			{Name: "stage", PgType: "TEXT", Nullable: false},
			{Name: "raw_record", PgType: "JSONB", Nullable: true},
		},
	}
}

// CleaningOperationsMetadata returns the structure of the cleaning
// audit table recording every field substitution.
func CleaningOperationsMetadata(schema string) TableMetadata {
	return TableMetadata{
		Schema: schema,
		Table:  CleaningOperationsTable,
		Columns: []Column{
			{Name: "run_id", PgType: "UUID", Nullable: false},
			{Name: "line", PgType: "BIGINT", Nullable: false},
			{Name: "transaction_id", PgType: "BIGINT", Nullable: true},
			{Name: "column_name", PgType: "TEXT", Nullable: false},
			{Name: "original_value", PgType: "TEXT", Nullable: true},
			{Name: "new_value", PgType: "TEXT", Nullable: true},
			{Name: "operation", PgType: "TEXT", Nullable: false},
			{Name: "reason", PgType: "TEXT", Nullable: false},
			{Name: "cleaned_at", PgType: "TIMESTAMPTZ", Nullable: false},
		},
	}
}
