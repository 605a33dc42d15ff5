// pkg/converter/converter.go
package converter

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// RowConverter renders table metadata into Postgres DDL fragments and
// binds domain values to driver arguments. Column order is taken from
// the metadata, so provisioning, bulk load, and verification all agree
// by construction.
type RowConverter struct {
	logger *zap.Logger
}

// NewRowConverter creates a new row converter
func NewRowConverter() *RowConverter {
	return &RowConverter{
		logger: zap.L().Named("row-converter"),
	}
}

// GenerateColumnDefinitions creates PostgreSQL column definitions
func (c *RowConverter) GenerateColumnDefinitions(metadata *model.TableMetadata) []string {
	definitions := make([]string, 0, len(metadata.Columns))

	for _, col := range metadata.Columns {
		nullability := "NULL"
		if col.IsPrimaryKey || !col.Nullable {
			nullability = "NOT NULL"
		}

		def := fmt.Sprintf("%s %s %s",
			quoteIdentifier(col.Name),
			col.PgType,
			nullability)

		definitions = append(definitions, def)
	}

	return definitions
}

// ColumnList returns the comma-joined quoted column names in
// declaration order, for use in COPY and SELECT statements.
func (c *RowConverter) ColumnList(metadata *model.TableMetadata) string {
	quoted := make([]string, len(metadata.Columns))
	for i, col := range metadata.Columns {
		quoted[i] = quoteIdentifier(col.Name)
	}
	return strings.Join(quoted, ", ")
}

// quoteIdentifier properly quotes and escapes a PostgreSQL identifier
func quoteIdentifier(name string) string {
	return fmt.Sprintf("\"%s\"", strings.ToLower(strings.ReplaceAll(name, "\"", "\"\"")))
}
