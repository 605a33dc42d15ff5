// pkg/source/csv.go
package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// CSVSource reads the raw sales export from a local CSV file. The
// parser is deliberately tolerant: real exports arrive with byte-order
// marks, ragged rows, and stray quotes, and a malformed row should
// become a rejection downstream rather than kill the run.
type CSVSource struct {
	path   string
	logger *zap.Logger

	// Counters populated by Load for the run summary
	PaddedRows    int
	TruncatedRows int
	SkippedRows   int
}

// NewCSVSource creates a source reading from the given file path
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{
		path:   path,
		logger: zap.L().Named("csv-source"),
	}
}

// Name identifies the source for logging and metrics
func (s *CSVSource) Name() string {
	return fmt.Sprintf("csv:%s", s.path)
}

// Load reads and parses the whole export, preserving file order.
// Line numbers are physical file rows: the header is line 1, the first
// data row line 2.
func (s *CSVSource) Load(ctx context.Context) ([]model.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file %s: %w", s.path, err)
	}

	return s.parse(data)
}

func (s *CSVSource) parse(data []byte) ([]model.RawRecord, error) {
	// Strip a UTF-8 BOM or transcode from UTF-16 when a BOM announces it
	decoded := transform.NewReader(bytes.NewReader(data),
		unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	// Variable field counts are handled below with padding/truncation
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file %s: no header row", s.path)
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, fmt.Errorf("invalid header in %s: %w", s.path, err)
	}

	want := len(header)
	var records []model.RawRecord
	line := 1 // header

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++

		if err != nil {
			s.SkippedRows++
			s.logger.Warn("skipping unreadable row",
				zap.Int("line", line),
				zap.Error(err))
			continue
		}

		if len(row) < want {
			s.PaddedRows++
			s.logger.Debug("padding short row",
				zap.Int("line", line),
				zap.Int("fields", len(row)),
				zap.Int("expected", want))
			padded := make([]string, want)
			copy(padded, row)
			row = padded
		} else if len(row) > want {
			s.TruncatedRows++
			s.logger.Debug("truncating long row",
				zap.Int("line", line),
				zap.Int("fields", len(row)),
				zap.Int("expected", want))
			row = row[:want]
		}

		records = append(records, recordFromRow(row, index, line))
	}

	s.logger.Info("loaded csv source",
		zap.String("path", s.path),
		zap.Int("rows", len(records)),
		zap.Int("padded", s.PaddedRows),
		zap.Int("truncated", s.TruncatedRows),
		zap.Int("skipped", s.SkippedRows))

	return records, nil
}

// columnIndex maps each expected column name to its position in the
// header row, case-insensitively. All 13 columns must be present.
func columnIndex(header []string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		positions[strings.ToLower(strings.TrimSpace(h))] = i
	}

	index := make(map[string]int, len(expectedColumns))
	var missing []string
	for _, name := range expectedColumns {
		pos, ok := positions[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		index[name] = pos
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

func recordFromRow(row []string, index map[string]int, line int) model.RawRecord {
	field := func(name string) string {
		return row[index[name]]
	}
	return model.RawRecord{
		TransactionID:   field("transaction_id"),
		CustomerID:      field("customer_id"),
		CustomerName:    field("customer_name"),
		Email:           field("email"),
		PurchaseDate:    field("purchase_date"),
		ProductID:       field("product_id"),
		Category:        field("category"),
		Price:           field("price"),
		Quantity:        field("quantity"),
		TotalAmount:     field("total_amount"),
		PaymentMethod:   field("payment_method"),
		DeliveryStatus:  field("delivery_status"),
		CustomerAddress: field("customer_address"),
		Line:            line,
	}
}
