// pkg/source/csv_test.go
package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const testHeader = "transaction_id,customer_id,customer_name,email,purchase_date," +
	"product_id,category,price,quantity,total_amount,payment_method," +
	"delivery_status,customer_address"

func writeTempCSV(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.csv")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestCSVSourceLoad(t *testing.T) {
	content := testHeader + "\n" +
		"1,100,Ana,ana@example.com,01/02/2024,9,Books,5.00,2,10.00,PayPal,Delivered,Street 1\n" +
		"2,,,,02/02/2024,,,,,,,,\n"

	src := NewCSVSource(writeTempCSV(t, []byte(content)))
	records, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("loaded %d records, want 2", len(records))
	}

	first := records[0]
	if first.TransactionID != "1" || first.CustomerName != "Ana" || first.TotalAmount != "10.00" {
		t.Errorf("first record mapped incorrectly: %+v", first)
	}
	if first.Line != 2 {
		t.Errorf("first data row line = %d, want 2 (header is line 1)", first.Line)
	}
	if records[1].Line != 3 {
		t.Errorf("second data row line = %d, want 3", records[1].Line)
	}
	if records[1].TransactionID != "2" || records[1].CustomerName != "" {
		t.Errorf("sparse record mapped incorrectly: %+v", records[1])
	}
}

func TestCSVSourceUTF8BOM(t *testing.T) {
	content := "\xEF\xBB\xBF" + testHeader + "\n" +
		"1,100,Ana,ana@example.com,01/02/2024,9,Books,5.00,2,10.00,PayPal,Delivered,Street 1\n"

	src := NewCSVSource(writeTempCSV(t, []byte(content)))
	records, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load with UTF-8 BOM: %v", err)
	}
	if len(records) != 1 || records[0].TransactionID != "1" {
		t.Fatalf("BOM not stripped from header: %+v", records)
	}
}

func TestCSVSourceUTF16(t *testing.T) {
	plain := testHeader + "\n" +
		"7,200,Bo,bo@example.com,03/02/2024,4,Toys,2.50,4,10.00,cc,Shipped,Street 7\n"

	endians := map[string]unicode.Endianness{
		"little endian": unicode.LittleEndian,
		"big endian":    unicode.BigEndian,
	}
	for name, endianness := range endians {
		t.Run(name, func(t *testing.T) {
			encoder := unicode.UTF16(endianness, unicode.UseBOM).NewEncoder()
			encoded, _, err := transform.Bytes(encoder, []byte(plain))
			if err != nil {
				t.Fatalf("encoding fixture: %v", err)
			}

			src := NewCSVSource(writeTempCSV(t, encoded))
			records, err := src.Load(context.Background())
			if err != nil {
				t.Fatalf("Load with UTF-16 BOM: %v", err)
			}
			if len(records) != 1 || records[0].TransactionID != "7" || records[0].Category != "Toys" {
				t.Fatalf("UTF-16 content not transcoded: %+v", records)
			}
		})
	}
}

func TestCSVSourceRaggedRows(t *testing.T) {
	content := testHeader + "\n" +
		// short row: trailing columns missing
		"1,100,Ana\n" +
		// long row: one extra field
		"2,200,Bo,bo@example.com,03/02/2024,4,Toys,2.50,4,10.00,cc,Shipped,Street 7,EXTRA\n"

	src := NewCSVSource(writeTempCSV(t, []byte(content)))
	records, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("loaded %d records, want 2", len(records))
	}
	if src.PaddedRows != 1 || src.TruncatedRows != 1 {
		t.Errorf("padded=%d truncated=%d, want 1 and 1", src.PaddedRows, src.TruncatedRows)
	}
	if records[0].CustomerName != "Ana" || records[0].Email != "" || records[0].TotalAmount != "" {
		t.Errorf("short row not padded with empty fields: %+v", records[0])
	}
	if records[1].CustomerAddress != "Street 7" {
		t.Errorf("long row not truncated at the header width: %+v", records[1])
	}
}

func TestCSVSourceCaseInsensitiveHeader(t *testing.T) {
	header := strings.ToUpper(testHeader)
	content := header + "\n" +
		"1,100,Ana,ana@example.com,01/02/2024,9,Books,5.00,2,10.00,PayPal,Delivered,Street 1\n"

	src := NewCSVSource(writeTempCSV(t, []byte(content)))
	records, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load with uppercase header: %v", err)
	}
	if len(records) != 1 || records[0].Email != "ana@example.com" {
		t.Fatalf("uppercase header not matched: %+v", records)
	}
}

func TestCSVSourceReorderedColumns(t *testing.T) {
	content := "customer_name,transaction_id,customer_id,email,purchase_date," +
		"product_id,category,price,quantity,total_amount,payment_method," +
		"delivery_status,customer_address\n" +
		"Ana,1,100,ana@example.com,01/02/2024,9,Books,5.00,2,10.00,PayPal,Delivered,Street 1\n"

	src := NewCSVSource(writeTempCSV(t, []byte(content)))
	records, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if records[0].TransactionID != "1" || records[0].CustomerName != "Ana" {
		t.Errorf("columns mapped by position instead of header: %+v", records[0])
	}
}

func TestCSVSourceMissingColumns(t *testing.T) {
	content := "transaction_id,customer_id\n1,100\n"

	src := NewCSVSource(writeTempCSV(t, []byte(content)))
	_, err := src.Load(context.Background())
	if err == nil {
		t.Fatal("expected an error for an incomplete header")
	}
	if !strings.Contains(err.Error(), "missing required columns") {
		t.Errorf("error = %v, want missing-columns diagnostic", err)
	}
	if !strings.Contains(err.Error(), "purchase_date") {
		t.Errorf("error should name the missing columns: %v", err)
	}
}

func TestCSVSourceEmptyFile(t *testing.T) {
	src := NewCSVSource(writeTempCSV(t, nil))
	if _, err := src.Load(context.Background()); err == nil {
		t.Fatal("expected an error for an empty file")
	}
}

func TestCSVSourceMissingFile(t *testing.T) {
	src := NewCSVSource(filepath.Join(t.TempDir(), "absent.csv"))
	if _, err := src.Load(context.Background()); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestCSVSourceCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewCSVSource(writeTempCSV(t, []byte(testHeader+"\n")))
	if _, err := src.Load(ctx); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}
