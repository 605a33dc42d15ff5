// pkg/converter/converter_test.go
package converter

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

func TestGenerateColumnDefinitions(t *testing.T) {
	metadata := &model.TableMetadata{
		Schema: "public",
		Table:  "cleaned_sales",
		Columns: []model.Column{
			{Name: "transaction_id", PgType: "BIGINT", Nullable: false, IsPrimaryKey: true},
			{Name: "customer_name", PgType: "TEXT", Nullable: true},
			{Name: "run_id", PgType: "UUID", Nullable: false},
		},
	}

	defs := NewRowConverter().GenerateColumnDefinitions(metadata)
	if len(defs) != 3 {
		t.Fatalf("got %d definitions, want 3", len(defs))
	}

	want := []string{
		`"transaction_id" BIGINT NOT NULL`,
		`"customer_name" TEXT NULL`,
		`"run_id" UUID NOT NULL`,
	}
	for i, def := range defs {
		if def != want[i] {
			t.Errorf("definition %d = %q, want %q", i, def, want[i])
		}
	}
}

func TestColumnList(t *testing.T) {
	metadata := model.RejectedRowsMetadata("public")
	list := NewRowConverter().ColumnList(&metadata)

	if !strings.HasPrefix(list, `"run_id", "line"`) {
		t.Errorf("column list does not start in declaration order: %s", list)
	}
	if got := strings.Count(list, `"`); got != len(metadata.Columns)*2 {
		t.Errorf("column list quoting off: %s", list)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"transaction_id", `"transaction_id"`},
		{"TRANSACTION_ID", `"transaction_id"`},
		{`evil"name`, `"evil""name"`},
	}
	for _, tc := range cases {
		if got := quoteIdentifier(tc.in); got != tc.want {
			t.Errorf("quoteIdentifier(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestCleanedRowArgs(t *testing.T) {
	runID := uuid.New()
	name := "Ana"
	price := decimal.RequireFromString("5")
	total := decimal.RequireFromString("10.005")
	qty := int64(2)

	rec := model.CleanRecord{
		TransactionID:  1,
		CustomerName:   &name,
		PurchaseDate:   time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		Category:       "Books",
		Price:          &price,
		Quantity:       &qty,
		TotalAmount:    &total,
		PaymentMethod:  "PayPal",
		DeliveryStatus: "Delivered",
	}

	args := NewRowConverter().CleanedRowArgs(rec, runID)

	metadata := model.CleanedSalesMetadata("public")
	if len(args) != len(metadata.Columns) {
		t.Fatalf("got %d args, want %d (one per column)", len(args), len(metadata.Columns))
	}

	if args[0] != int64(1) {
		t.Errorf("transaction_id arg = %v", args[0])
	}
	if args[1] != nil {
		t.Errorf("absent customer_id should bind as nil, got %v", args[1])
	}
	if args[2] != "Ana" {
		t.Errorf("customer_name arg = %v", args[2])
	}
	// NUMERIC values bind as fixed two-digit strings
	if args[7] != "5.00" {
		t.Errorf("price arg = %v, want \"5.00\"", args[7])
	}
	if args[9] != "10.01" {
		t.Errorf("total_amount arg = %v, want \"10.01\"", args[9])
	}
	if args[len(args)-1] != runID.String() {
		t.Errorf("run_id arg = %v, want %s", args[len(args)-1], runID)
	}
}

func TestRejectionArgs(t *testing.T) {
	runID := uuid.New()
	id := int64(42)
	rej := model.Rejection{
		Line:          7,
		TransactionID: &id,
		Reason:        model.RejectReasonUnparsableDate,
		Stage:         model.StageClean,
		Raw: model.RawRecord{
			TransactionID: "42",
			PurchaseDate:  "not-a-date",
			Line:          7,
		},
	}

	args, err := NewRowConverter().RejectionArgs(rej, runID)
	if err != nil {
		t.Fatalf("RejectionArgs: %v", err)
	}
	if len(args) != 6 {
		t.Fatalf("got %d args, want 6", len(args))
	}

	if args[0] != runID.String() || args[1] != int64(7) || args[2] != int64(42) {
		t.Errorf("identity args = %v", args[:3])
	}
	if args[3] != "UnparsableDate" || args[4] != model.StageClean {
		t.Errorf("reason/stage args = %v %v", args[3], args[4])
	}

	var doc map[string]string
	if err := json.Unmarshal([]byte(args[5].(string)), &doc); err != nil {
		t.Fatalf("raw record payload is not JSON: %v", err)
	}
	if doc["transaction_id"] != "42" || doc["purchase_date"] != "not-a-date" {
		t.Errorf("raw record payload = %v", doc)
	}
	if len(doc) != 13 {
		t.Errorf("raw record payload has %d fields, want 13", len(doc))
	}
}

func TestOperationArgs(t *testing.T) {
	runID := uuid.New()
	id := int64(9)
	op := model.CleaningOperation{
		Line:          3,
		TransactionID: &id,
		ColumnName:    "total_amount",
		OriginalValue: decimal.RequireFromString("-20"),
		NewValue:      "20.00",
		Operation:     model.OpSignNormalization,
		Reason:        "negative_quantity",
		CleanedAt:     time.Date(2024, time.April, 2, 12, 0, 0, 0, time.UTC),
	}

	args := NewRowConverter().OperationArgs(op, runID)
	if len(args) != 9 {
		t.Fatalf("got %d args, want 9", len(args))
	}
	if args[2] != int64(9) || args[3] != "total_amount" {
		t.Errorf("identity args = %v", args[:4])
	}
	if args[4] != "-20.00" {
		t.Errorf("original value = %v, want \"-20.00\"", args[4])
	}
	if args[5] != "20.00" {
		t.Errorf("new value = %v, want \"20.00\"", args[5])
	}
}

func TestAuditText(t *testing.T) {
	dec := decimal.RequireFromString("1.5")
	str := "x"
	n := int64(7)

	cases := []struct {
		in   interface{}
		want interface{}
	}{
		{nil, nil},
		{"plain", "plain"},
		{&str, "x"},
		{(*string)(nil), nil},
		{&n, int64(7)},
		{dec, "1.50"},
		{&dec, "1.50"},
		{time.Date(2024, time.May, 3, 0, 0, 0, 0, time.UTC), "2024-05-03"},
		{int64(-3), "-3"},
	}
	for _, tc := range cases {
		if got := auditText(tc.in); got != tc.want {
			t.Errorf("auditText(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
