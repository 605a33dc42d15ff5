// pkg/cleaner/cleaner_test.go
package cleaner

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// Shared test helpers

func strPtr(s string) *string {
	return &s
}

func int64Ptr(n int64) *int64 {
	return &n
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrString(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

// validRaw returns a fully populated, well-formed raw record
func validRaw(id int64) model.RawRecord {
	return model.RawRecord{
		TransactionID:   fmt.Sprintf("%d", id),
		CustomerID:      "2002",
		CustomerName:    "Jordan Smith",
		Email:           "jordan@example.com",
		PurchaseDate:    "14/03/2024",
		ProductID:       "501",
		Category:        "Books",
		Price:           "10.00",
		Quantity:        "3",
		TotalAmount:     "30.00",
		PaymentMethod:   "Credit Card",
		DeliveryStatus:  "Delivered",
		CustomerAddress: "12 High Street",
		Line:            2,
	}
}

func TestCleanRejectsMissingKey(t *testing.T) {
	cases := []string{"", "   ", "abc", "12.5"}

	rc := NewRecordCleaner()
	for _, rawID := range cases {
		raw := validRaw(1)
		raw.TransactionID = rawID

		rec, ops, rejection := rc.Clean(raw)
		if rec != nil || ops != nil {
			t.Fatalf("Clean with transaction_id %q produced a record, want rejection", rawID)
		}
		if rejection == nil || rejection.Reason != model.RejectReasonMissingKey {
			t.Fatalf("Clean with transaction_id %q rejection = %v, want MissingKey", rawID, rejection)
		}
		if rejection.TransactionID != nil {
			t.Errorf("MissingKey rejection should carry no id, got %d", *rejection.TransactionID)
		}
		if rejection.Stage != model.StageClean {
			t.Errorf("rejection stage = %q, want %q", rejection.Stage, model.StageClean)
		}
	}
}

func TestCleanRejectsUnparsableDate(t *testing.T) {
	cases := []string{"", "2024-03-14", "31/02/2024", "14/13/2024", "yesterday"}

	rc := NewRecordCleaner()
	for _, rawDate := range cases {
		raw := validRaw(7)
		raw.PurchaseDate = rawDate

		rec, _, rejection := rc.Clean(raw)
		if rec != nil {
			t.Fatalf("Clean with purchase_date %q produced a record, want rejection", rawDate)
		}
		if rejection == nil || rejection.Reason != model.RejectReasonUnparsableDate {
			t.Fatalf("Clean with purchase_date %q rejection = %v, want UnparsableDate", rawDate, rejection)
		}
		if rejection.TransactionID == nil || *rejection.TransactionID != 7 {
			t.Errorf("UnparsableDate rejection should carry the parsed id")
		}
	}
}

func TestCleanRejectsZeroSignalRow(t *testing.T) {
	raw := validRaw(9)
	raw.Price = ""
	raw.Quantity = "0"
	raw.TotalAmount = "0.00"

	rec, _, rejection := NewRecordCleaner().Clean(raw)
	if rec != nil {
		t.Fatal("zero quantity and zero total should be rejected")
	}
	if rejection == nil || rejection.Reason != model.RejectReasonZeroSignalRow {
		t.Fatalf("rejection = %v, want ZeroSignalRow", rejection)
	}
}

func TestCleanZeroQuantityWithRevenueSurvives(t *testing.T) {
	raw := validRaw(10)
	raw.Quantity = "0"
	raw.TotalAmount = "25.00"
	raw.Price = ""

	rec, _, rejection := NewRecordCleaner().Clean(raw)
	if rejection != nil {
		t.Fatalf("unexpected rejection: %v", rejection)
	}
	if rec.Quantity == nil || *rec.Quantity != 0 {
		t.Errorf("quantity = %v, want 0", rec.Quantity)
	}
	if rec.TotalAmount == nil || !rec.TotalAmount.Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("total = %v, want 25.00", rec.TotalAmount)
	}
}

func TestCleanWellFormedRecordUntouched(t *testing.T) {
	raw := validRaw(42)

	rec, ops, rejection := NewRecordCleaner().Clean(raw)
	if rejection != nil {
		t.Fatalf("unexpected rejection: %v", rejection)
	}
	if len(ops) != 0 {
		t.Fatalf("well-formed record recorded %d operations, want 0: %v", len(ops), ops)
	}

	if rec.TransactionID != 42 {
		t.Errorf("transaction id = %d, want 42", rec.TransactionID)
	}
	if rec.CustomerID == nil || *rec.CustomerID != 2002 {
		t.Errorf("customer id = %v, want 2002", rec.CustomerID)
	}
	wantDate := time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)
	if !rec.PurchaseDate.Equal(wantDate) {
		t.Errorf("purchase date = %v, want %v", rec.PurchaseDate, wantDate)
	}
	if rec.Category != "Books" || rec.PaymentMethod != "Credit Card" || rec.DeliveryStatus != "Delivered" {
		t.Errorf("categorical fields changed: %q %q %q", rec.Category, rec.PaymentMethod, rec.DeliveryStatus)
	}
}

func TestCleanReturnRow(t *testing.T) {
	raw := validRaw(77)
	raw.Quantity = "-2"
	raw.Price = "10.00"
	raw.TotalAmount = "-20.00"
	raw.DeliveryStatus = ""

	rec, ops, rejection := NewRecordCleaner().Clean(raw)
	if rejection != nil {
		t.Fatalf("unexpected rejection: %v", rejection)
	}

	if rec.Quantity == nil || *rec.Quantity != 2 {
		t.Errorf("quantity = %v, want 2", rec.Quantity)
	}
	if rec.TotalAmount == nil || !rec.TotalAmount.Equal(decimal.RequireFromString("20.00")) {
		t.Errorf("total = %v, want 20.00", rec.TotalAmount)
	}
	if rec.DeliveryStatus != "Returned" {
		t.Errorf("delivery status = %q, want Returned", rec.DeliveryStatus)
	}
	if len(ops) == 0 {
		t.Error("return repair should record operations")
	}
	for _, op := range ops {
		if op.TransactionID == nil || *op.TransactionID != 77 {
			t.Errorf("operation %s missing transaction id provenance", op.ColumnName)
		}
		if op.Line != raw.Line {
			t.Errorf("operation %s line = %d, want %d", op.ColumnName, op.Line, raw.Line)
		}
		if op.CleanedAt.IsZero() {
			t.Errorf("operation %s missing timestamp", op.ColumnName)
		}
	}
}

func TestCleanDirtyRecordRepairs(t *testing.T) {
	raw := model.RawRecord{
		TransactionID:   " 1001 ",
		CustomerID:      "n/a",
		CustomerName:    "  Casey Brown  ",
		Email:           "Casey@Example.COM",
		PurchaseDate:    "01/12/2023",
		ProductID:       "",
		Category:        "",
		Price:           "",
		Quantity:        "4",
		TotalAmount:     "48.00",
		PaymentMethod:   "cc",
		DeliveryStatus:  "",
		CustomerAddress: "",
		Line:            5,
	}

	rec, ops, rejection := NewRecordCleaner().Clean(raw)
	if rejection != nil {
		t.Fatalf("unexpected rejection: %v", rejection)
	}

	if rec.CustomerID != nil {
		t.Errorf("customer id = %v, want absent", rec.CustomerID)
	}
	if !strPtrEqual(rec.CustomerName, strPtr("Casey Brown")) {
		t.Errorf("customer name = %q, want trimmed", strPtrString(rec.CustomerName))
	}
	if !strPtrEqual(rec.Email, strPtr("casey@example.com")) {
		t.Errorf("email = %q, want lowercased", strPtrString(rec.Email))
	}
	if rec.Category != "Unknown" {
		t.Errorf("category = %q, want Unknown", rec.Category)
	}
	// Price derived from total / quantity
	if rec.Price == nil || !rec.Price.Equal(decimal.RequireFromString("12.00")) {
		t.Errorf("price = %v, want 12.00", rec.Price)
	}
	if rec.PaymentMethod != "Credit Card" {
		t.Errorf("payment method = %q, want Credit Card", rec.PaymentMethod)
	}
	if rec.DeliveryStatus != "Unknown" {
		t.Errorf("delivery status = %q, want Unknown", rec.DeliveryStatus)
	}
	if rec.CustomerAddress != nil {
		t.Errorf("customer address = %q, want absent", strPtrString(rec.CustomerAddress))
	}
	if len(ops) == 0 {
		t.Error("dirty record should record operations")
	}

	if err := ValidateRecord(*rec); err != nil {
		t.Errorf("cleaned record fails validation: %v", err)
	}
}

func TestCleanNegativeTotalWithMissingPrice(t *testing.T) {
	raw := validRaw(88)
	raw.Price = ""
	raw.Quantity = "2"
	raw.TotalAmount = "-10.00"

	rec, _, rejection := NewRecordCleaner().Clean(raw)
	if rejection != nil {
		t.Fatalf("unexpected rejection: %v", rejection)
	}

	if rec.TotalAmount == nil || !rec.TotalAmount.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("total = %v, want 10.00", rec.TotalAmount)
	}
	// The price is backed out of the total only after the sign fix
	if rec.Price == nil || rec.Price.IsNegative() {
		t.Fatalf("derived price = %v, want non-negative", rec.Price)
	}
	if !rec.Price.Equal(decimal.RequireFromString("5.00")) {
		t.Errorf("derived price = %v, want 5.00", rec.Price)
	}
	if err := ValidateRecord(*rec); err != nil {
		t.Errorf("cleaned record fails validation: %v", err)
	}
}

func TestCleanQuantityOverflowBoundary(t *testing.T) {
	raw := validRaw(89)
	raw.Quantity = "-9223372036854775808" // math.MinInt64
	raw.Price = ""
	raw.TotalAmount = "-12.00"
	raw.DeliveryStatus = ""

	rec, ops, rejection := NewRecordCleaner().Clean(raw)
	if rejection != nil {
		t.Fatalf("unexpected rejection: %v", rejection)
	}

	if rec.Quantity != nil {
		t.Errorf("quantity = %d, want dropped", *rec.Quantity)
	}
	if rec.TotalAmount == nil || !rec.TotalAmount.Equal(decimal.RequireFromString("12.00")) {
		t.Errorf("total = %v, want 12.00", rec.TotalAmount)
	}
	if rec.DeliveryStatus != "Returned" {
		t.Errorf("delivery status = %q, want Returned", rec.DeliveryStatus)
	}

	dropped := false
	for _, op := range ops {
		if op.ColumnName == "quantity" && op.Operation == model.OpFieldDropped {
			dropped = true
		}
	}
	if !dropped {
		t.Error("quantity drop not recorded in the audit trail")
	}

	if err := ValidateRecord(*rec); err != nil {
		t.Errorf("cleaned record fails validation: %v", err)
	}
}

// rawFromClean renders a cleaned record back into source text form
func rawFromClean(rec model.CleanRecord) model.RawRecord {
	text := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	num := func(n *int64) string {
		if n == nil {
			return ""
		}
		return fmt.Sprintf("%d", *n)
	}
	money := func(d *decimal.Decimal) string {
		if d == nil {
			return ""
		}
		return d.StringFixed(2)
	}

	return model.RawRecord{
		TransactionID:   fmt.Sprintf("%d", rec.TransactionID),
		CustomerID:      num(rec.CustomerID),
		CustomerName:    text(rec.CustomerName),
		Email:           text(rec.Email),
		PurchaseDate:    rec.PurchaseDate.Format("02/01/2006"),
		ProductID:       num(rec.ProductID),
		Category:        rec.Category,
		Price:           money(rec.Price),
		Quantity:        num(rec.Quantity),
		TotalAmount:     money(rec.TotalAmount),
		PaymentMethod:   rec.PaymentMethod,
		DeliveryStatus:  rec.DeliveryStatus,
		CustomerAddress: text(rec.CustomerAddress),
		Line:            2,
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []model.RawRecord{
		validRaw(1),
		func() model.RawRecord {
			r := validRaw(2)
			r.Quantity = "-2"
			r.TotalAmount = "-20.00"
			r.DeliveryStatus = ""
			return r
		}(),
		func() model.RawRecord {
			r := validRaw(3)
			r.Email = "Mixed@Case.IO"
			r.PaymentMethod = "paypal"
			r.Category = ""
			r.Price = ""
			return r
		}(),
	}

	rc := NewRecordCleaner()
	for _, raw := range inputs {
		first, _, rejection := rc.Clean(raw)
		if rejection != nil {
			t.Fatalf("unexpected rejection for %s: %v", raw.TransactionID, rejection)
		}

		second, ops, rejection := rc.Clean(rawFromClean(*first))
		if rejection != nil {
			t.Fatalf("re-clean rejected record %d: %v", first.TransactionID, rejection)
		}
		if len(ops) != 0 {
			t.Errorf("re-cleaning record %d recorded %d operations, want 0: %v",
				first.TransactionID, len(ops), ops)
		}

		if first.TransactionID != second.TransactionID ||
			!strPtrEqual(first.Email, second.Email) ||
			first.Category != second.Category ||
			first.PaymentMethod != second.PaymentMethod ||
			first.DeliveryStatus != second.DeliveryStatus ||
			!first.PurchaseDate.Equal(second.PurchaseDate) {
			t.Errorf("record %d changed on second clean", first.TransactionID)
		}
	}
}

func TestDeduplicateFirstWins(t *testing.T) {
	a := validRaw(100)
	a.CustomerName = "First Seen"
	a.Line = 2
	b := validRaw(100)
	b.CustomerName = "Second Seen"
	b.Line = 3
	c := validRaw(101)
	c.Line = 4

	kept, rejections := NewDeduplicator().Deduplicate([]model.RawRecord{a, b, c})

	if len(kept) != 2 {
		t.Fatalf("kept %d records, want 2", len(kept))
	}
	if kept[0].CustomerName != "First Seen" {
		t.Errorf("survivor = %q, want the first occurrence", kept[0].CustomerName)
	}
	if kept[1].TransactionID != "101" {
		t.Errorf("second survivor = %q, want 101", kept[1].TransactionID)
	}

	if len(rejections) != 1 {
		t.Fatalf("rejections = %d, want 1", len(rejections))
	}
	rej := rejections[0]
	if rej.Reason != model.RejectReasonDuplicateKey || rej.Stage != model.StageDeduplicate {
		t.Errorf("rejection = %v, want DuplicateKey at deduplicate", rej)
	}
	if rej.Line != 3 {
		t.Errorf("rejection line = %d, want 3", rej.Line)
	}
	if rej.TransactionID == nil || *rej.TransactionID != 100 {
		t.Errorf("rejection id = %v, want 100", rej.TransactionID)
	}
}

func TestDeduplicatePassesUnparseableIDs(t *testing.T) {
	a := validRaw(1)
	b := validRaw(1)
	b.TransactionID = "junk"
	c := validRaw(1)
	c.TransactionID = ""

	kept, rejections := NewDeduplicator().Deduplicate([]model.RawRecord{a, b, c})

	// Bad ids pass through so the cleaner can reject them as MissingKey,
	// keeping the failure cause distinguishable from DuplicateKey.
	if len(kept) != 3 {
		t.Fatalf("kept %d records, want 3", len(kept))
	}
	if len(rejections) != 0 {
		t.Fatalf("rejections = %d, want 0", len(rejections))
	}
}

func TestCleanAllProducesUniqueKeys(t *testing.T) {
	records := []model.RawRecord{
		validRaw(1),
		validRaw(2),
		validRaw(1), // duplicate
		func() model.RawRecord {
			r := validRaw(3)
			r.PurchaseDate = "bad"
			return r
		}(),
		func() model.RawRecord {
			r := validRaw(4)
			r.TransactionID = "none"
			return r
		}(),
	}
	for i := range records {
		records[i].Line = i + 2
	}

	cleaned, rejections, _ := CleanAll(records)

	if len(cleaned) != 2 {
		t.Fatalf("cleaned = %d, want 2", len(cleaned))
	}
	seen := make(map[int64]bool)
	for _, rec := range cleaned {
		if seen[rec.TransactionID] {
			t.Errorf("duplicate transaction id %d in output", rec.TransactionID)
		}
		seen[rec.TransactionID] = true
	}

	reasons := make(map[model.RejectReason]int)
	for _, rej := range rejections {
		reasons[rej.Reason]++
	}
	if reasons[model.RejectReasonDuplicateKey] != 1 {
		t.Errorf("DuplicateKey rejections = %d, want 1", reasons[model.RejectReasonDuplicateKey])
	}
	if reasons[model.RejectReasonUnparsableDate] != 1 {
		t.Errorf("UnparsableDate rejections = %d, want 1", reasons[model.RejectReasonUnparsableDate])
	}
	if reasons[model.RejectReasonMissingKey] != 1 {
		t.Errorf("MissingKey rejections = %d, want 1", reasons[model.RejectReasonMissingKey])
	}
}

// A return row that is also the first of a duplicate pair: the batch
// must keep exactly the first occurrence, repaired end to end.
func TestCleanAllReturnRowWithDuplicate(t *testing.T) {
	first := validRaw(1001)
	first.Line = 2
	first.Quantity = "-3"
	first.Price = "10.00"
	first.TotalAmount = ""
	first.DeliveryStatus = ""

	second := validRaw(1001)
	second.Line = 3
	second.Quantity = "5"
	second.TotalAmount = "50.00"

	cleaned, rejections, _ := CleanAll([]model.RawRecord{first, second})

	if len(cleaned) != 1 {
		t.Fatalf("cleaned = %d, want 1", len(cleaned))
	}
	rec := cleaned[0]
	if rec.TransactionID != 1001 {
		t.Errorf("transaction id = %d, want 1001", rec.TransactionID)
	}
	if rec.Quantity == nil || *rec.Quantity != 3 {
		t.Errorf("quantity = %v, want 3", rec.Quantity)
	}
	if rec.TotalAmount == nil || !rec.TotalAmount.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("total = %v, want 30.00", rec.TotalAmount)
	}
	if rec.Price == nil || !rec.Price.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("price = %v, want 10.00", rec.Price)
	}
	if rec.DeliveryStatus != "Returned" {
		t.Errorf("delivery status = %q, want Returned", rec.DeliveryStatus)
	}

	if len(rejections) != 1 {
		t.Fatalf("rejections = %d, want 1", len(rejections))
	}
	rej := rejections[0]
	if rej.Reason != model.RejectReasonDuplicateKey {
		t.Errorf("rejection reason = %v, want DuplicateKey", rej.Reason)
	}
	if rej.Stage != model.StageDeduplicate {
		t.Errorf("rejection stage = %v, want deduplicate", rej.Stage)
	}
	if rej.Line != 3 {
		t.Errorf("rejection line = %d, want 3", rej.Line)
	}

	if err := ValidateRecord(rec); err != nil {
		t.Errorf("cleaned record fails validation: %v", err)
	}
}

func TestValidateRecordCatchesViolations(t *testing.T) {
	base, _, rejection := NewRecordCleaner().Clean(validRaw(1))
	if rejection != nil {
		t.Fatalf("unexpected rejection: %v", rejection)
	}
	if err := ValidateRecord(*base); err != nil {
		t.Fatalf("valid record failed validation: %v", err)
	}

	bad := *base
	bad.Quantity = int64Ptr(-1)
	if err := ValidateRecord(bad); err == nil {
		t.Error("negative quantity passed validation")
	}

	bad = *base
	bad.TotalAmount = decPtr("-1.00")
	if err := ValidateRecord(bad); err == nil {
		t.Error("negative total passed validation")
	}

	bad = *base
	bad.TotalAmount = decPtr("99.99")
	if err := ValidateRecord(bad); err == nil {
		t.Error("drifted total passed validation")
	}

	bad = *base
	bad.Quantity = int64Ptr(0)
	bad.Price = nil
	bad.TotalAmount = decPtr("0.00")
	if err := ValidateRecord(bad); err == nil {
		t.Error("zero-signal row passed validation")
	}
}
