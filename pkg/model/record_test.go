// pkg/model/record_test.go
package model

import "testing"

func TestRejectReasonString(t *testing.T) {
	cases := []struct {
		reason RejectReason
		want   string
	}{
		{RejectReasonNone, "None"},
		{RejectReasonMissingKey, "MissingKey"},
		{RejectReasonUnparsableDate, "UnparsableDate"},
		{RejectReasonDuplicateKey, "DuplicateKey"},
		{RejectReasonZeroSignalRow, "ZeroSignalRow"},
		{RejectReason(99), "Unknown(99)"},
	}
	for _, tc := range cases {
		if got := tc.reason.String(); got != tc.want {
			t.Errorf("String(%d) = %q, want %q", tc.reason, got, tc.want)
		}
	}
}

func TestRejectionString(t *testing.T) {
	id := int64(42)
	withID := Rejection{Line: 7, TransactionID: &id, Reason: RejectReasonDuplicateKey, Stage: StageDeduplicate}
	if got := withID.String(); got != "line 7 (transaction 42): DuplicateKey at deduplicate stage" {
		t.Errorf("String() = %q", got)
	}

	withoutID := Rejection{Line: 3, Reason: RejectReasonMissingKey, Stage: StageClean}
	if got := withoutID.String(); got != "line 3: MissingKey at clean stage" {
		t.Errorf("String() = %q", got)
	}
}

func TestMetadataColumnHelpers(t *testing.T) {
	metadata := CleanedSalesMetadata("sales")

	if metadata.FullName() != "sales.cleaned_sales" {
		t.Errorf("FullName() = %q", metadata.FullName())
	}

	col := metadata.GetColumnByName("TRANSACTION_ID")
	if col == nil || !col.IsPrimaryKey {
		t.Errorf("case-insensitive lookup failed: %+v", col)
	}
	if metadata.GetColumnByName("no_such_column") != nil {
		t.Error("unknown column should return nil")
	}

	names := metadata.ColumnNames()
	if len(names) != len(metadata.Columns) || names[0] != "transaction_id" || names[len(names)-1] != "run_id" {
		t.Errorf("ColumnNames() = %v", names)
	}
}
