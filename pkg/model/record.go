// pkg/model/record.go
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RawRecord is one untrusted row of the sales export. Every field is
// free-form text and may be missing, empty, or malformed.
type RawRecord struct {
	TransactionID   string
	CustomerID      string
	CustomerName    string
	Email           string
	PurchaseDate    string // Day/month/year text, e.g. "14/03/2024"
	ProductID       string
	Category        string
	Price           string
	Quantity        string
	TotalAmount     string
	PaymentMethod   string
	DeliveryStatus  string
	CustomerAddress string

	// Line is the 1-based row number assigned by the source loader.
	// Provenance only, never part of the logical record.
	Line int
}

// CleanRecord is the typed, validated projection of a RawRecord.
// It is produced once by the pipeline and never mutated afterward;
// corrections are modeled as new values, not in-place updates.
type CleanRecord struct {
	TransactionID   int64            // Unique row key
	CustomerID      *int64           // Nil when the raw value failed to parse
	CustomerName    *string          // Trimmed; nil when empty
	Email           *string          // Lowercased and trimmed; nil unless it contains '@'
	PurchaseDate    time.Time        // Calendar date, always present
	ProductID       *int64           // Nil when the raw value failed to parse
	Category        string           // "Unknown" when the source had none
	Price           *decimal.Decimal // Non-negative, 2 fractional digits
	Quantity        *int64           // Absolute value; sign is encoded in DeliveryStatus
	TotalAmount     *decimal.Decimal // Non-negative, 2 fractional digits
	PaymentMethod   string           // Canonical value, trimmed passthrough, or "Unknown"
	DeliveryStatus  string           // Trimmed; "Unknown" when the source had none
	CustomerAddress *string          // Trimmed; nil when empty
}

// RejectReason identifies why a row was dropped from the batch
type RejectReason int

const (
	// RejectReasonNone indicates the row was not rejected
	RejectReasonNone RejectReason = iota
	// RejectReasonMissingKey indicates the transaction id was absent or unparseable
	RejectReasonMissingKey
	// RejectReasonUnparsableDate indicates the purchase date was not a valid calendar date
	RejectReasonUnparsableDate
	// RejectReasonDuplicateKey indicates an earlier row already used the transaction id
	RejectReasonDuplicateKey
	// RejectReasonZeroSignalRow indicates both quantity and total amount were zero
	RejectReasonZeroSignalRow
)

// String returns a string representation of the reject reason
func (r RejectReason) String() string {
	switch r {
	case RejectReasonNone:
		return "None"
	case RejectReasonMissingKey:
		return "MissingKey"
	case RejectReasonUnparsableDate:
		return "UnparsableDate"
	case RejectReasonDuplicateKey:
		return "DuplicateKey"
	case RejectReasonZeroSignalRow:
		return "ZeroSignalRow"
	default:
		return fmt.Sprintf("Unknown(%d)", r)
	}
}

// Pipeline stages that can reject a row
const (
	StageDeduplicate = "deduplicate"
	StageClean       = "clean"
)

// Rejection records one dropped row: the stage that dropped it, the
// parsed transaction id when one existed, and the raw input for audit.
// Rejections are terminal and counted, never retried.
type Rejection struct {
	Line          int
	TransactionID *int64 // Nil when no id could be parsed
	Reason        RejectReason
	Stage         string
	Raw           RawRecord
}

// String returns a formatted description of the rejection
func (r Rejection) String() string {
	if r.TransactionID != nil {
		return fmt.Sprintf("line %d (transaction %d): %s at %s stage",
			r.Line, *r.TransactionID, r.Reason, r.Stage)
	}
	return fmt.Sprintf("line %d: %s at %s stage", r.Line, r.Reason, r.Stage)
}
