// pkg/model/cleaning.go
package model

import (
	"time"
)

// CleaningOperation represents a single data cleaning operation
type CleaningOperation struct {
	Line          int         // Source line of the affected row
	TransactionID *int64      // Parsed row key, nil when none existed
	ColumnName    string      // Column that was cleaned
	OriginalValue interface{} // Original value (may be nil)
	NewValue      interface{} // New value after cleaning (may be nil)
	Operation     string      // Type of cleaning performed (e.g., "sign_normalization")
	Reason        string      // Reason for cleaning (e.g., "negative_quantity")
	CleanedAt     time.Time   // When the cleaning occurred
}

// Well-known cleaning operation types
const (
	OpTypeStandardization  = "type_standardization"
	OpValueStandardization = "value_standardization"
	OpSignNormalization    = "sign_normalization"
	OpDerivedFieldRepair   = "derived_field_repair"
	OpDefaultSubstitution  = "default_substitution"
	OpFieldDropped         = "field_dropped"
)
