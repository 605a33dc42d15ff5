// pkg/cleaner/operations.go
package cleaner

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// paymentMethodCanon maps normalized payment method spellings to their
// canonical names. Lookup is on the lowercased, trimmed raw value;
// unmapped non-empty values pass through trimmed, empty becomes
// "Unknown". Kept as data so the mapping is testable on its own.
var paymentMethodCanon = map[string]string{
	"creditcard":    "Credit Card",
	"credit card":   "Credit Card",
	"cc":            "Credit Card",
	"credit":        "Credit Card",
	"debit card":    "Debit Card",
	"debit":         "Debit Card",
	"paypal":        "PayPal",
	"bank transfer": "Bank Transfer",
}

// unknownValue is the default for categorical fields the source left blank.
const unknownValue = "Unknown"

// returnedStatus is forced onto negative-quantity rows without an
// explicit delivery status.
const returnedStatus = "Returned"

// parseOptionalID parses a non-key integer id column. Parse failure
// nulls the field and flags it for reporting instead of rejecting the
// record, mirroring best-effort import semantics.
func parseOptionalID(raw, column string) (*int64, *model.CleaningOperation) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	value, ok := parseInt64(trimmed)
	if !ok {
		return nil, &model.CleaningOperation{
			ColumnName:    column,
			OriginalValue: trimmed,
			NewValue:      nil,
			Operation:     model.OpFieldDropped,
			Reason:        "unparseable_integer",
		}
	}
	return &value, nil
}

// normalizeEmail validates and normalizes an email field. A value
// without '@' is dropped silently, never fabricated and never an
// error; valid values are lowercased and trimmed.
func normalizeEmail(raw string) (*string, *model.CleaningOperation) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	if !strings.Contains(trimmed, "@") {
		return nil, &model.CleaningOperation{
			ColumnName:    "email",
			OriginalValue: trimmed,
			NewValue:      nil,
			Operation:     model.OpFieldDropped,
			Reason:        "missing_at_sign",
		}
	}

	lowered := strings.ToLower(trimmed)
	if lowered != trimmed {
		return &lowered, &model.CleaningOperation{
			ColumnName:    "email",
			OriginalValue: trimmed,
			NewValue:      lowered,
			Operation:     model.OpValueStandardization,
			Reason:        "lowercased_email",
		}
	}
	return &lowered, nil
}

// parsePrice parses the unit price. Junk is dropped; so is a negative
// value, since a negative price would let the total repair manufacture
// a negative total and break the non-negativity guarantee.
func parsePrice(raw string) (*decimal.Decimal, *model.CleaningOperation) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	value, ok := parseDecimal(trimmed)
	if !ok {
		return nil, &model.CleaningOperation{
			ColumnName:    "price",
			OriginalValue: trimmed,
			NewValue:      nil,
			Operation:     model.OpFieldDropped,
			Reason:        "unparseable_decimal",
		}
	}

	if value.IsNegative() {
		return nil, &model.CleaningOperation{
			ColumnName:    "price",
			OriginalValue: trimmed,
			NewValue:      nil,
			Operation:     model.OpFieldDropped,
			Reason:        "negative_price",
		}
	}

	return roundMoney(value, "price", trimmed)
}

// parseTotalAmount parses the stored row total. Negative values are
// kept at this stage: the sign carries return information consumed by
// the repair pass.
func parseTotalAmount(raw string) (*decimal.Decimal, *model.CleaningOperation) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	value, ok := parseDecimal(trimmed)
	if !ok {
		return nil, &model.CleaningOperation{
			ColumnName:    "total_amount",
			OriginalValue: trimmed,
			NewValue:      nil,
			Operation:     model.OpFieldDropped,
			Reason:        "unparseable_decimal",
		}
	}

	return roundMoney(value, "total_amount", trimmed)
}

// roundMoney rounds a parsed amount to money precision, recording the
// substitution when rounding changed the value.
func roundMoney(value decimal.Decimal, column, original string) (*decimal.Decimal, *model.CleaningOperation) {
	rounded := value.Round(moneyPlaces)
	if !rounded.Equal(value) {
		return &rounded, &model.CleaningOperation{
			ColumnName:    column,
			OriginalValue: original,
			NewValue:      rounded.StringFixed(moneyPlaces),
			Operation:     model.OpTypeStandardization,
			Reason:        "rounded_to_money_precision",
		}
	}
	return &rounded, nil
}

// parseQuantity parses the quantity column. The sign is preserved here;
// the repair pass folds it into the delivery status.
func parseQuantity(raw string) (*int64, *model.CleaningOperation) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	value, ok := parseInt64(trimmed)
	if !ok {
		return nil, &model.CleaningOperation{
			ColumnName:    "quantity",
			OriginalValue: trimmed,
			NewValue:      nil,
			Operation:     model.OpFieldDropped,
			Reason:        "unparseable_integer",
		}
	}
	return &value, nil
}

// repairNegativeQuantity handles rows where the quantity sign encodes a
// return: quantity and total flip to their absolute values, and the
// delivery status becomes "Returned" only when the source supplied
// none. An explicit status is never overwritten.
func repairNegativeQuantity(
	quantity *int64,
	total *decimal.Decimal,
	status *string,
) (*int64, *decimal.Decimal, *string, []model.CleaningOperation) {
	if quantity == nil || *quantity >= 0 {
		return quantity, total, status, nil
	}

	var ops []model.CleaningOperation

	if *quantity == math.MinInt64 {
		// |math.MinInt64| does not fit in int64; negating it yields
		// another negative. Drop the field instead.
		ops = append(ops, model.CleaningOperation{
			ColumnName:    "quantity",
			OriginalValue: *quantity,
			NewValue:      nil,
			Operation:     model.OpFieldDropped,
			Reason:        "quantity_out_of_range",
		})
		quantity = nil
	} else {
		absQuantity := -*quantity
		ops = append(ops, model.CleaningOperation{
			ColumnName:    "quantity",
			OriginalValue: *quantity,
			NewValue:      absQuantity,
			Operation:     model.OpSignNormalization,
			Reason:        "negative_quantity",
		})
		quantity = &absQuantity
	}

	if total != nil && total.IsNegative() {
		absTotal := total.Abs()
		ops = append(ops, model.CleaningOperation{
			ColumnName:    "total_amount",
			OriginalValue: total.StringFixed(moneyPlaces),
			NewValue:      absTotal.StringFixed(moneyPlaces),
			Operation:     model.OpSignNormalization,
			Reason:        "negative_quantity",
		})
		total = &absTotal
	}

	if status == nil {
		returned := returnedStatus
		ops = append(ops, model.CleaningOperation{
			ColumnName:    "delivery_status",
			OriginalValue: nil,
			NewValue:      returned,
			Operation:     model.OpDefaultSubstitution,
			Reason:        "negative_quantity_return",
		})
		status = &returned
	}

	return quantity, total, status, ops
}

// reconcileTotalAmount recomputes the total when it is missing or
// drifts from price*quantity beyond tolerance. Skipped whenever price
// or quantity is absent: there is nothing trustworthy to recompute from.
func reconcileTotalAmount(
	price *decimal.Decimal,
	quantity *int64,
	total *decimal.Decimal,
) (*decimal.Decimal, *model.CleaningOperation) {
	if price == nil || quantity == nil {
		return total, nil
	}

	expected := price.Mul(decimal.NewFromInt(*quantity)).Round(moneyPlaces)

	if total == nil {
		return &expected, &model.CleaningOperation{
			ColumnName:    "total_amount",
			OriginalValue: nil,
			NewValue:      expected.StringFixed(moneyPlaces),
			Operation:     model.OpDerivedFieldRepair,
			Reason:        "missing_total_amount",
		}
	}

	if total.Sub(expected).Abs().GreaterThan(totalTolerance) {
		return &expected, &model.CleaningOperation{
			ColumnName:    "total_amount",
			OriginalValue: total.StringFixed(moneyPlaces),
			NewValue:      expected.StringFixed(moneyPlaces),
			Operation:     model.OpDerivedFieldRepair,
			Reason:        "total_outside_tolerance",
		}
	}

	return total, nil
}

// derivePriceFromTotal back-fills a missing unit price from the total
// and a usable non-zero quantity.
func derivePriceFromTotal(
	price *decimal.Decimal,
	quantity *int64,
	total *decimal.Decimal,
) (*decimal.Decimal, *model.CleaningOperation) {
	if price != nil || total == nil || quantity == nil || *quantity == 0 {
		return price, nil
	}

	derived := total.Div(decimal.NewFromInt(*quantity)).Round(moneyPlaces)
	return &derived, &model.CleaningOperation{
		ColumnName:    "price",
		OriginalValue: nil,
		NewValue:      derived.StringFixed(moneyPlaces),
		Operation:     model.OpDerivedFieldRepair,
		Reason:        "derived_from_total",
	}
}

// defaultCategory substitutes "Unknown" for an absent category.
func defaultCategory(category *string) (string, *model.CleaningOperation) {
	if category != nil {
		return *category, nil
	}
	return unknownValue, &model.CleaningOperation{
		ColumnName:    "category",
		OriginalValue: nil,
		NewValue:      unknownValue,
		Operation:     model.OpDefaultSubstitution,
		Reason:        "missing_category",
	}
}

// normalizePaymentMethod maps a raw payment method onto the canonical
// set. Unmapped non-empty values pass through trimmed so new methods in
// the source survive; empty becomes "Unknown".
func normalizePaymentMethod(raw string) (string, *model.CleaningOperation) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return unknownValue, &model.CleaningOperation{
			ColumnName:    "payment_method",
			OriginalValue: nil,
			NewValue:      unknownValue,
			Operation:     model.OpDefaultSubstitution,
			Reason:        "missing_payment_method",
		}
	}

	canonical, ok := paymentMethodCanon[strings.ToLower(trimmed)]
	if !ok {
		return trimmed, nil
	}

	if canonical != trimmed {
		return canonical, &model.CleaningOperation{
			ColumnName:    "payment_method",
			OriginalValue: trimmed,
			NewValue:      canonical,
			Operation:     model.OpValueStandardization,
			Reason:        "canonical_payment_method",
		}
	}
	return canonical, nil
}

// defaultDeliveryStatus substitutes "Unknown" for an absent delivery
// status. Runs after the return repair, so a forced "Returned" is
// already in place by the time this fires.
func defaultDeliveryStatus(status *string) (string, *model.CleaningOperation) {
	if status != nil {
		return *status, nil
	}
	return unknownValue, &model.CleaningOperation{
		ColumnName:    "delivery_status",
		OriginalValue: nil,
		NewValue:      unknownValue,
		Operation:     model.OpDefaultSubstitution,
		Reason:        "missing_delivery_status",
	}
}

// normalizeResidualNegativeTotal restores the total_amount >= 0
// guarantee for totals whose sign the quantity repair did not claim.
// A negative total can reach this point only when price or quantity
// was absent, leaving the reconciliation with nothing to recompute
// from. It runs before price derivation so that a price backed out of
// the total is never negative.
func normalizeResidualNegativeTotal(total *decimal.Decimal) (*decimal.Decimal, *model.CleaningOperation) {
	if total == nil || !total.IsNegative() {
		return total, nil
	}

	absTotal := total.Abs()
	return &absTotal, &model.CleaningOperation{
		ColumnName:    "total_amount",
		OriginalValue: total.StringFixed(moneyPlaces),
		NewValue:      absTotal.StringFixed(moneyPlaces),
		Operation:     model.OpSignNormalization,
		Reason:        "residual_negative_total",
	}
}
