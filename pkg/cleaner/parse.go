// pkg/cleaner/parse.go
package cleaner

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayout is the only accepted purchase date form: day/month/year.
const dateLayout = "02/01/2006"

// moneyPlaces is the fractional precision for price and total_amount.
const moneyPlaces = 2

// totalTolerance is the maximum allowed drift between total_amount and
// price*quantity before the total is recomputed.
var totalTolerance = decimal.New(5, -2) // 0.05

// ParseTransactionID parses a row key as a base-10 integer. The
// deduplicator and the cleaner share this parser so a row can never
// deduplicate under a key the cleaner would then fail to parse.
func ParseTransactionID(raw string) (int64, bool) {
	return parseInt64(raw)
}

// parseInt64 parses an integer field. Surrounding whitespace is
// tolerated; anything else unparseable fails.
func parseInt64(raw string) (int64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}

	value, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// parseDecimal parses a decimal field at full precision; rounding to
// money precision happens in the field operations so the substitution
// can be recorded. Junk yields absent rather than an error, matching
// the fallible-conversion contract of the rest of the parse steps.
func parseDecimal(raw string) (decimal.Decimal, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, false
	}

	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// parseDate parses a purchase date in strict day/month/year form.
// time.Parse validates the calendar, so "31/02/2024" fails here.
func parseDate(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}

	value, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return value, true
}

// trimToPtr trims a text field; empty becomes absent.
func trimToPtr(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
