// pkg/report/report.go
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// GroupStat aggregates cleaned records sharing one group key
type GroupStat struct {
	Count int `json:"count"`
	// Revenue is the sum of total_amount over rows where it is present
	Revenue decimal.Decimal `json:"revenue"`
	// AvgOrderValue is Revenue divided by the rows that contributed to
	// it, rounded to two digits. Zero when no row had a total.
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`

	withTotal int
}

// QualityReport summarizes one cleaning run. It is pure output:
// nothing here feeds back into the pipeline.
type QualityReport struct {
	RawRows         int            `json:"raw_rows"`
	CleanRows       int            `json:"clean_rows"`
	RejectedRows    int            `json:"rejected_rows"`
	RejectionCounts map[string]int `json:"rejection_counts"`

	// NullCounts tracks absent optional fields in the cleaned output
	NullCounts map[string]int `json:"null_counts"`

	ByCategory       map[string]GroupStat `json:"by_category"`
	ByPaymentMethod  map[string]GroupStat `json:"by_payment_method"`
	ByDeliveryStatus map[string]GroupStat `json:"by_delivery_status"`
}

// Generate builds a quality report from the outcome of a run.
// rawRows is the number of rows the source produced, before
// deduplication.
func Generate(rawRows int, cleaned []model.CleanRecord, rejections []model.Rejection) *QualityReport {
	r := &QualityReport{
		RawRows:          rawRows,
		CleanRows:        len(cleaned),
		RejectedRows:     len(rejections),
		RejectionCounts:  make(map[string]int),
		NullCounts:       make(map[string]int),
		ByCategory:       make(map[string]GroupStat),
		ByPaymentMethod:  make(map[string]GroupStat),
		ByDeliveryStatus: make(map[string]GroupStat),
	}

	for _, rej := range rejections {
		r.RejectionCounts[rej.Reason.String()]++
	}

	for _, rec := range cleaned {
		countNulls(r.NullCounts, rec)
		accumulate(r.ByCategory, rec.Category, rec)
		accumulate(r.ByPaymentMethod, rec.PaymentMethod, rec)
		accumulate(r.ByDeliveryStatus, rec.DeliveryStatus, rec)
	}

	finalize(r.ByCategory)
	finalize(r.ByPaymentMethod)
	finalize(r.ByDeliveryStatus)

	return r
}

func countNulls(nulls map[string]int, rec model.CleanRecord) {
	if rec.CustomerID == nil {
		nulls["customer_id"]++
	}
	if rec.CustomerName == nil {
		nulls["customer_name"]++
	}
	if rec.Email == nil {
		nulls["email"]++
	}
	if rec.ProductID == nil {
		nulls["product_id"]++
	}
	if rec.Price == nil {
		nulls["price"]++
	}
	if rec.Quantity == nil {
		nulls["quantity"]++
	}
	if rec.TotalAmount == nil {
		nulls["total_amount"]++
	}
	if rec.CustomerAddress == nil {
		nulls["customer_address"]++
	}
}

func accumulate(groups map[string]GroupStat, key string, rec model.CleanRecord) {
	stat := groups[key]
	stat.Count++
	if rec.TotalAmount != nil {
		stat.Revenue = stat.Revenue.Add(*rec.TotalAmount)
		stat.withTotal++
	}
	groups[key] = stat
}

func finalize(groups map[string]GroupStat) {
	for key, stat := range groups {
		if stat.withTotal > 0 {
			stat.AvgOrderValue = stat.Revenue.
				Div(decimal.NewFromInt(int64(stat.withTotal))).
				Round(2)
		}
		stat.Revenue = stat.Revenue.Round(2)
		groups[key] = stat
	}
}

// ToJSON renders the report as indented JSON
func (r *QualityReport) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quality report: %w", err)
	}
	return data, nil
}

// HumanSummary renders a deterministic plain-text summary. Group keys
// are sorted so two runs over the same data produce identical output.
func (r *QualityReport) HumanSummary() string {
	var b strings.Builder

	b.WriteString("Data Quality Report\n")
	b.WriteString("===================\n")
	fmt.Fprintf(&b, "Raw rows:      %d\n", r.RawRows)
	fmt.Fprintf(&b, "Clean rows:    %d\n", r.CleanRows)
	fmt.Fprintf(&b, "Rejected rows: %d\n", r.RejectedRows)

	if len(r.RejectionCounts) > 0 {
		b.WriteString("\nRejections by reason:\n")
		for _, reason := range sortedKeys(r.RejectionCounts) {
			fmt.Fprintf(&b, "  %-16s %d\n", reason, r.RejectionCounts[reason])
		}
	}

	if len(r.NullCounts) > 0 {
		b.WriteString("\nNull fields in cleaned output:\n")
		for _, field := range sortedKeys(r.NullCounts) {
			fmt.Fprintf(&b, "  %-16s %d\n", field, r.NullCounts[field])
		}
	}

	writeGroups(&b, "By category", r.ByCategory)
	writeGroups(&b, "By payment method", r.ByPaymentMethod)
	writeGroups(&b, "By delivery status", r.ByDeliveryStatus)

	return b.String()
}

func writeGroups(b *strings.Builder, title string, groups map[string]GroupStat) {
	if len(groups) == 0 {
		return
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Fprintf(b, "\n%s:\n", title)
	for _, key := range keys {
		stat := groups[key]
		fmt.Fprintf(b, "  %-20s count=%-6d revenue=%-12s avg_order=%s\n",
			key, stat.Count, stat.Revenue.StringFixed(2), stat.AvgOrderValue.StringFixed(2))
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
