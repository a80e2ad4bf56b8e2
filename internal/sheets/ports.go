// Package sheets exports reconciled months to spreadsheet tabs.
package sheets

import (
	"context"
	"errors"

	"finboard/internal/core"
)

var ErrNoRows = errors.New("nothing to export")

// Ports for outbound adapters.
type (
	// MonthExporter appends the rows of one reconciled month to the tab
	// named after label and returns a reference to the written range.
	MonthExporter interface {
		ExportMonth(ctx context.Context, label string, month core.Month, items []core.FinanceItem) (rowRef string, err error)
	}
)

// Header is the first row of an exported tab.
var Header = []any{"Month", "Date", "Title", "Type", "Status", "Category", "Amount", "Paid", "Open", "Fixed", "Projected", "ID"}

// Rows renders items as spreadsheet rows in Header column order. Amounts are
// fixed two-decimal strings so USER_ENTERED parsing keeps them exact.
func Rows(month core.Month, items []core.FinanceItem) [][]any {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{
			month.String(),
			it.Date.String(),
			it.Title,
			string(it.Type),
			string(it.Status),
			it.Category,
			it.Amount.StringFixed(2),
			it.PaidAmount.StringFixed(2),
			it.OpenAmount().StringFixed(2),
			it.IsFixed,
			it.IsSynthetic,
			it.ID,
		})
	}
	return rows
}
