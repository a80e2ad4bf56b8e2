package services

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

const (
	DefaultOtherCategory       = "Other"
	DefaultUnknownCollaborator = "unknown"

	topCollaboratorCategories = 3
)

var hundred = decimal.NewFromInt(100)

type (
	// MetricsEngine aggregates a reconciled item list. The labels replace
	// empty categories and missing creators.
	MetricsEngine struct {
		OtherCategory       string
		UnknownCollaborator string
	}

	CategoryShare struct {
		Category string          `json:"category"`
		Total    decimal.Decimal `json:"total"`
		Count    int             `json:"count"`
		Percent  decimal.Decimal `json:"percent"`
	}

	DayActivity struct {
		Date  core.Date       `json:"date"`
		Total decimal.Decimal `json:"total"`
		Count int             `json:"count"`
	}

	MostActive struct {
		Top              *DayActivity `json:"top"`
		DaysWithMovement int          `json:"daysWithMovement"`
	}

	Collaborator struct {
		ID            string          `json:"id"`
		Name          string          `json:"name"`
		TotalExpense  decimal.Decimal `json:"totalExpense"`
		TotalIncome   decimal.Decimal `json:"totalIncome"`
		ExpenseCount  int             `json:"expenseCount"`
		IncomeCount   int             `json:"incomeCount"`
		TopCategories []CategoryShare `json:"topCategories"`
	}

	Diagnostics struct {
		Skipped int `json:"skipped"`
		// Degraded is set by the ledger service when a month was computed
		// without its recurring bills.
		Degraded bool `json:"degraded,omitempty"`
	}

	MetricsReport struct {
		TotalIncome     decimal.Decimal `json:"totalIncome"`
		TotalExpense    decimal.Decimal `json:"totalExpense"`
		FinishedIncome  decimal.Decimal `json:"finishedIncome"`
		PendingIncome   decimal.Decimal `json:"pendingIncome"`
		FinishedExpense decimal.Decimal `json:"finishedExpense"`
		PendingExpense  decimal.Decimal `json:"pendingExpense"`
		// Balance is the money that actually moved: finished income minus
		// finished expense. ProjectedBalance is total income minus total
		// expense, pending amounts included; it is the headline balance of
		// a month.
		Balance          decimal.Decimal `json:"balance"`
		ProjectedBalance decimal.Decimal `json:"projectedBalance"`
		IncomeCount      int             `json:"incomeCount"`
		ExpenseCount     int             `json:"expenseCount"`
		AverageIncome    decimal.Decimal `json:"averageIncome"`
		AverageExpense   decimal.Decimal `json:"averageExpense"`

		OverdueIncomeCount  int             `json:"overdueIncomeCount"`
		OverdueExpenseCount int             `json:"overdueExpenseCount"`
		OverdueExpenseTotal decimal.Decimal `json:"overdueExpenseTotal"`

		IncomeByCategory  []CategoryShare `json:"incomeByCategory"`
		ExpenseByCategory []CategoryShare `json:"expenseByCategory"`
		MostActive        MostActive      `json:"mostActive"`
		Collaborators     []Collaborator  `json:"collaborators,omitempty"`

		Diagnostics Diagnostics `json:"diagnostics"`
	}
)

// DefaultMetricsEngine uses the built-in fallback labels.
func DefaultMetricsEngine() MetricsEngine {
	return MetricsEngine{OtherCategory: DefaultOtherCategory, UnknownCollaborator: DefaultUnknownCollaborator}
}

// ComputeMetrics runs the default engine.
func ComputeMetrics(items []core.FinanceItem, today core.Date) MetricsReport {
	return DefaultMetricsEngine().Compute(items, today)
}

// malformed reports items that cannot be aggregated.
func malformed(it core.FinanceItem) bool {
	return it.Date.IsZero() || !it.Type.Valid() || !it.Amount.IsPositive()
}

// Compute aggregates every non-synthetic item. It never fails: malformed
// items are left out and counted in Diagnostics.Skipped.
func (e MetricsEngine) Compute(items []core.FinanceItem, today core.Date) MetricsReport {
	e = e.withDefaults()
	r := MetricsReport{}

	var counted []core.FinanceItem
	for _, it := range items {
		if it.IsSynthetic {
			continue
		}
		if malformed(it) {
			r.Diagnostics.Skipped++
			continue
		}
		counted = append(counted, it)
	}

	for _, it := range counted {
		finished, pending := split(it)
		switch it.Type {
		case core.Income:
			r.TotalIncome = r.TotalIncome.Add(it.Amount)
			r.FinishedIncome = r.FinishedIncome.Add(finished)
			r.PendingIncome = r.PendingIncome.Add(pending)
			r.IncomeCount++
			if it.IsOverdue(today) {
				r.OverdueIncomeCount++
			}
		case core.Expense:
			r.TotalExpense = r.TotalExpense.Add(it.Amount)
			r.FinishedExpense = r.FinishedExpense.Add(finished)
			r.PendingExpense = r.PendingExpense.Add(pending)
			r.ExpenseCount++
			if it.IsOverdue(today) {
				r.OverdueExpenseCount++
				r.OverdueExpenseTotal = r.OverdueExpenseTotal.Add(it.OpenAmount())
			}
		}
	}
	r.Balance = r.FinishedIncome.Sub(r.FinishedExpense)
	r.ProjectedBalance = r.TotalIncome.Sub(r.TotalExpense)
	r.AverageIncome = average(r.TotalIncome, r.IncomeCount)
	r.AverageExpense = average(r.TotalExpense, r.ExpenseCount)

	r.IncomeByCategory = e.distribution(counted, core.Income, r.TotalIncome)
	r.ExpenseByCategory = e.distribution(counted, core.Expense, r.TotalExpense)
	r.MostActive = mostActive(counted)
	r.Collaborators = e.collaborators(counted)
	return r
}

func (e MetricsEngine) withDefaults() MetricsEngine {
	if strings.TrimSpace(e.OtherCategory) == "" {
		e.OtherCategory = DefaultOtherCategory
	}
	if strings.TrimSpace(e.UnknownCollaborator) == "" {
		e.UnknownCollaborator = DefaultUnknownCollaborator
	}
	return e
}

// split divides an item's amount into its finished and pending parts.
func split(it core.FinanceItem) (finished, pending decimal.Decimal) {
	switch it.Status {
	case core.Paid:
		return it.Amount, decimal.Zero
	case core.Partial:
		paid := decimal.Min(it.PaidAmount, it.Amount)
		return paid, it.Amount.Sub(paid)
	default:
		return decimal.Zero, it.Amount
	}
}

func average(total decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n))).Round(2)
}

func (e MetricsEngine) category(it core.FinanceItem) string {
	if c := strings.TrimSpace(it.Category); c != "" {
		return c
	}
	return e.OtherCategory
}

func (e MetricsEngine) distribution(items []core.FinanceItem, typ core.ItemType, typeTotal decimal.Decimal) []CategoryShare {
	byCat := make(map[string]*CategoryShare)
	for _, it := range items {
		if it.Type != typ {
			continue
		}
		name := e.category(it)
		share, ok := byCat[name]
		if !ok {
			share = &CategoryShare{Category: name}
			byCat[name] = share
		}
		share.Total = share.Total.Add(it.Amount)
		share.Count++
	}
	return rankShares(byCat, typeTotal)
}

func rankShares(byCat map[string]*CategoryShare, typeTotal decimal.Decimal) []CategoryShare {
	denom := typeTotal
	if denom.IsZero() {
		denom = decimal.NewFromInt(1)
	}
	out := make([]CategoryShare, 0, len(byCat))
	for _, share := range byCat {
		share.Percent = share.Total.Div(denom).Mul(hundred).Round(2)
		out = append(out, *share)
	}
	slices.SortFunc(out, func(a, b CategoryShare) int {
		return cmp.Or(b.Total.Cmp(a.Total), strings.Compare(a.Category, b.Category))
	})
	return out
}

func mostActive(items []core.FinanceItem) MostActive {
	byDay := make(map[string]*DayActivity)
	for _, it := range items {
		key := it.Date.String()
		day, ok := byDay[key]
		if !ok {
			day = &DayActivity{Date: it.Date}
			byDay[key] = day
		}
		day.Total = day.Total.Add(it.Amount.Abs())
		day.Count++
	}

	out := MostActive{DaysWithMovement: len(byDay)}
	for _, day := range byDay {
		if out.Top == nil || busier(*day, *out.Top) {
			out.Top = day
		}
	}
	return out
}

// busier ranks by absolute total, then count, then the earlier date.
func busier(a, b DayActivity) bool {
	if c := a.Total.Cmp(b.Total); c != 0 {
		return c > 0
	}
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.Date.Before(b.Date.Time)
}

func (e MetricsEngine) collaborators(items []core.FinanceItem) []Collaborator {
	type acc struct {
		Collaborator
		categories map[string]*CategoryShare
	}
	byUser := make(map[string]*acc)
	for _, it := range items {
		id := strings.TrimSpace(it.CreatedBy)
		if id == "" {
			id = e.UnknownCollaborator
		}
		a, ok := byUser[id]
		if !ok {
			a = &acc{Collaborator: Collaborator{ID: id}, categories: make(map[string]*CategoryShare)}
			byUser[id] = a
		}
		if a.Name == "" {
			a.Name = strings.TrimSpace(it.CreatedByName)
		}
		switch it.Type {
		case core.Income:
			a.TotalIncome = a.TotalIncome.Add(it.Amount)
			a.IncomeCount++
		case core.Expense:
			a.TotalExpense = a.TotalExpense.Add(it.Amount)
			a.ExpenseCount++
			name := e.category(it)
			share, ok := a.categories[name]
			if !ok {
				share = &CategoryShare{Category: name}
				a.categories[name] = share
			}
			share.Total = share.Total.Add(it.Amount)
			share.Count++
		}
	}

	out := make([]Collaborator, 0, len(byUser))
	for _, a := range byUser {
		c := a.Collaborator
		if c.Name == "" {
			c.Name = c.ID
		}
		top := rankShares(a.categories, c.TotalExpense)
		if len(top) > topCollaboratorCategories {
			top = top[:topCollaboratorCategories]
		}
		c.TopCategories = top
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Collaborator) int {
		return cmp.Or(b.TotalExpense.Cmp(a.TotalExpense), strings.Compare(a.ID, b.ID))
	})
	return out
}
