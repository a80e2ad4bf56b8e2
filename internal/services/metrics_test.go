package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

func entry(typ core.ItemType, amount string, status core.StatusType, day string) core.FinanceItem {
	return core.FinanceItem{
		ID:       day + amount,
		Title:    "x",
		Amount:   dec(amount),
		Date:     date(day),
		Type:     typ,
		Status:   status,
		Category: "Housing",
	}
}

func TestComputeMetricsBalanceAndOverdue(t *testing.T) {
	items := []core.FinanceItem{
		entry(core.Income, "5000", core.Paid, "2025-04-05"),
		entry(core.Expense, "1200", core.Paid, "2025-04-10"),
		entry(core.Expense, "300", core.Pending, "2025-04-01"),
	}
	r := ComputeMetrics(items, date("2025-04-15"))

	if !r.Balance.Equal(dec("3800")) {
		t.Errorf("balance = %s, want 3800", r.Balance)
	}
	if !r.ProjectedBalance.Equal(dec("3500")) {
		t.Errorf("projected balance = %s, want 3500", r.ProjectedBalance)
	}
	if r.OverdueExpenseCount != 1 || !r.OverdueExpenseTotal.Equal(dec("300")) {
		t.Errorf("overdue = %d/%s, want 1/300", r.OverdueExpenseCount, r.OverdueExpenseTotal)
	}
	if r.OverdueIncomeCount != 0 {
		t.Errorf("overdue income = %d", r.OverdueIncomeCount)
	}
}

func TestComputeMetricsCollaboratorLeaderboard(t *testing.T) {
	mk := func(user, amount, category string) core.FinanceItem {
		it := entry(core.Expense, amount, core.Paid, "2025-04-03")
		it.CreatedBy = user
		it.Category = category
		return it
	}
	items := []core.FinanceItem{
		mk("u1", "150", "Groceries"),
		mk("u1", "250", "Leisure"),
		mk("u2", "900", "Housing"),
	}
	r := ComputeMetrics(items, date("2025-04-15"))
	if len(r.Collaborators) != 2 {
		t.Fatalf("collaborators = %d", len(r.Collaborators))
	}
	first := r.Collaborators[0]
	if first.ID != "u2" || !first.TotalExpense.Equal(dec("900")) {
		t.Errorf("leader = %s/%s, want u2/900", first.ID, first.TotalExpense)
	}
	second := r.Collaborators[1]
	if !second.TotalExpense.Equal(dec("400")) || second.ExpenseCount != 2 {
		t.Errorf("u1 = %s/%d", second.TotalExpense, second.ExpenseCount)
	}
	if second.TopCategories[0].Category != "Leisure" {
		t.Errorf("u1 top category = %s", second.TopCategories[0].Category)
	}
}

func TestComputeMetricsConservation(t *testing.T) {
	items := []core.FinanceItem{
		entry(core.Income, "100.10", core.Paid, "2025-04-01"),
		entry(core.Income, "50", core.Pending, "2025-04-02"),
		entry(core.Expense, "80", core.Partial, "2025-04-03"),
		entry(core.Expense, "19.90", core.Pending, "2025-04-04"),
		entry(core.Expense, "5", core.Paid, "2025-04-04"),
	}
	items[2].PaidAmount = dec("30")

	var wantIncome, wantExpense decimal.Decimal
	for _, it := range items {
		if it.Type == core.Income {
			wantIncome = wantIncome.Add(it.Amount)
		} else {
			wantExpense = wantExpense.Add(it.Amount)
		}
	}

	r := ComputeMetrics(items, date("2025-04-01"))
	if !r.TotalIncome.Equal(wantIncome) || !r.TotalExpense.Equal(wantExpense) {
		t.Fatalf("totals = %s/%s, want %s/%s", r.TotalIncome, r.TotalExpense, wantIncome, wantExpense)
	}
	if !r.FinishedIncome.Add(r.PendingIncome).Equal(r.TotalIncome) {
		t.Error("income finished + pending != total")
	}
	if !r.FinishedExpense.Add(r.PendingExpense).Equal(r.TotalExpense) {
		t.Error("expense finished + pending != total")
	}
	if !r.FinishedExpense.Equal(dec("35")) || !r.PendingExpense.Equal(dec("69.90")) {
		t.Errorf("partial split wrong: finished=%s pending=%s", r.FinishedExpense, r.PendingExpense)
	}
}

func TestComputeMetricsSkipsSyntheticAndMalformed(t *testing.T) {
	synthetic := entry(core.Expense, "1000", core.Pending, "2025-04-30")
	synthetic.IsSynthetic = true
	noDate := entry(core.Expense, "10", core.Pending, "2025-04-01")
	noDate.Date = core.Date{}
	badType := entry("transfer", "10", core.Pending, "2025-04-01")
	zero := entry(core.Income, "1", core.Pending, "2025-04-01")
	zero.Amount = decimal.Zero

	r := ComputeMetrics([]core.FinanceItem{
		synthetic, noDate, badType, zero,
		entry(core.Expense, "10", core.Paid, "2025-04-01"),
	}, date("2025-04-15"))

	if r.Diagnostics.Skipped != 3 {
		t.Errorf("skipped = %d, want 3", r.Diagnostics.Skipped)
	}
	if r.ExpenseCount != 1 || !r.TotalExpense.Equal(dec("10")) {
		t.Errorf("expense = %d/%s", r.ExpenseCount, r.TotalExpense)
	}
}

func TestComputeMetricsCategoryDistribution(t *testing.T) {
	items := []core.FinanceItem{
		entry(core.Expense, "75", core.Paid, "2025-04-01"),
		entry(core.Expense, "25", core.Paid, "2025-04-02"),
		entry(core.Expense, "25", core.Paid, "2025-04-03"),
	}
	items[1].Category = ""
	items[2].Category = "Bills"

	e := MetricsEngine{OtherCategory: "Misc"}
	r := e.Compute(items, date("2025-04-15"))
	got := r.ExpenseByCategory
	if len(got) != 3 {
		t.Fatalf("categories = %v", got)
	}
	want := []struct {
		category string
		percent  string
	}{
		{"Housing", "60"},
		{"Bills", "20"},
		{"Misc", "20"},
	}
	for i, w := range want {
		if got[i].Category != w.category || !got[i].Percent.Equal(dec(w.percent)) {
			t.Errorf("share %d = %s/%s, want %s/%s", i, got[i].Category, got[i].Percent, w.category, w.percent)
		}
	}
	if len(r.IncomeByCategory) != 0 {
		t.Errorf("income categories = %v", r.IncomeByCategory)
	}
}

func TestComputeMetricsMostActiveDay(t *testing.T) {
	items := []core.FinanceItem{
		entry(core.Expense, "10", core.Paid, "2025-04-01"),
		entry(core.Expense, "10", core.Paid, "2025-04-01"),
		entry(core.Income, "20", core.Paid, "2025-04-02"),
		entry(core.Expense, "5", core.Paid, "2025-04-03"),
	}
	r := ComputeMetrics(items, date("2025-04-15"))
	if r.MostActive.DaysWithMovement != 3 {
		t.Errorf("days = %d", r.MostActive.DaysWithMovement)
	}
	top := r.MostActive.Top
	if top == nil || top.Date.String() != "2025-04-01" || top.Count != 2 {
		t.Fatalf("top = %+v, want 2025-04-01 with two items", top)
	}

	if empty := ComputeMetrics(nil, date("2025-04-15")); empty.MostActive.Top != nil {
		t.Error("expected no top day for empty input")
	}
}

func TestComputeMetricsAverages(t *testing.T) {
	items := []core.FinanceItem{
		entry(core.Expense, "10", core.Paid, "2025-04-01"),
		entry(core.Expense, "20", core.Paid, "2025-04-02"),
		entry(core.Expense, "3.33", core.Paid, "2025-04-03"),
	}
	r := ComputeMetrics(items, date("2025-04-15"))
	if !r.AverageExpense.Equal(dec("11.11")) || !r.AverageIncome.IsZero() {
		t.Errorf("averages = %s/%s", r.AverageExpense, r.AverageIncome)
	}
}
