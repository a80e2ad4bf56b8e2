package services

import (
	"slices"
	"testing"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func rentTemplate() core.FixedTemplate {
	return core.FixedTemplate{ID: "t1", OwnerID: "u1", Title: "Rent", Amount: dec("1000"), Category: "Housing", Day: 31, Active: true}
}

func realItem(id, title, amount, category, day string) core.FinanceItem {
	return core.FinanceItem{
		ID:       id,
		OwnerID:  "u1",
		Title:    title,
		Amount:   dec(amount),
		Date:     date(day),
		Type:     core.Expense,
		Status:   core.Pending,
		Category: category,
	}
}

func TestReconcileProjectsTemplateOnLastDay(t *testing.T) {
	got := ReconcileMonth("u1", core.MustParseMonth("2025-04"), nil, []core.FixedTemplate{rentTemplate()})
	if len(got) != 1 {
		t.Fatalf("expected one synthetic item, got %d", len(got))
	}
	it := got[0]
	if it.ID != "fixed_t1_2025-04" || it.Date.String() != "2025-04-30" {
		t.Errorf("unexpected projection %s on %s", it.ID, it.Date)
	}
	if !it.Amount.Equal(dec("1000")) || it.Status != core.Pending || it.Type != core.Expense {
		t.Errorf("unexpected projection fields: %+v", it)
	}
	if !it.IsSynthetic || !it.IsFixed {
		t.Error("projection must be marked synthetic and fixed")
	}
}

func TestReconcileRealItemSuppressesProjection(t *testing.T) {
	seeded := []core.FinanceItem{realItem("r1", "Rent", "1000.00", "Housing", "2025-04-30")}
	rec := reconcile("u1", core.MustParseMonth("2025-04"), seeded, []core.FixedTemplate{rentTemplate()})
	if len(rec.Items) != 1 || rec.Items[0].ID != "r1" {
		t.Fatalf("expected only the real item, got %+v", rec.Items)
	}
	if rec.Synthetic != 0 || rec.Suppressed != 1 {
		t.Errorf("synthetic=%d suppressed=%d", rec.Synthetic, rec.Suppressed)
	}
}

func TestReconcileDedupRequiresFullKey(t *testing.T) {
	month := core.MustParseMonth("2025-04")
	tests := []struct {
		name string
		real core.FinanceItem
	}{
		{"different day", realItem("r1", "Rent", "1000", "Housing", "2025-04-29")},
		{"different amount", realItem("r1", "Rent", "999.99", "Housing", "2025-04-30")},
		{"different category", realItem("r1", "Rent", "1000", "Leisure", "2025-04-30")},
		{"different title", realItem("r1", "rent", "1000", "Housing", "2025-04-30")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReconcileMonth("u1", month, []core.FinanceItem{tt.real}, []core.FixedTemplate{rentTemplate()})
			if len(got) != 2 {
				t.Fatalf("expected real and synthetic items, got %d", len(got))
			}
		})
	}
}

func TestReconcileClampsDay(t *testing.T) {
	tests := []struct {
		month string
		want  string
	}{
		{"2025-04", "2025-04-30"},
		{"2025-02", "2025-02-28"},
		{"2024-02", "2024-02-29"},
		{"2025-01", "2025-01-31"},
	}
	for _, tt := range tests {
		t.Run(tt.month, func(t *testing.T) {
			got := ReconcileMonth("u1", core.MustParseMonth(tt.month), nil, []core.FixedTemplate{rentTemplate()})
			if len(got) != 1 || got[0].Date.String() != tt.want {
				t.Fatalf("got %v, want %s", got, tt.want)
			}
		})
	}
}

func TestReconcileSkipsInactiveTemplates(t *testing.T) {
	tpl := rentTemplate()
	tpl.Active = false
	if got := ReconcileMonth("u1", core.MustParseMonth("2025-04"), nil, []core.FixedTemplate{tpl}); len(got) != 0 {
		t.Fatalf("inactive template projected: %v", got)
	}
}

func TestReconcileDropsItemsOutsideMonth(t *testing.T) {
	seeded := []core.FinanceItem{
		realItem("r1", "Coffee", "3", "Leisure", "2025-04-10"),
		realItem("r2", "Coffee", "3", "Leisure", "2025-05-01"),
	}
	got := ReconcileMonth("u1", core.MustParseMonth("2025-04"), seeded, nil)
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("got %v", got)
	}
}

func TestReconcileOrderingAndIdempotence(t *testing.T) {
	month := core.MustParseMonth("2025-04")
	seeded := []core.FinanceItem{
		realItem("r3", "Bus", "2", "Transport", "2025-04-02"),
		realItem("r2", "Apples", "4", "Groceries", "2025-04-20"),
		realItem("r1", "Apples", "5", "Groceries", "2025-04-20"),
		realItem("r0", "Bread", "1", "Groceries", "2025-04-20"),
	}
	templates := []core.FixedTemplate{rentTemplate(), {ID: "t2", Title: "Gym", Amount: dec("30"), Category: "Health", Day: 2, Active: true}}

	first := ReconcileMonth("u1", month, seeded, templates)
	ids := make([]string, len(first))
	for i, it := range first {
		ids[i] = it.ID
	}
	want := []string{"fixed_t1_2025-04", "r1", "r2", "r0", "r3", "fixed_t2_2025-04"}
	if !slices.Equal(ids, want) {
		t.Fatalf("order = %v, want %v", ids, want)
	}

	second := ReconcileMonth("u1", month, seeded, templates)
	for i := range first {
		if first[i].ID != second[i].ID || !first[i].Date.Equal(second[i].Date.Time) {
			t.Fatalf("reconciliation not idempotent at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestReconcileOwnerFallback(t *testing.T) {
	tpl := rentTemplate()
	tpl.OwnerID = ""
	tpl.BoardID = "b1"
	got := ReconcileMonth("u9", core.MustParseMonth("2025-04"), nil, []core.FixedTemplate{tpl})
	if got[0].OwnerID != "u9" || got[0].BoardID != "b1" {
		t.Fatalf("unexpected scope on projection: %+v", got[0])
	}
}

func TestFindSynthetic(t *testing.T) {
	month := core.MustParseMonth("2025-04")
	tpl, err := findSynthetic("fixed_t1_2025-04", month, []core.FixedTemplate{rentTemplate()})
	if err != nil || tpl.ID != "t1" {
		t.Fatalf("findSynthetic = %v, %v", tpl, err)
	}
	if _, err := findSynthetic("fixed_t1_2025-05", month, []core.FixedTemplate{rentTemplate()}); err == nil {
		t.Fatal("expected not found for another month")
	}
}
