package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/sheets"
)

func TestExportMonthWritesHeaderOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	april := core.MustParseMonth("2025-04")
	may := core.MustParseMonth("2025-05")

	rent := core.FinanceItem{ID: "i1", Title: "Rent", Amount: decimal.NewFromInt(900), Date: april.Day(1), Type: core.Expense, Status: core.Paid, PaidAmount: decimal.NewFromInt(900), Category: "Housing"}
	salary := core.FinanceItem{ID: "i2", Title: "Salary", Amount: decimal.NewFromInt(3000), Date: may.Day(27), Type: core.Income, Status: core.Pending, Category: "Salary"}

	ref, err := s.ExportMonth(ctx, "alice", april, []core.FinanceItem{rent})
	if err != nil {
		t.Fatalf("ExportMonth() error = %v", err)
	}
	if ref != "mem:alice!A2:L2" {
		t.Errorf("ref = %q, want mem:alice!A2:L2", ref)
	}

	ref, err = s.ExportMonth(ctx, "alice", may, []core.FinanceItem{salary})
	if err != nil {
		t.Fatalf("ExportMonth() error = %v", err)
	}
	if ref != "mem:alice!A3:L3" {
		t.Errorf("ref = %q, want mem:alice!A3:L3", ref)
	}

	tab := s.Tab("alice")
	if len(tab) != 3 {
		t.Fatalf("tab has %d rows, want 3", len(tab))
	}
	if tab[0][0] != "Month" {
		t.Errorf("first row is not the header: %v", tab[0])
	}
	if tab[2][0] != "2025-05" || tab[2][2] != "Salary" {
		t.Errorf("unexpected row: %v", tab[2])
	}
}

func TestExportMonthRejectsEmptyInput(t *testing.T) {
	s := New()
	month := core.MustParseMonth("2025-04")

	if _, err := s.ExportMonth(context.Background(), "alice", month, nil); !errors.Is(err, sheets.ErrNoRows) {
		t.Errorf("error = %v, want ErrNoRows", err)
	}
	if _, err := s.ExportMonth(context.Background(), "", month, []core.FinanceItem{{ID: "x"}}); err == nil {
		t.Error("expected error for empty label")
	}
	if len(s.Tab("alice")) != 0 {
		t.Error("nothing should have been written")
	}
}
