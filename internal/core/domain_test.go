package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func validItem() FinanceItem {
	return FinanceItem{
		ID:       "a",
		OwnerID:  "u1",
		Title:    "Rent",
		Amount:   dec("1000"),
		Date:     NewDate(2025, 4, 30),
		Type:     Expense,
		Status:   Pending,
		Category: "Housing",
	}
}

func TestFinanceItemValidate(t *testing.T) {
	if err := validItem().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*FinanceItem)
		field  string
		want   error
	}{
		{"empty title", func(i *FinanceItem) { i.Title = "  " }, "title", ErrEmptyTitle},
		{"long title", func(i *FinanceItem) { i.Title = strings.Repeat("x", 201) }, "title", ErrTitleTooLong},
		{"zero amount", func(i *FinanceItem) { i.Amount = decimal.Zero }, "amount", ErrInvalidAmount},
		{"zero date", func(i *FinanceItem) { i.Date = Date{} }, "date", ErrInvalidDate},
		{"bad type", func(i *FinanceItem) { i.Type = "transfer" }, "type", ErrInvalidType},
		{"bad status", func(i *FinanceItem) { i.Status = "late" }, "status", ErrInvalidStatus},
		{"empty category", func(i *FinanceItem) { i.Category = "" }, "category", ErrEmptyCategory},
		{"partial without paid", func(i *FinanceItem) { i.Status = Partial }, "paidAmount", ErrInvalidPaidAmount},
		{"partial fully paid", func(i *FinanceItem) {
			i.Status = Partial
			i.PaidAmount = dec("1000")
		}, "paidAmount", ErrInvalidPaidAmount},
		{"negative paid", func(i *FinanceItem) { i.PaidAmount = dec("-1") }, "paidAmount", ErrInvalidPaidAmount},
		{"sub-cent amount", func(i *FinanceItem) { i.Amount = dec("10.004") }, "amount", ErrInvalidAmount},
		{"sub-cent paid", func(i *FinanceItem) {
			i.Status = Partial
			i.PaidAmount = dec("10.001")
		}, "paidAmount", ErrInvalidPaidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := validItem()
			tt.mutate(&item)
			err := item.Validate()
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fe.Field != tt.field || !errors.Is(err, tt.want) {
				t.Errorf("got %s/%v, want %s/%v", fe.Field, fe.Err, tt.field, tt.want)
			}
		})
	}
}

func TestOpenAmountNeverNegative(t *testing.T) {
	item := validItem()
	item.PaidAmount = dec("1200")
	if !item.OpenAmount().IsZero() {
		t.Fatalf("expected zero open amount, got %s", item.OpenAmount())
	}
	item.PaidAmount = dec("250")
	if got := item.OpenAmount().String(); got != "750" {
		t.Fatalf("expected 750, got %s", got)
	}
}

func TestStatusForPaid(t *testing.T) {
	tests := []struct {
		paid string
		want StatusType
	}{
		{"0", Pending},
		{"0.01", Partial},
		{"999.99", Partial},
		{"1000", Paid},
		{"1500", Paid},
	}
	for _, tt := range tests {
		if got := StatusForPaid(dec("1000"), dec(tt.paid)); got != tt.want {
			t.Errorf("StatusForPaid(1000, %s) = %s, want %s", tt.paid, got, tt.want)
		}
	}
}

func TestIsOverdue(t *testing.T) {
	today := NewDate(2025, 4, 15)
	item := validItem()
	item.Date = NewDate(2025, 4, 1)
	if !item.IsOverdue(today) {
		t.Error("pending item in the past should be overdue")
	}
	item.Status = Paid
	if item.IsOverdue(today) {
		t.Error("paid item should never be overdue")
	}
	item.Status = Partial
	item.Date = today
	if item.IsOverdue(today) {
		t.Error("item due today is not overdue yet")
	}
}

func TestFixedTemplateValidate(t *testing.T) {
	tpl := FixedTemplate{Title: "Rent", Amount: dec("1000"), Category: "Housing", Day: 31, Active: true}
	if err := tpl.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, day := range []int{0, 32} {
		tpl.Day = day
		if err := tpl.Validate(); !errors.Is(err, ErrInvalidDay) {
			t.Errorf("day %d: expected ErrInvalidDay, got %v", day, err)
		}
	}
	tpl.Day = 1
	tpl.Amount = dec("999.999")
	if err := tpl.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for sub-cent amount, got %v", err)
	}
}

func TestIsSyntheticID(t *testing.T) {
	if !IsSyntheticID("fixed_t1_2025-04") {
		t.Error("expected synthetic id")
	}
	if IsSyntheticID("8b0f6c52-0000-4000-8000-000000000000") {
		t.Error("uuid reported as synthetic")
	}
}

func TestMergeCategories(t *testing.T) {
	got := MergeCategories([]string{"Pets", " ", "Housing", "Pets"})
	if len(got) != len(BuiltinCategories)+1 || got[len(got)-1] != "Pets" {
		t.Fatalf("unexpected categories: %v", got)
	}
	if !IsBuiltinCategory(" Housing ") || IsBuiltinCategory("Pets") {
		t.Fatal("unexpected built-in detection")
	}
}
