package core

import (
	"encoding/json"
	"testing"
)

func TestMonthClampDay(t *testing.T) {
	tests := []struct {
		name  string
		month string
		day   int
		want  int
	}{
		{"31 in a 30-day month", "2025-04", 31, 30},
		{"31 in February non-leap", "2025-02", 31, 28},
		{"30 in February leap year", "2024-02", 30, 29},
		{"31 in a 31-day month", "2025-01", 31, 31},
		{"mid month untouched", "2025-04", 15, 15},
		{"below range", "2025-04", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MustParseMonth(tt.month).ClampDay(tt.day)
			if got != tt.want {
				t.Errorf("ClampDay(%d) = %d, want %d", tt.day, got, tt.want)
			}
		})
	}
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2025-04")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.String() != "2025-04" || m.LastDay() != 30 {
		t.Fatalf("unexpected month %v last=%d", m, m.LastDay())
	}
	for _, bad := range []string{"", "2025", "2025-13", "25-04", "2025-04-01"} {
		if _, err := ParseMonth(bad); err == nil {
			t.Errorf("ParseMonth(%q) expected error", bad)
		}
	}
}

func TestMonthRange(t *testing.T) {
	got := MustParseMonth("2024-11").Range(MustParseMonth("2025-02"))
	want := []string{"2024-11", "2024-12", "2025-01", "2025-02"}
	if len(got) != len(want) {
		t.Fatalf("got %d months, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("month %d = %s, want %s", i, got[i], want[i])
		}
	}
	if n, err := MonthsBetween(MustParseMonth("2024-11"), MustParseMonth("2025-02")); err != nil || n != 4 {
		t.Fatalf("MonthsBetween = %d, %v", n, err)
	}
	if _, err := MonthsBetween(MustParseMonth("2025-02"), MustParseMonth("2024-11")); err == nil {
		t.Fatal("expected error for reversed range")
	}
}

func TestMonthContains(t *testing.T) {
	m := MustParseMonth("2025-04")
	if !m.Contains(NewDate(2025, 4, 30)) {
		t.Error("expected April 30 inside 2025-04")
	}
	if m.Contains(NewDate(2025, 5, 1)) || m.Contains(NewDate(2024, 4, 1)) {
		t.Error("dates outside the month reported as inside")
	}
	if m.Contains(Date{}) {
		t.Error("zero date reported as inside")
	}
}

func TestDateJSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2025-04-30"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Equal(NewDate(2025, 4, 30).Time) {
		t.Fatalf("got %v", d)
	}
	b, err := json.Marshal(d)
	if err != nil || string(b) != `"2025-04-30"` {
		t.Fatalf("marshal = %s, %v", b, err)
	}
	if err := json.Unmarshal([]byte(`"30/04/2025"`), &d); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}

func TestDayString(t *testing.T) {
	if DayString(5) != "05" || DayString(30) != "30" {
		t.Fatalf("unexpected padding: %s %s", DayString(5), DayString(30))
	}
}
