package memory

import (
	"context"
	"fmt"
	"sync"

	"finboard/internal/core"
	"finboard/internal/sheets"
)

var _ sheets.MonthExporter = (*Store)(nil)

// Store keeps exported rows per tab. Used for dry runs and tests.
type Store struct {
	mu   sync.Mutex
	tabs map[string][][]any
}

func New() *Store {
	return &Store{tabs: make(map[string][][]any)}
}

// ExportMonth appends the rows to the tab and returns an A1-style reference.
// The header row is written once, when the tab is first created.
func (s *Store) ExportMonth(_ context.Context, label string, month core.Month, items []core.FinanceItem) (string, error) {
	if label == "" {
		return "", fmt.Errorf("empty tab label")
	}
	if len(items) == 0 {
		return "", sheets.ErrNoRows
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tabs[label]
	if !ok {
		rows = [][]any{sheets.Header}
	}
	first := len(rows) + 1
	rows = append(rows, sheets.Rows(month, items)...)
	s.tabs[label] = rows
	return fmt.Sprintf("mem:%s!A%d:L%d", label, first, len(rows)), nil
}

// Tab returns a copy of the rows written to label, header included.
func (s *Store) Tab(label string) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.tabs[label]...)
}
