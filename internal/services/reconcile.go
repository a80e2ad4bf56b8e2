package services

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"finboard/internal/core"
)

// Reconciliation is the reconciled view of one month for one scope.
type Reconciliation struct {
	Month      core.Month         `json:"month"`
	Items      []core.FinanceItem `json:"items"`
	Synthetic  int                `json:"synthetic"`
	Suppressed int                `json:"suppressed"`
	// Err is set when a store read failed and Items holds only what could
	// be fetched. It wraps core.ErrUpstreamUnavailable.
	Err error `json:"-"`
}

// Degraded reports whether the reconciliation ran on partial data.
func (r Reconciliation) Degraded() bool {
	return r.Err != nil
}

// SyntheticID is the deterministic id of a template's projection in month.
func SyntheticID(templateID string, month core.Month) string {
	return core.SyntheticPrefix + templateID + "_" + month.String()
}

// dedupKey matches a recurring bill to a concrete entry for the same day.
func dedupKey(title, amount, category string, day int) string {
	return strings.Join([]string{title, amount, category, core.DayString(day)}, "|")
}

// ReconcileMonth merges the real items of month with projections of the
// active templates. A template whose bill already has a real entry on its
// effective day is skipped. Real items dated outside month are dropped.
// The result is sorted by date descending, then title and id ascending.
func ReconcileMonth(owner string, month core.Month, realItems []core.FinanceItem, templates []core.FixedTemplate) []core.FinanceItem {
	return reconcile(owner, month, realItems, templates).Items
}

func reconcile(owner string, month core.Month, realItems []core.FinanceItem, templates []core.FixedTemplate) Reconciliation {
	out := make([]core.FinanceItem, 0, len(realItems)+len(templates))
	existing := make(map[string]struct{}, len(realItems))

	for _, it := range realItems {
		if !month.Contains(it.Date) {
			continue
		}
		existing[dedupKey(it.Title, core.AmountKey(it.Amount), it.Category, it.Date.Day())] = struct{}{}
		out = append(out, it)
	}

	rec := Reconciliation{Month: month}
	for _, tpl := range templates {
		if !tpl.Active {
			continue
		}
		day := month.ClampDay(tpl.Day)
		if _, ok := existing[dedupKey(tpl.Title, core.AmountKey(tpl.Amount), tpl.Category, day)]; ok {
			rec.Suppressed++
			continue
		}
		out = append(out, project(owner, month, day, tpl))
		rec.Synthetic++
	}

	slices.SortFunc(out, compareItems)
	rec.Items = out
	return rec
}

func project(owner string, month core.Month, day int, tpl core.FixedTemplate) core.FinanceItem {
	ownerID := tpl.OwnerID
	if ownerID == "" {
		ownerID = owner
	}
	return core.FinanceItem{
		ID:          SyntheticID(tpl.ID, month),
		OwnerID:     ownerID,
		BoardID:     tpl.BoardID,
		Title:       tpl.Title,
		Amount:      tpl.Amount,
		Date:        month.Day(day),
		Type:        core.Expense,
		Status:      core.Pending,
		Category:    tpl.Category,
		IsFixed:     true,
		IsSynthetic: true,
		CreatedBy:   ownerID,
	}
}

func compareItems(a, b core.FinanceItem) int {
	if c := b.Date.Compare(a.Date.Time); c != 0 {
		return c
	}
	return cmp.Or(strings.Compare(a.Title, b.Title), strings.Compare(a.ID, b.ID))
}

// findSynthetic recomputes the projection addressed by id.
func findSynthetic(id string, month core.Month, templates []core.FixedTemplate) (core.FixedTemplate, error) {
	for _, tpl := range templates {
		if tpl.Active && SyntheticID(tpl.ID, month) == id {
			return tpl, nil
		}
	}
	return core.FixedTemplate{}, fmt.Errorf("synthetic item %s: %w", id, core.ErrNotFound)
}
