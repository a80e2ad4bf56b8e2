package storage

import (
	"fmt"
	"time"

	"finboard/internal/core"
)

// Rows are scanned into raw strings and only become domain records after
// decodeItem or decodeTemplate has validated them.
type (
	itemRow struct {
		ID, OwnerID, BoardID, Title       string
		Amount, Date, Type, Status        string
		PaidAmount, Category              string
		IsFixed                           int
		CreatedBy, CreatedByName, Created string
	}

	templateRow struct {
		ID, OwnerID, BoardID, Title string
		Amount, Category            string
		Day, Active                 int
		Created                     string
	}

	scanner interface {
		Scan(dest ...any) error
	}
)

func scanItemRow(s scanner) (itemRow, error) {
	var r itemRow
	err := s.Scan(&r.ID, &r.OwnerID, &r.BoardID, &r.Title, &r.Amount, &r.Date, &r.Type,
		&r.Status, &r.PaidAmount, &r.Category, &r.IsFixed, &r.CreatedBy, &r.CreatedByName, &r.Created)
	return r, err
}

func scanTemplateRow(s scanner) (templateRow, error) {
	var r templateRow
	err := s.Scan(&r.ID, &r.OwnerID, &r.BoardID, &r.Title, &r.Amount, &r.Category, &r.Day, &r.Active, &r.Created)
	return r, err
}

func decodeItem(r itemRow) (core.FinanceItem, error) {
	amount, err := core.ParseAmount(r.Amount)
	if err != nil {
		return core.FinanceItem{}, fmt.Errorf("amount %q: %w", r.Amount, err)
	}
	paid, err := core.ParsePaidAmount(r.PaidAmount)
	if err != nil {
		return core.FinanceItem{}, fmt.Errorf("paid amount %q: %w", r.PaidAmount, err)
	}
	date, err := core.ParseDate(r.Date)
	if err != nil {
		return core.FinanceItem{}, fmt.Errorf("date %q: %w", r.Date, err)
	}

	item := core.FinanceItem{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		BoardID:       r.BoardID,
		Title:         r.Title,
		Amount:        amount,
		Date:          date,
		Type:          core.ItemType(r.Type),
		Status:        core.StatusType(r.Status),
		PaidAmount:    paid,
		Category:      r.Category,
		IsFixed:       r.IsFixed == 1,
		CreatedBy:     r.CreatedBy,
		CreatedByName: r.CreatedByName,
		CreatedAt:     parseTimestamp(r.Created),
	}
	if err := item.Validate(); err != nil {
		return core.FinanceItem{}, err
	}
	return item, nil
}

func decodeTemplate(r templateRow) (core.FixedTemplate, error) {
	amount, err := core.ParseAmount(r.Amount)
	if err != nil {
		return core.FixedTemplate{}, fmt.Errorf("amount %q: %w", r.Amount, err)
	}
	tpl := core.FixedTemplate{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		BoardID:   r.BoardID,
		Title:     r.Title,
		Amount:    amount,
		Category:  r.Category,
		Day:       r.Day,
		Active:    r.Active == 1,
		CreatedAt: parseTimestamp(r.Created),
	}
	if err := tpl.Validate(); err != nil {
		return core.FixedTemplate{}, err
	}
	return tpl, nil
}

// parseTimestamp tolerates legacy rows; a bad timestamp is not worth
// dropping an otherwise valid record.
func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
