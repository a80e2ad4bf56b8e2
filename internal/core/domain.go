package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  ItemType = "income"
	Expense ItemType = "expense"

	Pending StatusType = "pending"
	Paid    StatusType = "paid"
	Partial StatusType = "partial"
)

// SyntheticPrefix marks ids of projected recurring items.
const SyntheticPrefix = "fixed_"

const maxTitleLen = 200

type (
	ItemType   string
	StatusType string

	FinanceItem struct {
		ID            string          `json:"id"`
		OwnerID       string          `json:"ownerId"`
		BoardID       string          `json:"boardId,omitempty"`
		Title         string          `json:"title"`
		Amount        decimal.Decimal `json:"amount"`
		Date          Date            `json:"date"`
		Type          ItemType        `json:"type"`
		Status        StatusType      `json:"status"`
		PaidAmount    decimal.Decimal `json:"paidAmount"`
		Category      string          `json:"category"`
		IsFixed       bool            `json:"isFixed"`
		IsSynthetic   bool            `json:"isSynthetic"`
		CreatedBy     string          `json:"createdBy,omitempty"`
		CreatedByName string          `json:"createdByName,omitempty"`
		CreatedAt     time.Time       `json:"createdAt"`
	}

	// FixedTemplate is a recurring monthly expense. Day is clamped to the
	// last day of the target month when projected.
	FixedTemplate struct {
		ID        string          `json:"id"`
		OwnerID   string          `json:"ownerId"`
		BoardID   string          `json:"boardId,omitempty"`
		Title     string          `json:"title"`
		Amount    decimal.Decimal `json:"amount"`
		Category  string          `json:"category"`
		Day       int             `json:"day"`
		Active    bool            `json:"active"`
		CreatedAt time.Time       `json:"createdAt"`
	}
)

var (
	ErrEmptyTitle        = errors.New("empty title")
	ErrTitleTooLong      = errors.New("title too long (max 200 characters)")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidDay        = errors.New("invalid day")
	ErrEmptyCategory     = errors.New("empty category")
	ErrInvalidType       = errors.New("invalid type")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidPaidAmount = errors.New("invalid paid amount")
)

// FieldError reports which field of an item failed validation.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldErr(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}

func (t ItemType) Valid() bool {
	return t == Income || t == Expense
}

func (s StatusType) Valid() bool {
	switch s {
	case Pending, Paid, Partial:
		return true
	}
	return false
}

// IsSyntheticID reports whether id follows the projected-item pattern.
func IsSyntheticID(id string) bool {
	return strings.HasPrefix(id, SyntheticPrefix)
}

// OpenAmount is what is still to be paid, never negative.
func (i FinanceItem) OpenAmount() decimal.Decimal {
	open := i.Amount.Sub(i.PaidAmount)
	if open.IsNegative() {
		return decimal.Zero
	}
	return open
}

// Scope returns the owner or board the item belongs to.
func (i FinanceItem) Scope() Scope {
	return Scope{OwnerID: i.OwnerID, BoardID: i.BoardID}
}

// IsOverdue reports an unpaid item dated before today.
func (i FinanceItem) IsOverdue(today Date) bool {
	return i.Status != Paid && i.Date.Before(today.Time)
}

func (i FinanceItem) Validate() error {
	title := strings.TrimSpace(i.Title)
	if title == "" {
		return fieldErr("title", ErrEmptyTitle)
	}
	if len(title) > maxTitleLen {
		return fieldErr("title", ErrTitleTooLong)
	}
	if !i.Amount.IsPositive() || !IsCents(i.Amount) {
		return fieldErr("amount", ErrInvalidAmount)
	}
	if err := i.Date.Validate(); err != nil {
		return fieldErr("date", err)
	}
	if !i.Type.Valid() {
		return fieldErr("type", ErrInvalidType)
	}
	if !i.Status.Valid() {
		return fieldErr("status", ErrInvalidStatus)
	}
	if strings.TrimSpace(i.Category) == "" {
		return fieldErr("category", ErrEmptyCategory)
	}
	if i.PaidAmount.IsNegative() || !IsCents(i.PaidAmount) {
		return fieldErr("paidAmount", ErrInvalidPaidAmount)
	}
	if i.Status == Partial && (!i.PaidAmount.IsPositive() || !i.PaidAmount.LessThan(i.Amount)) {
		return fieldErr("paidAmount", ErrInvalidPaidAmount)
	}
	return nil
}

func (t FixedTemplate) Validate() error {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return fieldErr("title", ErrEmptyTitle)
	}
	if len(title) > maxTitleLen {
		return fieldErr("title", ErrTitleTooLong)
	}
	if !t.Amount.IsPositive() || !IsCents(t.Amount) {
		return fieldErr("amount", ErrInvalidAmount)
	}
	if strings.TrimSpace(t.Category) == "" {
		return fieldErr("category", ErrEmptyCategory)
	}
	if t.Day < 1 || t.Day > 31 {
		return fieldErr("day", ErrInvalidDay)
	}
	return nil
}

// StatusForPaid derives the status from how much of amount was paid.
func StatusForPaid(amount, paid decimal.Decimal) StatusType {
	switch {
	case paid.GreaterThanOrEqual(amount):
		return Paid
	case paid.IsPositive():
		return Partial
	default:
		return Pending
	}
}
