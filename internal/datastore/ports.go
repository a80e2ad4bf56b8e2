package datastore

import (
	"context"

	"finboard/internal/core"
)

// Ports for outbound adapters. Implementations must reject writes addressed
// to synthetic ids with core.ErrSyntheticImmutable and report missing
// records with core.ErrNotFound.
type (
	ItemStore interface {
		// ListItems returns the real items of scope dated inside month.
		ListItems(ctx context.Context, scope core.Scope, month core.Month) ([]core.FinanceItem, error)
		GetItem(ctx context.Context, id string) (core.FinanceItem, error)
		// SaveItem persists a new item and returns it with its assigned id.
		SaveItem(ctx context.Context, item core.FinanceItem) (core.FinanceItem, error)
		UpdateItem(ctx context.Context, item core.FinanceItem) error
		DeleteItem(ctx context.Context, id string) error
	}

	TemplateStore interface {
		ListActiveTemplates(ctx context.Context, scope core.Scope) ([]core.FixedTemplate, error)
		ListTemplates(ctx context.Context, scope core.Scope) ([]core.FixedTemplate, error)
		GetTemplate(ctx context.Context, id string) (core.FixedTemplate, error)
		SaveTemplate(ctx context.Context, tpl core.FixedTemplate) (core.FixedTemplate, error)
		SetTemplateActive(ctx context.Context, id string, active bool) error
	}

	BoardStore interface {
		GetBoard(ctx context.Context, id string) (core.FinanceBoard, error)
		SaveBoard(ctx context.Context, board core.FinanceBoard) (core.FinanceBoard, error)
		// ListBoardsForUser returns boards owned by or shared with userID.
		ListBoardsForUser(ctx context.Context, userID string) ([]core.FinanceBoard, error)
	}

	CategoryStore interface {
		ListCustomCategories(ctx context.Context, userID string) ([]string, error)
		SaveCategory(ctx context.Context, userID, name string) error
	}

	// Store bundles every port a ledger backend provides.
	Store interface {
		ItemStore
		TemplateStore
		BoardStore
		CategoryStore
	}
)
