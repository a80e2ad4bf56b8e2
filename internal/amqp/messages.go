package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finboard/internal/core"
)

// ChangeOp names what happened to the ledger.
type ChangeOp string

const (
	OpItemCreated     ChangeOp = "item_created"
	OpItemUpdated     ChangeOp = "item_updated"
	OpItemDeleted     ChangeOp = "item_deleted"
	OpTemplateChanged ChangeOp = "template_changed"

	// OpResync is raised locally after the consumer re-subscribes. Events
	// published while it was disconnected are lost, so every snapshot is
	// suspect. It carries no scope and never goes over the wire.
	OpResync ChangeOp = "resync"
)

// ChangeEvent tells every instance which reconciled snapshots went stale.
// An empty Month means every month of the scope.
type ChangeEvent struct {
	OwnerID    string    `json:"ownerId,omitempty"`
	BoardID    string    `json:"boardId,omitempty"`
	Month      string    `json:"month,omitempty"`
	Op         ChangeOp  `json:"op"`
	ItemID     string    `json:"itemId,omitempty"`
	TemplateID string    `json:"templateId,omitempty"`
	Origin     string    `json:"origin,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewItemEvent describes a change to item in its own month.
func NewItemEvent(op ChangeOp, item core.FinanceItem) ChangeEvent {
	ev := ChangeEvent{
		OwnerID:   item.OwnerID,
		BoardID:   item.BoardID,
		Op:        op,
		ItemID:    item.ID,
		Timestamp: time.Now().UTC(),
	}
	if !item.Date.IsZero() {
		ev.Month = item.Date.MonthOf().String()
	}
	return ev
}

// NewTemplateEvent invalidates every month of the template's scope.
func NewTemplateEvent(tpl core.FixedTemplate) ChangeEvent {
	return ChangeEvent{
		OwnerID:    tpl.OwnerID,
		BoardID:    tpl.BoardID,
		Op:         OpTemplateChanged,
		TemplateID: tpl.ID,
		Timestamp:  time.Now().UTC(),
	}
}

func (e ChangeEvent) Scope() core.Scope {
	if e.BoardID != "" {
		return core.BoardScope(e.BoardID)
	}
	return core.PersonalScope(e.OwnerID)
}

// TargetMonth parses Month; the zero month means the whole scope.
func (e ChangeEvent) TargetMonth() (core.Month, error) {
	if e.Month == "" {
		return core.Month{}, nil
	}
	return core.ParseMonth(e.Month)
}

func (e ChangeEvent) Validate() error {
	if e.OwnerID == "" && e.BoardID == "" {
		return fmt.Errorf("change event %s: missing scope", e.Op)
	}
	if _, err := e.TargetMonth(); err != nil {
		return fmt.Errorf("change event %s: %w", e.Op, err)
	}
	return nil
}

func (e ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ChangeEventFromJSON decodes and validates a delivery body.
func ChangeEventFromJSON(data []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ChangeEvent{}, err
	}
	if err := ev.Validate(); err != nil {
		return ChangeEvent{}, err
	}
	return ev, nil
}
