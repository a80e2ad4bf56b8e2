package http

import (
	"net/http"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/services"
)

type itemsResponse struct {
	Month      core.Month         `json:"month"`
	Items      []core.FinanceItem `json:"items"`
	Synthetic  int                `json:"synthetic"`
	Suppressed int                `json:"suppressed"`
	// Degraded is set when recurring bills could not be loaded.
	Degraded bool `json:"degraded"`
}

type confirmRequest struct {
	BoardID string          `json:"boardId,omitempty"`
	Status  core.StatusType `json:"status,omitempty"`
}

// handleListItems returns the reconciled items of one month.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	month, err := parseMonthParam(r.URL.Query(), "month", s.ledger.Today().MonthOf())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	rec, err := s.ledger.Reconciled(ctx, user, scopeFor(user, r.URL.Query().Get("board")), month)
	if err != nil {
		writeError(w, r, log.OpReconcile, err)
		return
	}

	items := rec.Items
	if items == nil {
		items = []core.FinanceItem{}
	}
	NewJSONResponse().Body(itemsResponse{
		Month:      rec.Month,
		Items:      items,
		Synthetic:  rec.Synthetic,
		Suppressed: rec.Suppressed,
		Degraded:   rec.Degraded(),
	}).Write(w)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	var in services.NewItem
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	item, err := s.ledger.CreateItem(ctx, user, in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(item).Write(w)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	var patch services.ItemPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	item, err := s.ledger.UpdateItem(ctx, user, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(item).Write(w)
}

func (s *Server) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, log.OpToggle, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	item, err := s.ledger.ToggleStatus(ctx, user, r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpToggle, err)
		return
	}
	NewJSONResponse().Body(item).Write(w)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.ledger.DeleteItem(ctx, user, r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleConfirmItem materializes a projected recurring bill.
func (s *Server) handleConfirmItem(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, log.OpConfirm, err)
		return
	}
	var req confirmRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log.OpConfirm, err)
			return
		}
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	item, err := s.ledger.ConfirmFixed(ctx, user, scopeFor(user, req.BoardID), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, r, log.OpConfirm, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(item).Write(w)
}
