package http

import (
	"net/http"

	"finboard/internal/core"
	"finboard/internal/log"
)

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	templates, err := s.ledger.ListTemplates(ctx, user, scopeFor(user, r.URL.Query().Get("board")))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if templates == nil {
		templates = []core.FixedTemplate{}
	}
	NewJSONResponse().Body(map[string]any{"templates": templates}).Write(w)
}

func (s *Server) handleDeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.ledger.DeactivateTemplate(ctx, user, r.PathValue("id")); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	categories, err := s.ledger.ListCategories(ctx, user)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"categories": categories}).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	name, err := s.ledger.CreateCategory(ctx, user, req.Name)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(nameRequest{Name: name}).Write(w)
}

func (s *Server) handleListBoards(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	boards, err := s.ledger.ListBoards(ctx, user)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"boards": boards}).Write(w)
}

func (s *Server) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	board, err := s.ledger.CreateBoard(ctx, user, req.Name)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(board).Write(w)
}
