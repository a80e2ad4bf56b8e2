package http

import (
	"net/http"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/services"
)

type metricsResponse struct {
	From    core.Month             `json:"from"`
	To      core.Month             `json:"to"`
	Metrics services.MetricsReport `json:"metrics"`
}

// handleMetrics aggregates one month or an inclusive from..to range.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, log.OpMetrics, err)
		return
	}
	query := r.URL.Query()
	from, to, err := parseMonthRange(query, s.ledger.Today().MonthOf())
	if err != nil {
		writeError(w, r, log.OpMetrics, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	report, err := s.ledger.Metrics(ctx, user, scopeFor(user, query.Get("board")), from, to)
	if err != nil {
		writeError(w, r, log.OpMetrics, err)
		return
	}
	NewJSONResponse().Body(metricsResponse{From: from, To: to, Metrics: report}).Write(w)
}
