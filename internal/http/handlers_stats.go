package http

import (
	"context"
	"net/http"

	"sixjars/internal/core"
)

type statsResponse struct {
	Window core.WindowKind `json:"window"`
	Month  int             `json:"month,omitempty"`
	Year   int             `json:"year,omitempty"`
	core.Stats
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseWindowKind(r.URL.Query().Get("window"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := queryInt(r, "month", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := s.now().In(s.loc)
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}

	stats, err := s.svc.Stats.Stats(r.Context(), UserID(r.Context()), kind, month, year)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := statsResponse{Window: kind, Stats: stats}
	switch kind {
	case core.WindowMonth:
		resp.Month, resp.Year = month, year
	case core.WindowYear:
		resp.Year = year
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Stats.Summary(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.readyTTL)
		defer cancel()
		if err := s.svc.Store.Ping(ctx); err != nil {
			writeError(w, r, core.NewStorageError("ping", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
