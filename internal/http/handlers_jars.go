package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sixjars/internal/core"
)

type jarView struct {
	core.JarState
	Name       string `json:"name"`
	NameEn     string `json:"nameEn"`
	Percentage int    `json:"percentage"`
}

type jarsResponse struct {
	Jars  []jarView     `json:"jars"`
	Total core.JarState `json:"total"`
}

func newJarView(s core.JarState) jarView {
	def, _ := core.ByCode(s.Code)
	return jarView{JarState: s, Name: def.Name, NameEn: def.NameEn, Percentage: def.Percentage}
}

func handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jars": core.Definitions()})
}

func (s *Server) handleListJars(w http.ResponseWriter, r *http.Request) {
	jars, err := s.svc.Jars.List(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := jarsResponse{Jars: make([]jarView, 0, len(jars))}
	for _, j := range jars {
		resp.Jars = append(resp.Jars, newJarView(j))
		resp.Total.Allocated += j.Allocated
		resp.Total.Spent += j.Spent
		resp.Total.Balance += j.Balance
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetJar(w http.ResponseWriter, r *http.Request) {
	code, err := core.ParseJarCode(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jar, err := s.svc.Jars.Get(r.Context(), UserID(r.Context()), code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newJarView(jar))
}

func (s *Server) handleJarPeriods(w http.ResponseWriter, r *http.Request) {
	code, err := core.ParseJarCode(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", core.DefaultListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	periods, err := s.svc.Jars.Periods(r.Context(), UserID(r.Context()), code, core.ClampLimit(limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if periods == nil {
		periods = []core.JarPeriod{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"periods": periods})
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount Amount `json:"amount"`
	Note   string `json:"note"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	from, err := core.ParseJarCode(req.From)
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := core.ParseJarCode(req.To)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.svc.Jars.Transfer(r.Context(), UserID(r.Context()), from, to, req.Amount.Money(), sanitizeInput(req.Note))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleResetPeriod(w http.ResponseWriter, r *http.Request) {
	periods, err := s.svc.Jars.ResetPeriod(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"closed": periods})
}
