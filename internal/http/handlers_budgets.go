package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sixjars/internal/core"
	"sixjars/internal/services"
)

type budgetRequest struct {
	JarCode        string `json:"jarCode"`
	Category       string `json:"category"`
	Amount         Amount `json:"amount"`
	Period         string `json:"period"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	AlertThreshold int    `json:"alertThreshold"`
}

func (s *Server) budgetInput(req budgetRequest) (services.BudgetInput, error) {
	code, err := core.ParseJarCode(req.JarCode)
	if err != nil {
		return services.BudgetInput{}, err
	}
	in := services.BudgetInput{
		JarCode:        code,
		Category:       sanitizeInput(req.Category),
		Amount:         req.Amount.Money(),
		Period:         core.BudgetPeriod(strings.ToLower(strings.TrimSpace(req.Period))),
		AlertThreshold: req.AlertThreshold,
	}
	if in.Period == "" {
		in.Period = core.BudgetMonthly
	}
	if strings.TrimSpace(req.StartDate) != "" {
		if in.StartDate, err = parseDate(req.StartDate, s.loc); err != nil {
			return services.BudgetInput{}, err
		}
	}
	if strings.TrimSpace(req.EndDate) != "" {
		end, err := parseDate(req.EndDate, s.loc)
		if err != nil {
			return services.BudgetInput{}, err
		}
		// A date-only end covers the whole day.
		if len(strings.TrimSpace(req.EndDate)) == len(time.DateOnly) {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		in.EndDate = &end
	}
	return in, nil
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.budgetInput(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Budgets.Create(r.Context(), UserID(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	code, err := optionalJar(r.URL.Query().Get("jar"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.svc.Budgets.List(r.Context(), UserID(r.Context()), code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []core.Budget{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": list})
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Budgets.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.budgetInput(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Budgets.Update(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Budgets.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBudgetAlert evaluates ?spent= against the jar's active budget, or
// the jar's recorded spend for the budget period when spent is omitted.
func (s *Server) handleBudgetAlert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code, err := core.ParseJarCode(q.Get("jar"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, userID := r.Context(), UserID(r.Context())

	raw := strings.TrimSpace(q.Get("spent"))
	if raw == "" {
		alert, err := s.svc.Budgets.CheckAlertMonthToDate(ctx, userID, code)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, alert)
		return
	}

	spent, err := parseSpent(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	alert, err := s.svc.Budgets.CheckAlert(ctx, userID, code, spent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// parseSpent accepts zero, which ParseAmount rejects.
func parseSpent(raw string) (core.Money, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n < 0 {
			return 0, core.ErrInvalidAmount
		}
		return core.Money(n), nil
	}
	return core.ParseAmount(raw)
}
