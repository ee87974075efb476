package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sixjars/internal/core"
	"sixjars/internal/services"
)

type goalRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	TargetAmount  Amount `json:"targetAmount"`
	CurrentAmount Amount `json:"currentAmount"`
	TargetDate    string `json:"targetDate"`
	JarCode       string `json:"jarCode"`
	Status        string `json:"status"`
	Priority      string `json:"priority"`
}

type goalProgressRequest struct {
	Amount Amount `json:"amount"`
}

func (s *Server) goalInput(req goalRequest) (services.GoalInput, error) {
	code, err := optionalJar(req.JarCode)
	if err != nil {
		return services.GoalInput{}, err
	}
	in := services.GoalInput{
		Title:         sanitizeInput(req.Title),
		Description:   sanitizeInput(req.Description),
		TargetAmount:  req.TargetAmount.Money(),
		CurrentAmount: req.CurrentAmount.Money(),
		JarCode:       code,
		Status:        core.GoalStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Priority:      core.GoalPriority(strings.ToLower(strings.TrimSpace(req.Priority))),
	}
	if strings.TrimSpace(req.TargetDate) != "" {
		d, err := parseDate(req.TargetDate, s.loc)
		if err != nil {
			return services.GoalInput{}, fmt.Errorf("%w: target date %q must be YYYY-MM-DD or RFC 3339", core.ErrInvalidGoal, req.TargetDate)
		}
		in.TargetDate = &d
	}
	return in, nil
}

func (s *Server) goalViews(list []core.Goal) []core.GoalView {
	views := make([]core.GoalView, 0, len(list))
	for _, g := range list {
		views = append(views, s.svc.Goals.View(g))
	}
	return views
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.goalInput(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.svc.Goals.Create(r.Context(), UserID(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.svc.Goals.View(g))
}

// handleListGoals accepts optional ?status= and ?jar= filters.
func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code, err := optionalJar(q.Get("jar"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := core.GoalFilter{
		Status:  core.GoalStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
		JarCode: code,
	}
	list, err := s.svc.Goals.List(r.Context(), UserID(r.Context()), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": s.goalViews(list)})
}

func (s *Server) handleActiveGoals(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Goals.Active(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": s.goalViews(list)})
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.Goals.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Goals.View(g))
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.goalInput(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.svc.Goals.Update(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Goals.View(g))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Goals.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGoalProgress adds a signed amount; negative values withdraw.
func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	var req goalProgressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.svc.Goals.UpdateProgress(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), req.Amount.Money())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Goals.View(g))
}
