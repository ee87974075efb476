package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sixjars/internal/core"
	"sixjars/internal/services"
)

type incomeRequest struct {
	Amount       Amount `json:"amount"`
	Source       string `json:"source"`
	Category     string `json:"category"`
	Note         string `json:"note"`
	AutoAllocate *bool  `json:"autoAllocate"`
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.svc.Incomes.RecordIncome(r.Context(), UserID(r.Context()), services.IncomeInput{
		Amount:       req.Amount.Money(),
		Source:       sanitizeInput(req.Source),
		Category:     sanitizeInput(req.Category),
		Note:         sanitizeInput(req.Note),
		AutoAllocate: req.AutoAllocate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", core.DefaultListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	incomes, err := s.svc.Incomes.List(r.Context(), UserID(r.Context()), core.ClampLimit(limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if incomes == nil {
		incomes = []core.IncomeRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"incomes": incomes})
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Incomes.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type expenseRequest struct {
	Amount         Amount `json:"amount"`
	JarCode        string `json:"jarCode"`
	Category       string `json:"category"`
	Description    string `json:"description"`
	RecognizedText string `json:"recognizedText"`
}

type expenseResponse struct {
	Transaction core.Transaction  `json:"transaction"`
	Alert       *core.BudgetAlert `json:"alert,omitempty"`
}

// handleCreateExpense records the expense and reports the month-to-date
// budget position of its jar. A failed alert lookup does not fail the request.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	code, err := core.ParseJarCode(req.JarCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, userID := r.Context(), UserID(r.Context())

	tx, err := s.svc.Transactions.RecordExpense(ctx, userID, services.ExpenseInput{
		Amount:         req.Amount.Money(),
		JarCode:        code,
		Category:       sanitizeInput(req.Category),
		Description:    sanitizeInput(req.Description),
		RecognizedText: sanitizeInput(req.RecognizedText),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := expenseResponse{Transaction: tx}
	if s.svc.Budgets != nil {
		if alert, err := s.svc.Budgets.CheckAlertMonthToDate(ctx, userID, code); err == nil {
			resp.Alert = &alert
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code, err := optionalJar(q.Get("jar"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	typ := core.TxType(q.Get("type"))
	if typ != "" && !typ.Valid() {
		writeError(w, r, core.ErrInvalidTxType)
		return
	}
	limit, err := queryInt(r, "limit", core.DefaultListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	txs, err := s.svc.Transactions.List(r.Context(), UserID(r.Context()), core.TransactionFilter{
		JarCode: code, Type: typ, MaxResults: limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.svc.Transactions.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Transactions.Remove(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
