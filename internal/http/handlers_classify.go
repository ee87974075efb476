package http

import (
	"net/http"

	"sixjars/internal/core"
)

type classifyRequest struct {
	Text string `json:"text"`
}

type confirmRequest struct {
	Type           core.TxType `json:"type"`
	Amount         Amount      `json:"amount"`
	Category       string      `json:"category"`
	Confidence     float64     `json:"confidence"`
	Jar            string      `json:"jar"`
	Source         string      `json:"source"`
	Description    string      `json:"description"`
	RecognizedText string      `json:"recognizedText"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Classification.Classify(r.Context(), sanitizeInput(req.Text))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleConfirmClassification(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c := core.Classification{
		Type:        req.Type,
		Amount:      req.Amount.Money(),
		Category:    sanitizeInput(req.Category),
		Confidence:  req.Confidence,
		Jar:         core.JarCode(req.Jar),
		Source:      sanitizeInput(req.Source),
		Description: sanitizeInput(req.Description),
	}
	res, err := s.svc.Classification.Confirm(r.Context(), UserID(r.Context()), c, sanitizeInput(req.RecognizedText))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
