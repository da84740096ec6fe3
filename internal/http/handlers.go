package http

import (
	"context"
	"net/http"
	"time"

	"budget/internal/core"
	applog "budget/internal/log"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.readiness != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.readiness.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseMonthParams(r.URL.Query(), s.ledger.Today())
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	view := s.ledger.MonthView(year, month)
	writeJSON(w, http.StatusOK, newMonthResponse(view, s.ledger.Currency()))
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newOccurrenceList(s.ledger.Pending()))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newTemplateList(s.ledger.Templates()))
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.ledger.Template(r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, newTemplateResponse(t))
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	// The ledger assigns the id.
	t, err := req.toTemplate("")
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	created, err := s.ledger.CreateTemplate(r.Context(), t)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	w.Header().Set("Location", "/api/templates/"+created.ID)
	writeJSON(w, http.StatusCreated, newTemplateResponse(created))
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	t, err := req.toTemplate(r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	updated, err := s.ledger.UpdateTemplate(r.Context(), t)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, newTemplateResponse(updated))
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpDecide, err)
		return
	}
	key, decision, err := req.parse()
	if err != nil {
		writeError(w, r, applog.OpDecide, err)
		return
	}
	if err := s.ledger.RecordDecision(r.Context(), key, decision); err != nil {
		writeError(w, r, applog.OpDecide, err)
		return
	}
	t, err := s.ledger.Template(key.TemplateID)
	if err != nil {
		writeError(w, r, applog.OpDecide, err)
		return
	}
	writeJSON(w, http.StatusOK, newTemplateResponse(t))
}

func (s *Server) handleDue(w http.ResponseWriter, r *http.Request) {
	occ, ok := s.ledger.Due(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, dueResponse{
		Occurrence: newOccurrenceResponse(occ),
		Message:    core.NoticeFor(occ).Message(),
	})
}

func (s *Server) handleDismissDue(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.ledger.DismissDue(r.Context()); !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.handleDue(w, r)
}

func (s *Server) handleGetCurrency(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newCurrencyResponse(s.ledger.Currency()))
}

func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	if err := s.ledger.SetCurrency(r.Context(), core.Currency(req.Currency)); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, newCurrencyResponse(s.ledger.Currency()))
}
