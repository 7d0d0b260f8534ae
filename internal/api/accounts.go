package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/campusclub/gamify/internal/domain"
)

// ─── Activities ─────────────────────────────────────────────────────────────

type activityRequest struct {
	AccountID    string         `json:"account_id" validate:"required,max=128"`
	ActivityType string         `json:"activity_type" validate:"required"`
	Data         map[string]any `json:"data"`
}

func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.engine.RecordActivity(r.Context(), req.AccountID, req.ActivityType, req.Data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// ─── Accounts ───────────────────────────────────────────────────────────────

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleTransactions serves ?type=earned&type=bonus&limit=50.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var types []domain.TxType
	for _, t := range q["type"] {
		tt := domain.TxType(t)
		if !tt.Valid() {
			writeError(w, http.StatusBadRequest, "unknown transaction type: "+t)
			return
		}
		types = append(types, tt)
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.engine.Ledger().Account(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	txs, err := s.engine.History(r.Context(), id, types, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (s *Server) handleAccountBadges(w http.ResponseWriter, r *http.Request) {
	grants, err := s.engine.AccountBadges(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"badges": grants})
}

func (s *Server) handleAccountAchievements(w http.ResponseWriter, r *http.Request) {
	progress, err := s.engine.AccountAchievements(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievements": progress})
}

type spendRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0,lte=1000000"`
	Reason string `json:"reason" validate:"required,max=256"`
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	var req spendRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.engine.Ledger().Account(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	spent, err := s.engine.Spend(r.Context(), id, req.Amount, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	a, err := s.engine.Ledger().Account(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requested": req.Amount,
		"spent":     spent,
		"balance":   a.TotalPoints,
	})
}

type scopeRequest struct {
	Scope string `json:"scope" validate:"max=128"`
}

func (s *Server) handleSetScope(w http.ResponseWriter, r *http.Request) {
	var req scopeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := s.engine.SetScope(r.Context(), chi.URLParam(r, "id"), req.Scope)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}
