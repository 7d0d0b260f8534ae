package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusclub/gamify/internal/domain"
)

// ─── Catalog ────────────────────────────────────────────────────────────────

// handleBadges lists the catalog. ?viewer=<account> reveals hidden badges
// that account holds.
func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.Badges(r.Context(), r.URL.Query().Get("viewer"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"badges": list})
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.Achievements(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievements": list})
}

type joinRequest struct {
	AccountID string `json:"account_id" validate:"required,max=128"`
}

func (s *Server) handleJoinAchievement(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.engine.JoinAchievement(r.Context(), req.AccountID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ─── Leaderboards ───────────────────────────────────────────────────────────

// handleLeaderboard serves ?scope=global|scope:<name>&metric=points&limit=10.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	board, err := s.engine.Leaderboard(q.Get("scope"), q.Get("metric"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ─── Administration ─────────────────────────────────────────────────────────

type awardPointsRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0,lte=1000000"`
	Category    string `json:"category" validate:"required,oneof=activity social leadership academic special"`
	Description string `json:"description" validate:"required,max=256"`
}

func (s *Server) handleAwardPoints(w http.ResponseWriter, r *http.Request) {
	var req awardPointsRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.engine.AwardPoints(r.Context(), chi.URLParam(r, "id"), req.Amount, domain.Category(req.Category), req.Description)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type awardBadgeRequest struct {
	BadgeID string `json:"badge_id" validate:"required"`
	Reason  string `json:"reason" validate:"max=256"`
}

func (s *Server) handleAwardBadge(w http.ResponseWriter, r *http.Request) {
	var req awardBadgeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.engine.AwardBadge(r.Context(), chi.URLParam(r, "id"), req.BadgeID, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type penaltyRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0,lte=1000000"`
	Reason string `json:"reason" validate:"required,max=256"`
}

func (s *Server) handlePenalize(w http.ResponseWriter, r *http.Request) {
	var req penaltyRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	deducted, err := s.engine.Penalize(r.Context(), chi.URLParam(r, "id"), req.Amount, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"requested": req.Amount, "deducted": deducted})
}

func (s *Server) handleFailAchievement(w http.ResponseWriter, r *http.Request) {
	ok, err := s.engine.FailAchievement(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "achievement"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"failed": ok})
}

func (s *Server) handleRankNow(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.RankNow(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":      snap.Version,
		"generated_at": snap.GeneratedAt,
		"boards":       len(snap.Boards),
		"errors":       snap.Errors,
	})
}
