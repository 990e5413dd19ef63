package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"guildvault/internal/domain"
	"guildvault/internal/xp"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	chat, ok := chatParam(w, r)
	if !ok {
		return
	}
	records, err := s.store.Leaderboard(chat, s.limitParam(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.GlobalXPTop(s.limitParam(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCups(w http.ResponseWriter, r *http.Request) {
	chat, ok := chatParam(w, r)
	if !ok {
		return
	}
	cups, err := s.store.Cups(chat, s.limitParam(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cups)
}

func (s *Server) handleCupWins(w http.ResponseWriter, r *http.Request) {
	wins, err := s.store.CupWinsTop(s.limitParam(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wins)
}

func (s *Server) handleAdmins(w http.ResponseWriter, r *http.Request) {
	chat, ok := chatParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.store.Admins(chat))
}

func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	chat, ok := chatParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.store.PendingApplications(chat))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	chat, ok := chatParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.store.Statistics(chat))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	chat, ok := chatParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.store.GroupSnapshot(chat))
}

// profileResponse joins the XP record, level progress and admin standing of
// one user in one chat.
type profileResponse struct {
	UserID   int64            `json:"user_id"`
	XP       *domain.XPRecord `json:"xp,omitempty"`
	Progress xp.LevelProgress `json:"progress"`
	Admin    *domain.Admin    `json:"admin,omitempty"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	chat, ok := chatParam(w, r)
	if !ok {
		return
	}
	user, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "userID must be an integer")
		return
	}

	resp := profileResponse{UserID: user}
	if rec, found := s.store.XP(chat, user); found {
		resp.XP = &rec
		resp.Progress = xp.Progress(rec.Score)
	} else {
		resp.Progress = xp.Progress(0)
	}
	if adm, found := s.store.GetAdmin(chat, user); found {
		resp.Admin = &adm
	}
	writeJSON(w, http.StatusOK, resp)
}

// chatParam extracts the required ?chat= scope, writing a 400 when absent.
func chatParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	chat := r.URL.Query().Get("chat")
	if chat == "" {
		writeError(w, http.StatusBadRequest, "chat query parameter is required")
		return "", false
	}
	return chat, true
}

func (s *Server) limitParam(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return s.defaultLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return -1 // let the store reject it as a validation error
	}
	return limit
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrValidation) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
