package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/chat"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/moderation"
)

// --- Response helpers ---
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps engine, chat and moderation errors onto status codes. Anything
// unrecognised is logged and reported as a 500.
func writeDomainError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, matching.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, matching.ErrSelfAction):
		writeError(w, http.StatusBadRequest, "invalid_target")
	case errors.Is(err, matching.ErrDuplicateLike):
		writeError(w, http.StatusConflict, "duplicate_like")
	case errors.Is(err, matching.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_state")
	case errors.Is(err, chat.ErrNotMatched):
		writeError(w, http.StatusForbidden, "not_matched")
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, "invalid_message")
	case errors.Is(err, moderation.ErrInvalidReport):
		writeError(w, http.StatusBadRequest, "invalid_report")
	case errors.Is(err, moderation.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "invalid_action")
	case errors.Is(err, moderation.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "already_resolved")
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

// queryInt reads an optional integer query parameter. Missing means 0.
func queryInt(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
