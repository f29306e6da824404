package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/moderation"
)

// POST /users/{id}/report
func reportUserHandler(svc *moderation.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reason      moderation.Reason `json:"reason"`
			Description string            `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		report, err := svc.Report(r.Context(), mustUserID(r), mux.Vars(r)["id"], req.Reason, req.Description)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"report": report})
	}
}

// GET /admin/reports?status=pending&page=1&limit=20
func listReportsHandler(svc *moderation.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, ok := queryInt(r, "page")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_page")
			return
		}
		limit, ok := queryInt(r, "limit")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		status := moderation.Status(r.URL.Query().Get("status"))
		if status == "all" {
			status = ""
		}

		reports, err := svc.List(r.Context(), status, page, limit)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
	}
}

// POST /admin/reports/{id}/action
func reportActionHandler(svc *moderation.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Action moderation.Action `json:"action"`
			Notes  string            `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		report, err := svc.Resolve(r.Context(), mustUserID(r), mux.Vars(r)["id"], req.Action, req.Notes)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"report": report})
	}
}
