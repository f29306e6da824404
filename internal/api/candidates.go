package api

import (
	"net/http"

	"go.uber.org/zap"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

type candidateView struct {
	matching.Candidate
	Breakdown *matching.Breakdown `json:"breakdown,omitempty"`
}

// GET /candidates?page=1&page_size=10&explain=1
func candidatesHandler(engine *matching.Engine, profiles ProfileReader, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := mustUserID(r)

		page, ok := queryInt(r, "page")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_page")
			return
		}
		size, ok := queryInt(r, "page_size")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_page_size")
			return
		}

		candidates, err := engine.RankCandidates(r.Context(), me, page, size)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		var self *matching.Profile
		if r.URL.Query().Get("explain") == "1" {
			p, err := profiles.Get(r.Context(), me)
			if err != nil {
				writeDomainError(w, log, err)
				return
			}
			self = &p
		}

		out := make([]candidateView, 0, len(candidates))
		for _, c := range candidates {
			v := candidateView{Candidate: c}
			if self != nil {
				b := matching.Explain(*self, c.Profile)
				v.Breakdown = &b
			}
			out = append(out, v)
		}
		writeJSON(w, http.StatusOK, map[string]any{"candidates": out})
	}
}
