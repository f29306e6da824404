package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

type matchView struct {
	Match      *matching.Match   `json:"match"`
	Peer       *matching.Profile `json:"peer,omitempty"`
	PeerOnline bool              `json:"peer_online"`
}

// Presence tells whether a user has a live connection. realtime.Hub satisfies it.
type Presence interface {
	Online(userID string) bool
}

// POST /users/{id}/like
func likeHandler(engine *matching.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := engine.RecordLike(r.Context(), mustUserID(r), mux.Vars(r)["id"])
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// POST /users/{id}/pass
func passHandler(engine *matching.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := engine.RecordPass(r.Context(), mustUserID(r), mux.Vars(r)["id"])
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, matchView{Match: m})
	}
}

// GET /matches lists active matches with the peer's profile, newest first.
func listMatchesHandler(engine *matching.Engine, presence Presence, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := mustUserID(r)
		matches, err := engine.ListMatches(r.Context(), me)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		peerIDs := make([]string, len(matches))
		for i, m := range matches {
			peerIDs[i] = m.Pair.Other(me)
		}
		peers, err := loadPeers(r.Context(), peerIDs)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		out := make([]matchView, 0, len(matches))
		for i, m := range matches {
			out = append(out, matchView{Match: m, Peer: peers[peerIDs[i]], PeerOnline: presence.Online(peerIDs[i])})
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": out})
	}
}

// GET /matches/{id}
func getMatchHandler(engine *matching.Engine, presence Presence, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := mustUserID(r)
		m, err := engine.Get(r.Context(), me, mux.Vars(r)["id"])
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		peerID := m.Pair.Other(me)
		peers, err := loadPeers(r.Context(), []string{peerID})
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, matchView{Match: m, Peer: peers[peerID], PeerOnline: presence.Online(peerID)})
	}
}

// DELETE /matches/{id}
func unmatchHandler(engine *matching.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := engine.Unmatch(r.Context(), mustUserID(r), mux.Vars(r)["id"])
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, matchView{Match: m})
	}
}
