package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/chat"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/realtime"
)

type conversationView struct {
	chat.Summary
	Peer       *matching.Profile `json:"peer,omitempty"`
	PeerOnline bool              `json:"peer_online"`
}

// GET /conversations
func listConversationsHandler(svc *chat.Service, presence Presence, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := svc.ListConversations(r.Context(), mustUserID(r))
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		peerIDs := make([]string, len(summaries))
		for i, s := range summaries {
			peerIDs[i] = s.PeerID
		}
		peers, err := loadPeers(r.Context(), peerIDs)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		out := make([]conversationView, 0, len(summaries))
		for _, s := range summaries {
			out = append(out, conversationView{Summary: s, Peer: peers[s.PeerID], PeerOnline: presence.Online(s.PeerID)})
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversations": out})
	}
}

// POST /matches/{id}/conversation
func openConversationHandler(svc *chat.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.Open(r.Context(), mustUserID(r), mux.Vars(r)["id"])
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversation": c})
	}
}

// GET /conversations/{id}/messages?before=<message id>&limit=50
func messagesHandler(svc *chat.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		before, ok := queryInt(r, "before")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_before")
			return
		}
		limit, ok := queryInt(r, "limit")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}

		msgs, err := svc.Messages(r.Context(), mustUserID(r), mux.Vars(r)["id"], int64(before), limit)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
	}
}

// POST /conversations/{id}/messages {"body": "..."}
func sendMessageHandler(svc *chat.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		msg, err := svc.Send(r.Context(), mustUserID(r), mux.Vars(r)["id"], req.Body)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
	}
}

// POST /conversations/{id}/read
func markReadHandler(svc *chat.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.MarkRead(r.Context(), mustUserID(r), mux.Vars(r)["id"]); err != nil {
			writeDomainError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DELETE /conversations/{id}/messages/{messageID}
func deleteMessageHandler(svc *chat.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		messageID, err := strconv.ParseInt(vars["messageID"], 10, 64)
		if err != nil || messageID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_message_id")
			return
		}
		if err := svc.DeleteMessage(r.Context(), mustUserID(r), vars["id"], messageID); err != nil {
			writeDomainError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// socketFrames routes client frames from the events socket into chat.
func socketFrames(svc *chat.Service, log *zap.Logger) realtime.InboundHandler {
	return func(ctx context.Context, userID string, in realtime.Inbound) {
		switch in.Type {
		case "typing":
			if err := svc.Typing(ctx, userID, in.ConversationID, in.IsTyping); err != nil {
				log.Debug("typing frame rejected", zap.String("user_id", userID), zap.Error(err))
			}
		default:
			log.Debug("unknown client frame", zap.String("user_id", userID), zap.String("type", in.Type))
		}
	}
}
