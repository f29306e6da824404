// Package api exposes the matching engine and chat over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/chat"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/moderation"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/realtime"
)

// Deps are the services the handlers call into.
type Deps struct {
	Engine     *matching.Engine
	Chat       *chat.Service
	Moderation *moderation.Service
	Hub        *realtime.Hub
	Profiles   ProfileReader
	// Ping reports storage health. Optional.
	Ping func(ctx context.Context) error
}

// Options configure the HTTP surface.
type Options struct {
	JWTSecret   []byte
	CORSOrigins []string
}

// NewRouter builds the full handler tree.
func NewRouter(d Deps, opts Options, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("api")

	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler(d.Ping)).Methods(http.MethodGet)

	authed := r.NewRoute().Subrouter()
	authed.Use(authenticate(opts.JWTSecret), withLoaders(d.Profiles))

	// Candidates & intent
	authed.HandleFunc("/candidates", candidatesHandler(d.Engine, d.Profiles, log)).Methods(http.MethodGet)
	authed.HandleFunc("/users/{id}/like", likeHandler(d.Engine, log)).Methods(http.MethodPost)
	authed.HandleFunc("/users/{id}/pass", passHandler(d.Engine, log)).Methods(http.MethodPost)
	authed.HandleFunc("/users/{id}/report", reportUserHandler(d.Moderation, log)).Methods(http.MethodPost)

	// Matches
	authed.HandleFunc("/matches", listMatchesHandler(d.Engine, d.Hub, log)).Methods(http.MethodGet)
	authed.HandleFunc("/matches/{id}", getMatchHandler(d.Engine, d.Hub, log)).Methods(http.MethodGet)
	authed.HandleFunc("/matches/{id}", unmatchHandler(d.Engine, log)).Methods(http.MethodDelete)
	authed.HandleFunc("/matches/{id}/conversation", openConversationHandler(d.Chat, log)).Methods(http.MethodPost)

	// Chat
	authed.HandleFunc("/conversations", listConversationsHandler(d.Chat, d.Hub, log)).Methods(http.MethodGet)
	authed.HandleFunc("/conversations/{id}/messages", messagesHandler(d.Chat, log)).Methods(http.MethodGet)
	authed.HandleFunc("/conversations/{id}/messages", sendMessageHandler(d.Chat, log)).Methods(http.MethodPost)
	authed.HandleFunc("/conversations/{id}/messages/{messageID}", deleteMessageHandler(d.Chat, log)).Methods(http.MethodDelete)
	authed.HandleFunc("/conversations/{id}/read", markReadHandler(d.Chat, log)).Methods(http.MethodPost)

	// Moderation. Blocking a pair happens only through a resolved report.
	admin := authed.PathPrefix("/admin").Subrouter()
	admin.Use(requireAdmin)
	admin.HandleFunc("/reports", listReportsHandler(d.Moderation, log)).Methods(http.MethodGet)
	admin.HandleFunc("/reports/{id}/action", reportActionHandler(d.Moderation, log)).Methods(http.MethodPost)

	// Push channel for match and message events; typing frames come back up
	d.Hub.HandleInbound(socketFrames(d.Chat, log))
	authed.HandleFunc("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		d.Hub.ServeWS(w, r, mustUserID(r))
	}).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
