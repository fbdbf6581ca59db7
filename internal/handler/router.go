/*
Package handler provides the HTTP handlers and routing setup for the campus chat server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"campuschat/internal/pkg/auth/jwt"
	"campuschat/internal/pkg/limiter"
	"campuschat/internal/pkg/logx"
	"campuschat/internal/pkg/resp"
)

const (
	ConnectRate  = 0.5
	ConnectBurst = 10
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It returns the handler and a stop function that terminates the limiter cleanup goroutines.
func Router(deps *AppDeps) (http.Handler, func()) {
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":   "ok",
			"service":  "Campus Chat Server",
			"channels": deps.Manager.Registry().Len(),
		}
		resp.RespondSuccess(w, r, data)
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Get("/chat/rooms", HandleListRooms(deps))

		api.Group(func(authed chi.Router) {
			authed.Use(jwt.RequireIdentity)

			authed.Route("/block", func(block chi.Router) {
				block.Post("/", HandleBlock(deps))
				block.Delete("/{subjectID}", HandleUnblock(deps))
				block.Get("/blocks", HandleListBlocks(deps))
				block.Get("/blocked-ids", HandleBlockedIDs(deps))
			})

			authed.Post("/report", HandleReport(deps))
		})
	})

	r.Route("/ws", func(ws chi.Router) {
		ws.Use(connectLimiter.Middleware)

		ws.Get("/chat/{roomID}", HandleRoomWebSocket(deps, wsUpgrader))
		ws.Get("/random", HandleRandomWebSocket(deps, wsUpgrader))
	})

	return r, connectLimiter.Stop
}
