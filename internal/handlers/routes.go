// File: internal/handlers/routes.go
package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/middleware"
)

// RouterConfig carries what the router needs to wire handlers and middleware.
type RouterConfig struct {
	Sessions  SessionAPI
	Logger    Logger
	JWTSecret []byte
	// Limiter guards the endpoints that call the language model. Nil disables
	// rate limiting.
	Limiter     middleware.Limiter
	CheckOrigin func(r *http.Request) bool
}

func NewRouter(cfg RouterConfig) *mux.Router {
	sessionHandler := NewSessionHandler(cfg.Sessions, cfg.Logger)
	liveHandler := NewLiveHandler(cfg.Sessions, cfg.Logger, cfg.CheckOrigin)
	logHandler := NewLogHandler(cfg.Logger)

	r := mux.NewRouter()
	r.Use(middleware.RecoverPanic(cfg.Logger))
	r.Use(middleware.LoggingMiddleware(cfg.Logger))

	// --- Public Routes ---
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	// --- Protected Routes ---
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.NewJWTMiddleware(cfg.JWTSecret, cfg.Logger))
	api.HandleFunc("/log", logHandler.LogFrontendEvent).Methods(http.MethodPost)
	api.HandleFunc("/sessions", sessionHandler.ListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", sessionHandler.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", sessionHandler.DeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/asked", sessionHandler.MarkAsked).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/live", liveHandler.Stream).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/unasked", sessionHandler.Unasked).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/likelihood", sessionHandler.Likelihood).Methods(http.MethodGet)

	// Routes that generate text are rate limited per clinician.
	generating := api.NewRoute().Subrouter()
	if cfg.Limiter != nil {
		generating.Use(middleware.RateLimitMiddleware(cfg.Limiter, "generation", cfg.Logger))
	}
	generating.HandleFunc("/sessions", sessionHandler.CreateSession).Methods(http.MethodPost)
	generating.HandleFunc("/sessions/{id}/utterances", sessionHandler.SubmitUtterance).Methods(http.MethodPost)
	generating.HandleFunc("/sessions/{id}/finalize", sessionHandler.Finalize).Methods(http.MethodPost)
	generating.HandleFunc("/sessions/{id}/live/stop", sessionHandler.StopLive).Methods(http.MethodPost)
	generating.HandleFunc("/sessions/{id}/live/followup", sessionHandler.FollowUp).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Not Found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})
	return r
}
