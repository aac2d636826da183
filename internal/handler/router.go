package handler

import (
	"net/http"

	"stickyboard-server/internal/config"
	"stickyboard-server/internal/metrics"
	"stickyboard-server/internal/middleware"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth      *AuthHandler
	User      *UserHandler
	Board     *BoardHandler
	Note      *NoteHandler
	Page      *PageHandler
	WebSocket *WebSocketHandler
	Health    *HealthHandler
}

type RouterConfig struct {
	Auth    middleware.Authenticator
	CORS    config.CORSConfig
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.LoggerMiddleware(cfg.Logger, cfg.Metrics))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", h.Auth.Register).Methods("POST")
	api.HandleFunc("/auth/login", h.Auth.Login).Methods("POST")
	api.HandleFunc("/auth/refresh", h.Auth.Refresh).Methods("POST")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.Auth))

	protected.HandleFunc("/auth/logout", h.Auth.Logout).Methods("POST")

	protected.HandleFunc("/users/me", h.User.GetMe).Methods("GET")
	protected.HandleFunc("/users/me", h.User.UpdateMe).Methods("PUT")

	protected.HandleFunc("/boards", h.Board.List).Methods("GET")
	protected.HandleFunc("/boards", h.Board.Create).Methods("POST")
	protected.HandleFunc("/boards/current", h.Board.Select).Methods("PUT")
	protected.HandleFunc("/boards/reload", h.Board.Reload).Methods("POST")
	protected.HandleFunc("/boards/{id:[0-9]+}", h.Board.Rename).Methods("PUT")

	protected.HandleFunc("/notes", h.Note.Create).Methods("POST")
	protected.HandleFunc("/notes/{id:[0-9]+}", h.Note.Update).Methods("PUT")
	protected.HandleFunc("/notes/{id:[0-9]+}", h.Note.Delete).Methods("DELETE")
	protected.HandleFunc("/notes/{id:[0-9]+}/todos", h.Note.AddTodo).Methods("POST")
	protected.HandleFunc("/notes/{id:[0-9]+}/todos/{todoId:[0-9]+}", h.Note.UpdateTodo).Methods("PUT")
	protected.HandleFunc("/notes/{id:[0-9]+}/todos/{todoId:[0-9]+}", h.Note.DeleteTodo).Methods("DELETE")

	protected.HandleFunc("/page", h.Page.Page).Methods("GET")

	if h.WebSocket != nil {
		r.HandleFunc("/ws", h.WebSocket.HandleConnection)
	}
	if h.Health != nil {
		r.HandleFunc("/health", h.Health.Health).Methods("GET")
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods("GET")
	}

	gate := r.NewRoute().Subrouter()
	gate.Use(middleware.OptionalAuth(cfg.Auth))
	gate.HandleFunc("/auth", h.Page.Auth).Methods("GET")
	gate.HandleFunc("/", h.Page.Home).Methods("GET")

	return middleware.CORSMiddleware(cfg.CORS)(r)
}
