package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shanialy/HRM/internal/app/registry"
	"github.com/shanialy/HRM/internal/app/server/handlers"
	"github.com/shanialy/HRM/internal/core/services"
	"github.com/shanialy/HRM/pkg/middleware"
)

type Server struct {
	mux         *http.ServeMux
	log         *slog.Logger
	name        string
	addr        string
	authHandler *handlers.AuthHandler
	wsHandler   *handlers.WSHandler
	tokenSvc    *services.TokenService
}

func NewServer(
	log *slog.Logger,
	name, addr string,
	userSvc *services.UserService,
	tokenSvc *services.TokenService,
	chatSvc *services.ChatService,
	hub *registry.Registry,
	allowedOrigins []string,
) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		log:         log,
		name:        name,
		addr:        addr,
		authHandler: handlers.NewAuthHandler(userSvc, tokenSvc),
		wsHandler:   handlers.NewWSHandler(hub, chatSvc, allowedOrigins),
		tokenSvc:    tokenSvc,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokenSvc)

	s.mux.HandleFunc("POST /auth/login", s.authHandler.Login)

	// The gateway authenticates during the handshake; the middleware binds
	// the principal before the upgrade.
	s.mux.Handle("/ws", auth(http.HandlerFunc(s.wsHandler.Handler)))
}

func (s *Server) Start() error {
	handler := middleware.RequestLogger(s.log)(middleware.TracerMiddleware(s.name)(s.mux))
	server := &http.Server{
		Addr:        s.addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would sever long-lived ws connections.
		IdleTimeout: 60 * time.Second,
	}
	s.log.Info("server starting", "addr", s.addr)
	return server.ListenAndServe()
}
