package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/database"
	"github.com/parley-chat/parley/internal/server"
)

type ParleyApp struct {
	log            *log.Logger
	db             database.ChatRepository
	mux            *http.Server
	cs             *server.ChatServer
	authn          *auth.Authenticator
	allowedOrigins []string
	ownerlessRooms bool
}

func NewParleyApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.ChatRepository, authn *auth.Authenticator, cfg *config.Config) *ParleyApp {
	s := &ParleyApp{
		log:            logger,
		db:             db,
		cs:             cs,
		authn:          authn,
		allowedOrigins: cfg.AllowedOrigins,
		ownerlessRooms: cfg.OwnerlessRooms,
	}

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/account", s.authMiddleware(s.account))
	mux.Handle("GET /api/users", s.authMiddleware(s.listUsers))
	mux.Handle("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.Handle("GET /api/rooms", s.authMiddleware(s.listRooms))
	mux.Handle("GET /api/rooms/{id}", s.authMiddleware(s.getRoom))
	mux.Handle("DELETE /api/rooms/{id}", s.authMiddleware(s.deleteRoom))
	mux.Handle("POST /api/rooms/{id}/join", s.authMiddleware(s.joinRoom))
	mux.Handle("POST /api/rooms/{id}/leave", s.authMiddleware(s.leaveRoom))
	mux.Handle("GET /api/rooms/{id}/members", s.authMiddleware(s.listMembers))
	mux.Handle("POST /api/rooms/{id}/members", s.authMiddleware(s.addMember))
	mux.Handle("DELETE /api/rooms/{id}/members", s.authMiddleware(s.removeMember))
	mux.Handle("GET /api/rooms/{id}/messages", s.authMiddleware(s.listMessages))
	mux.Handle("POST /api/messages", s.authMiddleware(s.createMessage))
	mux.Handle("DELETE /api/messages/{id}", s.authMiddleware(s.deleteMessage))
	mux.HandleFunc("GET /ws", s.serveWs)
	mux.HandleFunc("GET /healthz", s.healthCheck)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *ParleyApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ParleyApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
