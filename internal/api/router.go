// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api hosts the REST surface and the Client Gateway's WebSocket
// endpoint under one gorilla/mux router, grounded on the teacher's
// internal/api/router.go (middleware stack order, /api/v1 subrouter,
// Dependencies-struct wiring, graceful ListenAndServe/Shutdown).
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/jarvis-mode/jarvisd/internal/api/handlers"
	"github.com/jarvis-mode/jarvisd/internal/api/middleware"
	"github.com/jarvis-mode/jarvisd/internal/events"
	"github.com/jarvis-mode/jarvisd/internal/gateway"
	"github.com/jarvis-mode/jarvisd/internal/jarvis"
	"github.com/jarvis-mode/jarvisd/internal/session"
	"github.com/jarvis-mode/jarvisd/internal/store"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host    string
	Port    int
	TLSCert string
	TLSKey  string
}

// Dependencies holds every daemon component the router wires into handlers.
type Dependencies struct {
	Store      *store.Store
	Registry   *session.Registry
	EventBus   events.EventBus
	JarvisCtrl *jarvis.Controller
	Gateway    *gateway.Hub
}

// NewRouter builds the full gorilla/mux router: global middleware, the
// session/event/execute-plan REST surface, and the Client Gateway's
// bidirectional WebSocket endpoint.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)

	api := r.PathPrefix("/api/v1").Subrouter()

	sessionHandler := handlers.NewSessionHandler(deps.Store, deps.Registry)
	api.HandleFunc("/sessions", sessionHandler.List).Methods("GET")
	api.HandleFunc("/sessions", sessionHandler.Create).Methods("POST")
	api.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods("GET")
	api.HandleFunc("/sessions/{id}", sessionHandler.Update).Methods("PATCH")
	api.HandleFunc("/sessions/{id}", sessionHandler.Delete).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/link-cli", sessionHandler.LinkCli).Methods("POST")

	eventHandler := handlers.NewEventHandler(deps.EventBus)
	api.HandleFunc("/events", eventHandler.History).Methods("GET")

	executeHandler := handlers.NewExecutePlanHandler(deps.Store, deps.JarvisCtrl)
	api.HandleFunc("/active-session", executeHandler.ActiveSession).Methods("GET")
	api.HandleFunc("/execute-plan", executeHandler.Execute).Methods("POST")

	if deps.Gateway != nil {
		api.HandleFunc("/ws", deps.Gateway.ServeWS).Methods("GET")
	}

	// A preflight OPTIONS request matches none of the method-restricted
	// routes above, and mux skips middleware on a method mismatch; this
	// catch-all lets the CORS middleware answer it. A plain matcher (not
	// Methods) keeps unknown GET paths at 404 instead of 405.
	api.MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
		return req.Method == http.MethodOptions
	}).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	return r
}

// Server wraps an http.Server bound to the router above.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	server *http.Server
}

// NewServer constructs a Server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	return &Server{router: NewRouter(deps), cfg: cfg}
}

// Router returns the underlying router, mainly for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ListenAndServe starts the server, using TLS if cfg.TLSCert/TLSKey name
// existing files.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.server = &http.Server{Addr: addr, Handler: s.router}

	tlsEnabled, err := CheckTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	if tlsEnabled {
		certPath := expandPath(s.cfg.TLSCert)
		keyPath := expandPath(s.cfg.TLSKey)
		log.Printf("jarvisd API listening on https://%s (TLS enabled)", addr)
		return s.server.ListenAndServeTLS(certPath, keyPath)
	}

	log.Printf("jarvisd API listening on http://%s", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Println("shutting down jarvisd API server...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}
	return s.server.Shutdown(shutdownCtx)
}
