package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"exchange_go/internal/infra"
	"exchange_go/internal/infra/ws"
	"exchange_go/internal/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// AccountHeader carries the authenticated account id. Authentication itself
// happens in front of this server.
const AccountHeader = "X-Account-ID"

// Server exposes the order service over REST and settlements over websocket.
type Server struct {
	orders *service.OrderService
	hub    *ws.Hub
	router *mux.Router

	allowedOrigins []string
	httpServer     *http.Server
}

// NewServer creates a new API server
func NewServer(orders *service.OrderService, hub *ws.Hub, allowedOrigins []string) *Server {
	s := &Server{
		orders:         orders,
		hub:            hub,
		router:         mux.NewRouter(),
		allowedOrigins: allowedOrigins,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(requireAccount)

	// Account
	api.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet)

	// Orders
	api.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id:[0-9]+}/cancel", s.handleCancelOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id:[0-9]+}/match", s.handleMatchOrder).Methods(http.MethodPost)
	api.HandleFunc("/orderbook", s.handleOrderBook).Methods(http.MethodGet)

	// Trades
	api.HandleFunc("/trades", s.handleTrades).Methods(http.MethodGet)
	api.HandleFunc("/trades/summary", s.handleTradeSummary).Methods(http.MethodGet)

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Ops
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	s.router.Handle("/metrics/prometheus", promhttp.HandlerFor(infra.NewRegistry(infra.GlobalMetrics), promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", AccountHeader},
	})
	return c.Handler(s.router)
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("HTTP_SERVER_STARTING", slog.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
