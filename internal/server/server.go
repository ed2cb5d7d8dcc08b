package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"payment-service/internal/config"
	"payment-service/internal/events"
	"payment-service/internal/handler"
	"payment-service/internal/metrics"
	"payment-service/internal/repository"
	"payment-service/internal/service"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires the orchestrator, its event consumers, the stale sweeper and
// the HTTP surface together.
type Server struct {
	router  *mux.Router
	server  *http.Server
	db      *sql.DB
	gateway events.Gateway
	sweeper *service.StaleSweeper
	logger  *slog.Logger
	port    string
}

// NewServer builds a server against the given gateway. Tests pass an
// in-process gateway; production passes the NATS one.
func NewServer(cfg *config.Config, gateway events.Gateway, logger *slog.Logger) (*Server, error) {
	db, err := sql.Open("postgres", cfg.GetDBConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Successfully connected to database")

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	repo := repository.NewTransactionRepository(db, logger)
	validator := service.NewValidator(cfg.Limits, repo, logger)
	transactionService := service.NewTransactionService(repo, validator, gateway, m, logger)

	if err := service.RegisterConsumers(gateway, transactionService, logger); err != nil {
		db.Close()
		return nil, err
	}

	sweeper := service.NewStaleSweeper(transactionService, cfg.StaleThreshold, cfg.SweepInterval, logger)
	sweeper.Start(context.Background())

	transactionHandler := handler.NewTransactionHandler(transactionService)
	adminHandler := handler.NewAdminHandler(transactionService, cfg.StaleThreshold)

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	router.HandleFunc("/transactions", transactionHandler.Create).Methods("POST")
	router.HandleFunc("/transactions", transactionHandler.List).Methods("GET")
	router.HandleFunc("/transactions/summary", transactionHandler.Summary).Methods("GET")
	router.HandleFunc("/transactions/reference/{reference}", transactionHandler.GetByReference).Methods("GET")
	router.HandleFunc("/transactions/{transaction_id}", transactionHandler.Get).Methods("GET")

	router.HandleFunc("/admin/transactions/pending", adminHandler.ListPending).Methods("GET")
	router.HandleFunc("/admin/transactions/{transaction_id}/cancel", adminHandler.Cancel).Methods("POST")
	router.HandleFunc("/admin/transactions/{transaction_id}/reverse", adminHandler.Reverse).Methods("POST")
	router.HandleFunc("/admin/transactions/{transaction_id}/status", adminHandler.UpdateStatus).Methods("PUT")
	router.HandleFunc("/admin/transactions/process-stale", adminHandler.ProcessStale).Methods("POST")

	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	return &Server{
		router:  router,
		db:      db,
		gateway: gateway,
		sweeper: sweeper,
		logger:  logger,
	}, nil
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.statusCode,
				"duration", time.Since(start),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port string) (string, error) {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server", "port", s.port)

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server failed", "error", err)
		}
	}()

	return s.port, nil
}

// Stop gracefully shuts down the server, the sweeper and the bus connection.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.gateway != nil {
		s.gateway.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetPort returns the port the server is listening on
func (s *Server) GetPort() string {
	return s.port
}

// GetBaseURL returns the base URL for the server
func (s *Server) GetBaseURL() string {
	return "http://localhost:" + s.port
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// StartServer starts the server with the given configuration and a NATS
// gateway built from it.
func StartServer(cfg *config.Config) (*Server, string, error) {
	var logger *slog.Logger
	if cfg.ServerPort == "0" {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	gateway, err := events.NewNATSGateway(cfg.NATSURL, logger)
	if err != nil {
		return nil, "", err
	}

	server, err := NewServer(cfg, gateway, logger)
	if err != nil {
		gateway.Close()
		return nil, "", err
	}

	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		return nil, "", err
	}

	return server, port, nil
}
