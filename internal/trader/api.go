package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// APIServer provides an HTTP interface for inspecting the running engine.
type APIServer struct {
	server *http.Server
	engine *Engine
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer.
func NewAPIServer(engine *Engine, logger *zap.Logger) *APIServer {
	addr := fmt.Sprintf(":%d", engine.cfg.Engine.ApiPort)

	mux := http.NewServeMux()
	s := &APIServer{
		server: &http.Server{Addr: addr, Handler: mux},
		engine: engine,
		logger: logger.Named("api-server"),
	}
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/portfolio", s.portfolioHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return s
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	// The engine loop mutates cursor and stats concurrently; read them
	// through the guarded snapshot.
	cursor, stats := s.engine.Status()

	status := struct {
		UUID          string `json:"uuid"`
		TargetAddress string `json:"target_address"`
		StartTime     string `json:"start_time"`
		Uptime        string `json:"uptime"`
		Cursor        string `json:"cursor"`
		Stats         Stats  `json:"stats"`
	}{
		UUID:          s.engine.UUID,
		TargetAddress: s.engine.cfg.Copy.TargetAddress,
		StartTime:     s.engine.StartTime.Format(time.RFC3339),
		Uptime:        time.Since(s.engine.StartTime).String(),
		Cursor:        cursor.Format(time.RFC3339),
		Stats:         stats,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("Failed to write status response", zap.Error(err))
		http.Error(w, "Failed to encode status", http.StatusInternalServerError)
	}
}

func (s *APIServer) portfolioHandler(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.engine.store.GetLatestPortfolioSnapshot()
	if err != nil {
		s.logger.Error("Failed to get portfolio snapshot", zap.Error(err))
		http.Error(w, "Failed to get portfolio", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if snapshot == nil {
		w.Write([]byte("{}"))
		return
	}
	json.NewEncoder(w).Encode(snapshot)
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}
