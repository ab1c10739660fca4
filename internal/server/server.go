// Package server exposes the journal to assistants over an HTTP tool
// endpoint speaking MCP call-tool payloads. The transport is a single
// POST handler rather than a full MCP session; clients send a
// CallToolRequest body and get a CallToolResult back.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"github.com/runger/bocado/internal/estimate"
	"github.com/runger/bocado/internal/habit/suggest"
	"github.com/runger/bocado/internal/storage"
)

// Options configure the assistant endpoint.
type Options struct {
	Addr  string
	Store *storage.SQLiteStore

	// Engine overrides the stock scoring config when set.
	Engine *suggest.Engine

	// Estimator fills macros for log_meal calls. When nil, meals are
	// logged with zero macros.
	Estimator *estimate.Estimator

	UserID string
	Logger *slog.Logger
}

// Server is the HTTP front of the assistant surface. It does not own
// the store; the caller opens and closes it.
type Server struct {
	httpServer *http.Server
	store      *storage.SQLiteStore
	engine     *suggest.Engine
	estimator  *estimate.Estimator
	userID     string
	logger     *slog.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if opts.UserID == "" {
		return nil, errors.New("server: user id is required")
	}
	if opts.Addr == "" {
		return nil, errors.New("server: listen address is required")
	}

	s := &Server{
		store:     opts.Store,
		engine:    opts.Engine,
		estimator: opts.Estimator,
		userID:    opts.UserID,
		logger:    opts.Logger,
	}
	if s.engine == nil {
		s.engine = suggest.NewEngine(suggest.DefaultConfig())
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHTTP)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	var result *protocol.CallToolResult
	var err error
	start := time.Now()

	switch req.Name {
	case "log_meal":
		result, err = s.handleLogMeal(r.Context(), &req)
	case "suggest_meal":
		result, err = s.handleSuggestMeal(r.Context(), &req)
	case "get_logs":
		result, err = s.handleGetLogs(r.Context(), &req)
	case "search_foods":
		result, err = s.handleSearchFoods(r.Context(), &req)
	default:
		http.Error(w, fmt.Sprintf("unknown tool: %s", req.Name), http.StatusNotFound)
		return
	}

	if err != nil {
		s.logger.Warn("tool call failed", "tool", req.Name, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("tool call",
		"tool", req.Name,
		"duration_ms", time.Since(start).Milliseconds())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("assistant endpoint listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve runs the endpoint on an existing listener. Callers that need the
// bound address, such as tests listening on port 0, use this instead of
// Start.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("assistant endpoint listening", "addr", l.Addr().String())
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func jsonResult(v any) (*protocol.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(b),
			},
		},
	}, nil
}
