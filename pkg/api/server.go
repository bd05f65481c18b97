package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/sirrobot01/dbforge/pkg/database"
	"github.com/sirrobot01/dbforge/pkg/engine"
	"github.com/sirrobot01/dbforge/pkg/export"
	"github.com/sirrobot01/dbforge/pkg/query"
	"github.com/sirrobot01/dbforge/pkg/schema"
	"github.com/sirrobot01/dbforge/pkg/storage"
)

// Server handles API requests. Handlers only decode, delegate and encode;
// every decision lives in the packages below.
type Server struct {
	manager      *database.Manager
	store        storage.Storage
	router       *query.Router
	introspector *schema.Introspector
	exporter     *export.Exporter
}

// contextKey is a custom type for context keys
type contextKey string

const ownerContextKey contextKey = "owner"

// NewServer creates a new API server
func NewServer(manager *database.Manager, store storage.Storage, router *query.Router, introspector *schema.Introspector, exporter *export.Exporter) *Server {
	return &Server{
		manager:      manager,
		store:        store,
		router:       router,
		introspector: introspector,
		exporter:     exporter,
	}
}

// Handler returns a handler for all API routes
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", s.handleHealthCheck)
		r.Get("/engines", s.handleListEngines)

		// Token-scoped access: the instance API token in the URL is the
		// only credential.
		r.Post("/public/{token}/query", s.handlePublicQuery)

		// Identity comes from the gateway in front of us; everything below
		// needs a caller id.
		r.Group(func(r chi.Router) {
			r.Use(s.ownerMiddleware)

			r.Route("/databases", func(r chi.Router) {
				r.Get("/", s.handleListInstances)
				r.Post("/", s.handleCreateInstance)
				r.Get("/{id}", s.handleGetInstance)
				r.Delete("/{id}", s.handleDeleteInstance)
				r.Post("/{id}/start", s.handleStartInstance)
				r.Post("/{id}/stop", s.handleStopInstance)
				r.Post("/{id}/query", s.handleQuery)
				r.Post("/{id}/token", s.handleRegenerateToken)
				r.Get("/{id}/schema", s.handleGetSchema)
				r.Post("/{id}/export", s.handleExport)
				r.Get("/{id}/logs", s.handleGetLogs)
				r.Get("/{id}/stats", s.handleGetStats)
				r.Get("/{id}/stats/history", s.handleGetStatsHistory)
				r.Get("/{id}/connection-string", s.handleGetConnectionString)
			})

			// Account-level API tokens
			r.Route("/tokens", func(r chi.Router) {
				r.Get("/", s.handleListTokens)
				r.Post("/", s.handleCreateToken)
				r.Delete("/{id}", s.handleRevokeToken)
			})
		})
	})

	return r
}

// ownerMiddleware resolves the caller from the X-Owner-ID header set by the
// identity layer in front of this service.
func (s *Server) ownerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Owner-ID")
		if raw == "" {
			errorResponse(w, http.StatusUnauthorized, "X-Owner-ID header is required")
			return
		}
		ownerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errorResponse(w, http.StatusUnauthorized, "Invalid X-Owner-ID header")
			return
		}

		// Callers outside the gateway authenticate with an account token;
		// when one is presented it must verify against the claimed owner.
		if auth := r.Header.Get("Authorization"); auth != "" {
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || !s.manager.Tokens().VerifyAccountToken(ownerID, token) {
				errorResponse(w, http.StatusUnauthorized, "Invalid API token")
				return
			}
		}

		ctx := context.WithValue(r.Context(), ownerContextKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ownerFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(ownerContextKey).(int64)
	return id
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Owner-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Response helpers
func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// statusForError maps typed errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, database.ErrUnknownEngine),
		errors.Is(err, database.ErrUnknownVersion),
		errors.Is(err, database.ErrUnsupportedOperation):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, database.ErrCapacityExceeded),
		errors.Is(err, database.ErrResourceExhausted):
		return http.StatusTooManyRequests
	case errors.Is(err, database.ErrImagePull),
		errors.Is(err, database.ErrContainerOperation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "1.0.0",
	})
}

func (s *Server) handleListEngines(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, engine.Info())
}

// Instance handlers

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.manager.List(ownerFromContext(r.Context())))
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req database.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		errorResponse(w, http.StatusBadRequest, "Name is required")
		return
	}
	if req.Engine == "" {
		errorResponse(w, http.StatusBadRequest, "Engine is required")
		return
	}
	req.OwnerID = ownerFromContext(r.Context())

	inst, err := s.manager.Create(r.Context(), &req)
	if err != nil {
		log.Error().Err(err).Str("name", req.Name).Str("engine", req.Engine).Msg("Failed to create instance")
		errorResponse(w, statusForError(err), err.Error())
		return
	}

	log.Info().Str("id", inst.ID).Str("name", inst.Name).Str("engine", inst.Engine).Msg("Instance created")
	jsonResponse(w, http.StatusCreated, inst)
}

func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	inst, err := s.manager.Get(chi.URLParam(r, "id"), ownerFromContext(r.Context()))
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, inst)
}

func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Delete(r.Context(), chi.URLParam(r, "id"), ownerFromContext(r.Context())); err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ownerID := ownerFromContext(r.Context())
	if err := s.manager.Start(r.Context(), id, ownerID); err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}
	inst, _ := s.manager.Get(id, ownerID)
	jsonResponse(w, http.StatusOK, inst)
}

func (s *Server) handleStopInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ownerID := ownerFromContext(r.Context())
	if err := s.manager.Stop(r.Context(), id, ownerID); err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}
	inst, _ := s.manager.Get(id, ownerID)
	jsonResponse(w, http.StatusOK, inst)
}

// handleQuery runs a command against the instance's engine. Execution
// failures come back as success=false payloads with a 200, so interactive
// clients can render them like any other result.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	inst, err := s.manager.Get(chi.URLParam(r, "id"), ownerFromContext(r.Context()))
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}

	var req query.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Query == "" {
		errorResponse(w, http.StatusBadRequest, "Query is required")
		return
	}

	result, err := s.router.Execute(r.Context(), inst, &req)
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// handlePublicQuery resolves the instance from the URL token and executes
// the query. No owner scoping applies; holding the token is the
// authorization.
func (s *Server) handlePublicQuery(w http.ResponseWriter, r *http.Request) {
	inst, err := s.manager.GetByAPIToken(chi.URLParam(r, "token"))
	if err != nil {
		errorResponse(w, statusForError(err), "Invalid API token")
		return
	}

	var req query.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Query == "" {
		errorResponse(w, http.StatusBadRequest, "Query is required")
		return
	}

	result, err := s.router.Execute(r.Context(), inst, &req)
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleRegenerateToken(w http.ResponseWriter, r *http.Request) {
	inst, err := s.manager.RegenerateToken(chi.URLParam(r, "id"), ownerFromContext(r.Context()))
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{
		"id":    inst.ID,
		"token": inst.APIToken,
	})
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	inst, err := s.manager.Get(chi.URLParam(r, "id"), ownerFromContext(r.Context()))
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}

	info, err := s.introspector.Inspect(r.Context(), inst)
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, info)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	inst, err := s.manager.Get(chi.URLParam(r, "id"), ownerFromContext(r.Context()))
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}

	var req export.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	file, err := s.exporter.Export(r.Context(), inst, req)
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", file.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(file.Data)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.manager.Logs(r.Context(), chi.URLParam(r, "id"), ownerFromContext(r.Context()))
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"logs": logs})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.Stats(r.Context(), chi.URLParam(r, "id"), ownerFromContext(r.Context()))
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"cpuPercent":    stats.CPUPercent,
		"memoryUsage":   stats.MemoryUsage,
		"memoryLimit":   stats.MemoryLimit,
		"memoryPercent": stats.MemoryPercent,
		"networkRx":     stats.NetworkRx,
		"networkTx":     stats.NetworkTx,
	})
}

func (s *Server) handleGetStatsHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.manager.StatsHistory(chi.URLParam(r, "id"), ownerFromContext(r.Context()))
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, history)
}

func (s *Server) handleGetConnectionString(w http.ResponseWriter, r *http.Request) {
	inst, err := s.manager.Get(chi.URLParam(r, "id"), ownerFromContext(r.Context()))
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}

	eng, err := engine.Get(inst.Engine)
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{
		"connectionString": eng.DSN(inst.Host, inst.Port, inst.Username, inst.Password, inst.Database),
	})
}

// Account token handlers

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.store.ListTokens(ownerFromContext(r.Context())))
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		errorResponse(w, http.StatusBadRequest, "Name is required")
		return
	}

	token, raw, err := s.manager.Tokens().IssueAccountToken(ownerFromContext(r.Context()), req.Name)
	if err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}

	// The raw token is shown exactly once.
	jsonResponse(w, http.StatusCreated, map[string]interface{}{
		"id":    token.ID,
		"name":  token.Name,
		"token": raw,
	})
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	token, err := s.store.GetToken(id)
	if err != nil {
		errorResponse(w, http.StatusNotFound, "Token not found")
		return
	}
	if token.OwnerID != ownerFromContext(r.Context()) {
		errorResponse(w, http.StatusForbidden, "Not your token")
		return
	}

	if err := s.manager.Tokens().RevokeAccountToken(id); err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
