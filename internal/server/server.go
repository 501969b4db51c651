package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/auth"
	"github.com/tributary-ai/llm-resilience/internal/cache"
	"github.com/tributary-ai/llm-resilience/internal/dedup"
	"github.com/tributary-ai/llm-resilience/internal/errorresponse"
	"github.com/tributary-ai/llm-resilience/internal/health"
	"github.com/tributary-ai/llm-resilience/internal/metrics"
	"github.com/tributary-ai/llm-resilience/internal/registry"
	"github.com/tributary-ai/llm-resilience/internal/selection"
	"github.com/tributary-ai/llm-resilience/internal/types"
)

// Server exposes the resilience core over HTTP: provider selection, health
// reporting and queries, error analysis, and cache statistics
type Server struct {
	selector   *selection.Selector
	monitor    *health.Monitor
	registry   *registry.Registry
	errors     *errorresponse.Service
	tokens     *auth.TokenService
	recorder   *metrics.Recorder
	caches     CacheSet
	dedup      *dedup.Deduplicator
	httpServer *http.Server
	logger     *logrus.Logger
	config     *ServerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// CacheSet groups the caches the server reports statistics for
type CacheSet struct {
	Token    *cache.TokenValidationCache
	Provider *cache.ProviderHealthCache
	Response *cache.IntelligentResponseCache
}

// Deps carries everything the server needs. Tokens may be nil to disable
// authentication; Recorder may be nil to disable the metrics endpoint.
type Deps struct {
	Selector *selection.Selector
	Monitor  *health.Monitor
	Registry *registry.Registry
	Errors   *errorresponse.Service
	Tokens   *auth.TokenService
	Recorder *metrics.Recorder
	Caches   CacheSet
	Dedup    *dedup.Deduplicator
}

// NewServer creates a new server instance
func NewServer(deps Deps, config *ServerConfig, logger *logrus.Logger) (*Server, error) {
	if deps.Selector == nil || deps.Monitor == nil {
		return nil, fmt.Errorf("server requires a selector and a health monitor")
	}
	return &Server{
		selector: deps.Selector,
		monitor:  deps.Monitor,
		registry: deps.Registry,
		errors:   deps.Errors,
		tokens:   deps.Tokens,
		recorder: deps.Recorder,
		caches:   deps.Caches,
		dedup:    deps.Dedup,
		logger:   logger,
		config:   config,
	}, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	r := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           ":" + s.config.Port,
		Handler:        r,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.logger.WithField("port", s.config.Port).Info("Starting resilience server")
	return s.httpServer.ListenAndServe()
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping resilience server")
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	if s.tokens != nil {
		r.Use(s.tokens.Middleware())
	}
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.contentTypeMiddleware)

	api := r.PathPrefix("/v1").Subrouter()

	// Selection
	api.HandleFunc("/selection", s.handleSelection).Methods("POST")

	// Provider registry
	api.HandleFunc("/providers", s.handleListProviders).Methods("GET")
	api.HandleFunc("/providers/{name}", s.handleGetProvider).Methods("GET")

	// Health monitor
	api.HandleFunc("/health", s.handleHealthOverview).Methods("GET")
	api.HandleFunc("/health/{name}", s.handleProviderHealth).Methods("GET")
	api.HandleFunc("/health/{name}/report", s.handleHealthReport).Methods("POST")
	api.HandleFunc("/health/{name}/recommendations", s.handleRecommendations).Methods("GET")

	// Error analysis
	api.HandleFunc("/errors/analyze", s.handleErrorAnalysis).Methods("POST")

	// Cache and dedup statistics
	api.HandleFunc("/cache/stats", s.handleCacheStats).Methods("GET")

	// Liveness endpoint (no /v1 prefix)
	r.HandleFunc("/health", s.handleLiveness).Methods("GET")

	if s.recorder != nil {
		r.Handle("/metrics", s.recorder.Handler()).Methods("GET")
	}

	return r
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"user_agent":  r.UserAgent(),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" || r.Method == "PUT" {
			contentType := r.Header.Get("Content-Type")
			if contentType != "application/json" && contentType != "" {
				s.writeErrorResponse(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Handlers

// SelectionRequest is the body of POST /v1/selection
type SelectionRequest struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// handleSelection runs the selection protocol and returns the full decision
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
			return
		}
	}

	result := s.selector.SelectProviderAndModel(r.Context(), types.Preferences{
		Provider: req.Provider,
		Model:    req.Model,
	})

	statusCode := http.StatusOK
	if result.Degraded() {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(result)
}

// handleListProviders lists all registered providers
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	var names []string
	if s.registry != nil {
		names = s.registry.ListProviders()
	}

	response := map[string]interface{}{
		"providers": names,
		"count":     len(names),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleGetProvider gets information about a specific provider
func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if s.registry == nil {
		s.writeErrorResponse(w, http.StatusNotFound, "No provider registry configured")
		return
	}
	info, exists := s.registry.GetProviderInfo(name)
	if !exists {
		s.writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("Provider %s not found", name))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

// handleHealthOverview returns the monitor's view of every tracked provider
func (s *Server) handleHealthOverview(w http.ResponseWriter, r *http.Request) {
	summary := s.monitor.GetCacheStats()

	response := map[string]interface{}{
		"summary":   summary,
		"healthy":   s.monitor.GetHealthyProviders(),
		"timestamp": time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleProviderHealth returns health status for a specific provider
func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	info := s.monitor.GetProviderHealth(name)

	response := map[string]interface{}{
		"provider":  name,
		"status":    info,
		"timestamp": time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HealthReport is the body of POST /v1/health/{name}/report
type HealthReport struct {
	Healthy        bool   `json:"healthy"`
	ResponseTimeMS int64  `json:"response_time_ms"`
	Error          string `json:"error,omitempty"`
}

// handleHealthReport ingests an externally observed probe outcome
func (s *Server) handleHealthReport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var report HealthReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	s.monitor.Update(name, report.Healthy, time.Duration(report.ResponseTimeMS)*time.Millisecond, report.Error)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"provider": name,
		"status":   s.monitor.GetProviderHealth(name).Status,
	})
}

// handleRecommendations suggests alternatives for a failing provider
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	recs := s.monitor.GetProviderRecommendations(name)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

// ErrorAnalysisRequest is the body of POST /v1/errors/analyze
type ErrorAnalysisRequest struct {
	Error    string `json:"error"`
	Type     string `json:"type,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// handleErrorAnalysis classifies a provider error and formats guidance
func (s *Server) handleErrorAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.errors == nil {
		s.writeErrorResponse(w, http.StatusNotFound, "Error analysis is not configured")
		return
	}

	var req ErrorAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if req.Error == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "error field is required")
		return
	}

	resp, err := s.errors.Analyze(r.Context(), req.Error, req.Type, req.Provider)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Analysis failed: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleCacheStats reports hit/miss/eviction counters for every cache plus
// deduplication counters
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"timestamp": time.Now().Unix(),
	}

	caches := map[string]interface{}{}
	if s.caches.Token != nil {
		caches["token_validation"] = s.caches.Token.Stats()
	}
	if s.caches.Provider != nil {
		caches["provider_health"] = s.caches.Provider.Stats()
	}
	if s.caches.Response != nil {
		caches["error_response"] = s.caches.Response.Stats()
	}
	response["caches"] = caches

	if s.dedup != nil {
		response["deduplication"] = s.dedup.Stats()
	}
	response["health_monitor"] = s.monitor.GetCacheStats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleLiveness is the unauthenticated liveness endpoint
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// Helper functions

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "api_error",
			"code":    statusCode,
		},
		"timestamp": time.Now().Unix(),
	}

	json.NewEncoder(w).Encode(errorResp)
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
