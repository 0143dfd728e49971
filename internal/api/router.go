package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/surpluscoord/control-plane/internal/api/middleware"
	"github.com/surpluscoord/control-plane/internal/commands"
	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/eventbus"
	"github.com/surpluscoord/control-plane/internal/store/storeset"
)

// RouterConfig holds everything NewRouter needs to assemble the HTTP
// surface, mirroring the teacher's RouterConfig shape.
type RouterConfig struct {
	Service *commands.Service
	Stores  *storeset.Set
	Bus     *eventbus.Bus
	Logger  *slog.Logger

	EnableAuth        bool
	EnableRateLimit   bool
	EnableCORS        bool
	EnableCompression bool
	EnableMetrics     bool

	AuthConfig         middleware.AuthConfig
	CORSConfig         middleware.CORSConfig
	RateLimitPerMinute int
	RateLimitBurst     int
}

// DefaultRouterConfig returns a RouterConfig with every middleware enabled
// and sane rate-limit/CORS defaults; callers still must supply Service,
// Stores, Bus, Logger and AuthConfig.APIKeys.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		EnableAuth:         true,
		EnableRateLimit:    true,
		EnableCORS:         true,
		EnableCompression:  true,
		EnableMetrics:      true,
		CORSConfig:         middleware.DefaultCORSConfig(),
		RateLimitPerMinute: 120,
		RateLimitBurst:     30,
		AuthConfig: middleware.AuthConfig{
			EnableAPIKey: true,
			APIKeys:      make(map[string]*middleware.AuthenticatedUser),
		},
	}
}

// NewRouter builds the full HTTP surface (SPEC_FULL.md §6).
//
// Global middleware order (applied to every route):
//  1. RequestID
//  2. Logging
//  3. Metrics (if enabled)
//  4. CORS (if enabled)
//  5. Compression (if enabled)
//
// Route-group middleware (auth, rate limit, validation, role gate) is
// layered per-subrouter below, mirroring the teacher's router.go.
//
// @title Surplus Coordination Control Plane API
// @version 1.0.0
// @description Matches surplus supply with unmet demand, gated by a
// @description compliance engine and tracked through delivery.
// @BasePath /v1
// @schemes http https
func NewRouter(config RouterConfig) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(config.Logger))
	if config.EnableMetrics {
		router.Use(middleware.MetricsMiddleware)
	}
	if config.EnableCORS {
		router.Use(middleware.CORSMiddleware(config.CORSConfig))
	}
	if config.EnableCompression {
		router.Use(middleware.CompressionMiddleware)
	}

	setupAmbientRoutes(router, config)
	setupV1Routes(router, config)

	return router
}

func setupAmbientRoutes(router *mux.Router, config RouterConfig) {
	health := NewHealthHandlers(config.Stores)
	router.HandleFunc("/healthz", health.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", health.Readiness).Methods(http.MethodGet)

	if config.EnableMetrics {
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	router.PathPrefix("/docs").Handler(httpSwagger.WrapHandler)
}

// authenticated wraps a v1 subrouter with auth, rate limit and validation —
// the protected-route middleware stack every non-public endpoint gets.
func authenticated(router *mux.Router, config RouterConfig) *mux.Router {
	protected := router.PathPrefix("").Subrouter()
	if config.EnableAuth {
		protected.Use(middleware.AuthMiddleware(config.AuthConfig))
	}
	if config.EnableRateLimit {
		protected.Use(middleware.RateLimitMiddleware(config.RateLimitPerMinute, config.RateLimitBurst))
	}
	protected.Use(middleware.ValidationMiddleware)
	return protected
}

func setupV1Routes(router *mux.Router, config RouterConfig) {
	v1 := router.PathPrefix("/v1").Subrouter()

	setupProfileRoutes(v1, config)
	setupSupplyRoutes(v1, config)
	setupDemandRoutes(v1, config)
	setupMatchRoutes(v1, config)
	setupDriverRoutes(v1, config)
	setupComplianceRoutes(v1, config)
	setupOpsRoutes(v1, config)
	setupEventRoutes(v1, config)
}

func setupProfileRoutes(v1 *mux.Router, config RouterConfig) {
	h := NewProfileHandlers(config.Service)
	profile := authenticated(v1.PathPrefix("/profile").Subrouter(), config)
	profile.HandleFunc("", h.GetProfile).Methods(http.MethodGet)
	profile.HandleFunc("", h.UpdateProfile).Methods(http.MethodPut)
	profile.HandleFunc("/{id}", h.GetProfile).Methods(http.MethodGet)
	profile.HandleFunc("/{id}", h.UpdateProfile).Methods(http.MethodPut)
}

func setupSupplyRoutes(v1 *mux.Router, config RouterConfig) {
	h := NewSupplyHandlers(config.Service)
	supply := authenticated(v1.PathPrefix("/supply").Subrouter(), config)
	supply.HandleFunc("", h.CreateListing).Methods(http.MethodPost)
	supply.HandleFunc("", h.ListListings).Methods(http.MethodGet)
	supply.HandleFunc("/{id}", h.GetListing).Methods(http.MethodGet)
	supply.HandleFunc("/{id}", h.UpdateListing).Methods(http.MethodPut)
	supply.HandleFunc("/{id}/cancel", h.CancelListing).Methods(http.MethodPost)
}

func setupDemandRoutes(v1 *mux.Router, config RouterConfig) {
	h := NewDemandHandlers(config.Service)
	demand := authenticated(v1.PathPrefix("/demand").Subrouter(), config)
	demand.HandleFunc("", h.CreateDemand).Methods(http.MethodPost)
	demand.HandleFunc("", h.ListDemands).Methods(http.MethodGet)
	demand.HandleFunc("/{id}", h.GetDemand).Methods(http.MethodGet)
	demand.HandleFunc("/{id}", h.UpdateDemand).Methods(http.MethodPut)
	demand.HandleFunc("/{id}/close", h.CloseDemand).Methods(http.MethodPost)
}

func setupMatchRoutes(v1 *mux.Router, config RouterConfig) {
	h := NewMatchHandlers(config.Service)
	matches := authenticated(v1.PathPrefix("/matches").Subrouter(), config)
	matches.HandleFunc("", h.ListMatches).Methods(http.MethodGet)
	matches.HandleFunc("/{id}", h.GetMatch).Methods(http.MethodGet)
	matches.HandleFunc("/{id}/accept", h.AcceptMatch).Methods(http.MethodPost)
	matches.HandleFunc("/{id}/reject", h.RejectMatch).Methods(http.MethodPost)
	matches.HandleFunc("/{id}/schedule", h.ScheduleMatch).Methods(http.MethodPost)

	// Forcing a re-match is an operator/admin action; gate it in addition
	// to the per-call role check RecommendMatches itself performs.
	operatorOnly := matches.PathPrefix("/recommendations").Subrouter()
	if config.EnableAuth {
		operatorOnly.Use(middleware.OperatorMiddleware)
	}
	operatorOnly.HandleFunc("", h.RecommendMatches).Methods(http.MethodPost)
}

func setupDriverRoutes(v1 *mux.Router, config RouterConfig) {
	h := NewDriverHandlers(config.Service)
	driver := authenticated(v1.PathPrefix("/driver").Subrouter(), config)
	driver.HandleFunc("/tasks", h.ListTasks).Methods(http.MethodGet)
	driver.HandleFunc("/tasks/{id}/status", h.UpdateTaskStatus).Methods(http.MethodPost)
	driver.HandleFunc("/tasks/{id}/location", h.UpdateTaskLocation).Methods(http.MethodPost)
}

func setupComplianceRoutes(v1 *mux.Router, config RouterConfig) {
	h := NewComplianceHandlers(config.Service)
	compliance := authenticated(v1.PathPrefix("/compliance").Subrouter(), config)
	if config.EnableAuth {
		compliance.Use(middleware.RequireAnyRole(domain.RoleCompliance, domain.RoleOperator))
	}
	compliance.HandleFunc("/queue", h.Queue).Methods(http.MethodGet)
	compliance.HandleFunc("/{matchId}/approve", h.Approve).Methods(http.MethodPost)
	compliance.HandleFunc("/{matchId}/block", h.Block).Methods(http.MethodPost)
}

func setupOpsRoutes(v1 *mux.Router, config RouterConfig) {
	h := NewOpsHandlers(config.Service)
	ops := authenticated(v1.PathPrefix("/ops").Subrouter(), config)
	if config.EnableAuth {
		ops.Use(middleware.OperatorMiddleware)
	}
	ops.HandleFunc("/dashboard", h.Dashboard).Methods(http.MethodGet)
	ops.HandleFunc("/stuck", h.StuckTasks).Methods(http.MethodGet)
	ops.HandleFunc("/tasks/{id}/override", h.OverrideTask).Methods(http.MethodPost)
	ops.HandleFunc("/audit/export", h.AuditExport).Methods(http.MethodGet)
}

func setupEventRoutes(v1 *mux.Router, config RouterConfig) {
	h := NewEventHandlers(config.Bus, config.Logger)
	events := authenticated(v1.PathPrefix("/events").Subrouter(), config)
	events.HandleFunc("", h.Since).Methods(http.MethodGet)

	// The websocket upgrade only goes through AuthMiddleware (when auth is
	// enabled): it is not rate limited and skips ValidationMiddleware's body
	// checks (a GET upgrade has no JSON body to validate).
	stream := v1.PathPrefix("/events/stream").Subrouter()
	if config.EnableAuth {
		stream.Use(middleware.AuthMiddleware(config.AuthConfig))
	}
	stream.HandleFunc("", h.Stream).Methods(http.MethodGet)
}
