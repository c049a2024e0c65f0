package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teasru/Secure-LLM-Gateway/internal/admin"
	"github.com/teasru/Secure-LLM-Gateway/internal/audit"
	"github.com/teasru/Secure-LLM-Gateway/internal/auth"
	"github.com/teasru/Secure-LLM-Gateway/internal/cache"
	"github.com/teasru/Secure-LLM-Gateway/internal/config"
	"github.com/teasru/Secure-LLM-Gateway/internal/gateway"
	"github.com/teasru/Secure-LLM-Gateway/internal/llm"
	"github.com/teasru/Secure-LLM-Gateway/internal/models"
	"github.com/teasru/Secure-LLM-Gateway/internal/policy"
	"github.com/teasru/Secure-LLM-Gateway/internal/ratelimit"
	"github.com/teasru/Secure-LLM-Gateway/internal/store"
	"github.com/teasru/Secure-LLM-Gateway/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.Config{
		ServiceName: "secure-llm-gateway",
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(ctx)

	redisStore, err := store.NewRedisStore(cfg.RedisURL)
	if err != nil {
		logger.Error("failed to initialize redis store", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()

	// No default policy document means the service cannot start.
	policies, err := policy.NewStore(ctx, redisStore, cfg.PolicyFile, logger)
	if err != nil {
		logger.Error("failed to initialize policy store", "error", err)
		os.Exit(1)
	}

	var auditor audit.Recorder
	var auditReader admin.AuditReader
	if cfg.DatabaseURL != "" {
		auditStore, err := audit.NewStore(cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to audit database", "error", err)
			os.Exit(1)
		}
		defer auditStore.Close()
		auditor = auditStore
		auditReader = auditStore
	}

	limiter := ratelimit.NewRateLimiter(redisStore, cfg.RateLimit, cfg.RateWindow)
	responseCache := cache.NewResponseCache(redisStore, cfg.CacheTTL)

	primary := llm.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.ProviderTimeout)
	fallback := llm.NewLocalClient(cfg.FallbackURL, cfg.ProviderTimeout)

	events := gateway.NewEvents(logger)
	orchestrator := gateway.NewOrchestrator(
		policies, limiter, responseCache,
		primary, fallback,
		cfg.ProviderTimeout,
		auditor, events,
	)

	router := mux.NewRouter()
	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	// Public routes
	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.HandleFunc("/login", loginHandler(cfg.JWTSecret)).Methods("POST")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Admin routes (admin role enforced per handler)
	adminRouter := router.PathPrefix("/admin").Subrouter()
	adminHandler := admin.NewAdminHandler(policies, events, auditReader)
	adminHandler.RegisterRoutes(adminRouter)
	adminRouter.Use(authMiddleware.Authenticate)

	// Protected generation route
	generateHandler := gateway.NewHandler(orchestrator)
	router.Handle("/generate", authMiddleware.Authenticate(generateHandler)).Methods("POST")

	logger.Info("server starting", "port", cfg.ServerPort)
	if err := http.ListenAndServe(":"+cfg.ServerPort, router); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.HealthResponse{Status: "ok"})
}

// loginHandler mints demo tokens. Production deployments validate the
// caller's credential before issuing anything.
func loginHandler(jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.TokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		if req.UserID == "" || !req.Role.Valid() {
			http.Error(w, "user_id and a valid role are required", http.StatusBadRequest)
			return
		}

		token, err := auth.GenerateToken(req.UserID, req.Role, jwtSecret)
		if err != nil {
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.TokenResponse{
			AccessToken: token,
			TokenType:   "bearer",
		})
	}
}
