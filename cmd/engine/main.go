// ==============================================================================
// COMPLIANCE ENGINE MAIN - cmd/engine/main.go
// ==============================================================================
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"cred/internal/admin"
	"cred/internal/aml"
	"cred/internal/compliance"
	"cred/internal/enforcement"
	"cred/internal/handler"
	"cred/internal/kyc"
	"cred/internal/limits"
	"cred/internal/middleware"
	"cred/internal/notification"
	"cred/internal/repository/postgres"
	"cred/internal/repository/redisstore"
	"cred/internal/risk"
	"cred/internal/watchlist"
	"cred/pkg/cache"
	"cred/pkg/clock"
	"cred/pkg/config"
	"cred/pkg/logger"
	"cred/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("compliance-engine")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting Compliance Engine", map[string]interface{}{
		"port": cfg.Server.Port,
	})

	// Database connection
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log.Info("Database connected", nil)

	// Redis connection
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Redis connected", nil)

	clk := clock.Real()

	// Repositories
	recordRepo := postgres.NewKYCRecordRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	historyRepo := postgres.NewTransactionHistoryRepository(db)
	usageStore := redisstore.NewUsageStoreWithClient(redisClient, clk)

	// Domain services
	scorer := risk.NewScorer(cfg.Risk, clk)
	calc := limits.NewCalculator(cfg.Limits)
	detector := aml.NewDetector(cfg.AML, historyRepo, clk, log)
	aggregator := watchlist.NewAggregator(buildSources(cfg.Watchlist), cfg.Watchlist, clk, log)
	if cfg.Watchlist.VerdictCacheTTL > 0 {
		aggregator = aggregator.WithCache(cache.NewRedisCacheWithClient(redisClient), cfg.Watchlist.VerdictCacheTTL)
	}
	lifecycle := kyc.NewService(recordRepo, auditRepo, calc, cfg.KYC, clk, log)
	gate := enforcement.NewGate(recordRepo, usageStore, clk, log)
	notifier := notification.NewService(log, clk)
	adminSvc := admin.NewService(lifecycle, scorer, notifier, log)

	engine := compliance.NewService(validator.New(), scorer, aggregator,
		detector, lifecycle, gate, adminSvc, auditRepo, auditRepo,
		historyRepo, clk, log)

	// Handlers
	complianceHandler := handler.NewComplianceHandler(engine, log)
	adminHandler := handler.NewAdminHandler(engine, log)

	// Router
	r := mux.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.BodyLimit(1 << 20))
	r.Use(middleware.NewRateLimiter(redisClient, 150, time.Minute).Limit)

	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	// Health check routes (no auth)
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ready", readyCheck(db)).Methods("GET")

	// Protected routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW.Authenticate)
	api.Use(middleware.NewRateLimiter(redisClient, 60, time.Minute).Limit)

	api.HandleFunc("/verifications", complianceHandler.InitiateVerification).Methods("POST")
	api.HandleFunc("/subjects/{id}/status", complianceHandler.CheckStatus).Methods("GET")
	api.HandleFunc("/subjects/{id}/transactions/evaluate", complianceHandler.EvaluateTransaction).Methods("POST")
	api.HandleFunc("/subjects/{id}/transfers/validate", complianceHandler.ValidateTransfer).Methods("POST")
	api.HandleFunc("/subjects/{id}/transfers", complianceHandler.RecordTransfer).Methods("POST")
	api.HandleFunc("/subjects/{id}/audit", complianceHandler.AuditTrail).Methods("GET")

	adminAPI := api.PathPrefix("/admin").Subrouter()
	adminAPI.HandleFunc("/subjects/{id}/approve", adminHandler.Approve).Methods("POST")
	adminAPI.HandleFunc("/subjects/{id}/reject", adminHandler.Reject).Methods("POST")
	adminAPI.HandleFunc("/subjects/{id}/suspend", adminHandler.Suspend).Methods("POST")
	adminAPI.HandleFunc("/subjects/{id}/reinstate", adminHandler.Reinstate).Methods("POST")
	adminAPI.HandleFunc("/subjects/{id}/risk-score", adminHandler.UpdateRiskScore).Methods("PUT")
	adminAPI.HandleFunc("/subjects/{id}/whitelist", adminHandler.SetWhitelist).Methods("PUT")
	adminAPI.HandleFunc("/subjects/{id}/blacklist", adminHandler.SetBlacklist).Methods("PUT")

	// Expiry sweep
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if cfg.KYC.ExpirySweepInterval > 0 {
		go runExpirySweep(sweepCtx, engine, cfg.KYC.ExpirySweepInterval, log)
	}

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Info("Compliance engine started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down compliance engine...", nil)
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Compliance engine forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Compliance engine stopped gracefully", nil)
}

// buildSources assembles the configured watchlist source clients. HTTP
// sources are name=url pairs; static entries seed the built-in list.
func buildSources(cfg config.WatchlistConfig) []watchlist.SourceClient {
	var sources []watchlist.SourceClient

	for _, pair := range cfg.HTTPSources {
		name, endpoint, ok := strings.Cut(pair, "=")
		if !ok || name == "" || endpoint == "" {
			continue
		}
		sources = append(sources, watchlist.NewHTTPClient(name, endpoint, nil))
	}

	if len(cfg.StaticEntries) > 0 {
		entries := make(map[string]float64, len(cfg.StaticEntries))
		for _, name := range cfg.StaticEntries {
			entries[name] = 0.9
		}
		sources = append(sources, watchlist.NewStaticListClient("static", entries))
	}

	return sources
}

func runExpirySweep(ctx context.Context, engine *compliance.Service, interval time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := engine.ExpireDue(ctx)
			if err != nil {
				log.Error("Expiry sweep failed", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}
			if expired > 0 {
				log.Info("Expiry sweep completed", map[string]interface{}{
					"expired": expired,
				})
			}
		}
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	_ = r
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"compliance-engine","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func readyCheck(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r
		if err := db.Ping(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready","reason":"database unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready","service":"compliance-engine"}`))
	}
}
