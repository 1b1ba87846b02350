package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/auth"
	"github.com/foresee-health/outbreaklens-engine/pkg/config"
	"github.com/foresee-health/outbreaklens-engine/pkg/database"
	"github.com/foresee-health/outbreaklens-engine/pkg/handlers"
	"github.com/foresee-health/outbreaklens-engine/pkg/inference"
	"github.com/foresee-health/outbreaklens-engine/pkg/logging"
	"github.com/foresee-health/outbreaklens-engine/pkg/middleware"
	"github.com/foresee-health/outbreaklens-engine/pkg/repositories"
	"github.com/foresee-health/outbreaklens-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("inference_url", cfg.Inference.BaseURL),
		zap.Bool("redis_enabled", cfg.Redis.Host != ""),
	)

	// Migrations run over database/sql; the pgx pool below is for queries.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := migrationDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, stats cache disabled", zap.Error(err))
		redisClient = nil
	}

	validator, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		Issuer:             cfg.Auth.Issuer,
		JWKSURL:            cfg.Auth.JWKSURL,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	authService := auth.NewAuthService(validator, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	userRepo := repositories.NewUserRepository(db)
	diagnosisRepo := repositories.NewDiagnosisRepository(db)
	forecastRepo := repositories.NewForecastRepository(db)
	reportRepo := repositories.NewReportRepository(db)

	statsCache := services.NewStatsCache(redisClient, logger)
	userService := services.NewUserService(userRepo, logger)
	diagnosisService := services.NewDiagnosisService(diagnosisRepo, statsCache, logger)
	forecastService := services.NewForecastService(forecastRepo, statsCache, logger)
	reportService := services.NewReportService(reportRepo, statsCache, logger)

	inferenceClient := inference.NewClient(&cfg.Inference, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewUsersHandler(userService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewDiagnosesHandler(diagnosisService, userService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewForecastsHandler(forecastService, userService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewReportsHandler(reportService, userService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewPredictHandler(inferenceClient, diagnosisService, forecastService, userService, logger).RegisterRoutes(mux, authMiddleware)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting outbreaklens-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version),
	)

	if cfg.TLSCertPath != "" {
		err = http.ListenAndServeTLS(addr, cfg.TLSCertPath, cfg.TLSKeyPath, handler)
	} else {
		err = http.ListenAndServe(addr, handler)
	}
	logger.Fatal("Server failed", zap.Error(err))
}

// newLogger picks the zap preset by environment. Local and development
// get console output; everything else logs JSON.
func newLogger(env string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if env == "local" || env == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	return logger
}
