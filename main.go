package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/atlasform-io/atlasform-engine/pkg/auth"
	"github.com/atlasform-io/atlasform-engine/pkg/config"
	"github.com/atlasform-io/atlasform-engine/pkg/database"
	"github.com/atlasform-io/atlasform-engine/pkg/handlers"
	"github.com/atlasform-io/atlasform-engine/pkg/logging"
	"github.com/atlasform-io/atlasform-engine/pkg/middleware"
	"github.com/atlasform-io/atlasform-engine/pkg/repositories"
	"github.com/atlasform-io/atlasform-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure at exit is harmless

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	ctx := context.Background()

	// Migrations run through database/sql; the pgx pool handles request traffic.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, "migrations", logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := migrationDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

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
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient == nil {
		logger.Info("Redis not configured, version cache disabled")
	}

	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	cellRepo := repositories.NewCellRepository()
	datasetRepo := repositories.NewDatasetRepository()
	projectRepo := repositories.NewProjectRepository()
	layerRepo := repositories.NewLayerRepository()

	cellService := services.NewCellService(cellRepo, datasetRepo, logger)
	datasetService := services.NewDatasetService(datasetRepo, logger)
	importService := services.NewImportService(datasetRepo, cfg.Import, logger)
	projectService := services.NewProjectService(projectRepo, logger)
	layerService := services.NewLayerService(layerRepo, datasetRepo, projectRepo, logger)
	publishService := services.NewPublishService(projectRepo, redisClient,
		time.Duration(cfg.Redis.VersionTTLMinutes)*time.Minute, logger)

	scopeProvider := database.NewTenantScopeProvider(db)
	tenantMiddleware := makeTenantMiddleware(scopeProvider, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewIconsHandler(logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewDatasetsHandler(datasetService, cellService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewCellsHandler(cellService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewImportsHandler(importService, cfg.Import, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewProjectsHandler(projectService, publishService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewLayersHandler(layerService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting atlasform-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))

	if cfg.TLSCertPath != "" {
		err = http.ListenAndServeTLS(addr, cfg.TLSCertPath, cfg.TLSKeyPath, handler)
	} else {
		err = http.ListenAndServe(addr, handler)
	}
	if err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// makeTenantMiddleware binds each request to a workspace-scoped database
// connection derived from the validated token claims. The scope is released
// when the request finishes.
func makeTenantMiddleware(provider *database.TenantScopeProvider, logger *zap.Logger) handlers.TenantMiddleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			workspaceID, err := auth.ExtractWorkspaceID(r.Context())
			if err != nil {
				if err := handlers.ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); err != nil {
					logger.Error("Failed to write error response", zap.Error(err))
				}
				return
			}

			ctx, cleanup, err := provider.WithTenantScope(r.Context(), workspaceID)
			if err != nil {
				logger.Error("Failed to acquire tenant scope", zap.Error(err))
				if err := handlers.ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal server error"); err != nil {
					logger.Error("Failed to write error response", zap.Error(err))
				}
				return
			}
			defer cleanup()

			next(w, r.WithContext(ctx))
		}
	}
}
