package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/blob"
	"github.com/auditsource/engine/pkg/config"
	"github.com/auditsource/engine/pkg/database"
	"github.com/auditsource/engine/pkg/handlers"
	"github.com/auditsource/engine/pkg/llm"
	"github.com/auditsource/engine/pkg/logging"
	"github.com/auditsource/engine/pkg/middleware"
	"github.com/auditsource/engine/pkg/repositories"
	"github.com/auditsource/engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const migrationsPath = "migrations"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("assistant_enabled", cfg.Assistant.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	blobs, err := blob.New(ctx, &cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to initialize blob storage", zap.Error(err))
	}

	// Repositories
	engagementRepo := repositories.NewEngagementRepository()
	standardRepo := repositories.NewStandardRepository()
	controlRepo := repositories.NewControlRepository()
	requestRepo := repositories.NewRequestRepository()
	documentRepo := repositories.NewDocumentRepository()
	questionnaireRepo := repositories.NewQuestionnaireRepository()
	conversationRepo := repositories.NewConversationRepository()

	// Services
	generationService := services.NewGenerationService(engagementRepo, standardRepo, controlRepo, questionnaireRepo, logger)
	engagementService := services.NewEngagementService(engagementRepo, standardRepo, generationService, logger)
	controlService := services.NewControlService(controlRepo, requestRepo, logger)
	requestService := services.NewRequestService(requestRepo, controlRepo, documentRepo, logger)
	signoffService := services.NewSignoffService(requestRepo, documentRepo, logger)
	documentService := services.NewDocumentService(documentRepo, requestRepo, controlRepo, engagementRepo, blobs, logger)
	questionnaireService := services.NewQuestionnaireService(questionnaireRepo, engagementRepo, standardRepo, generationService, logger)

	// Middleware
	authMiddleware := auth.NewMiddleware(logger)
	scope := handlers.Middleware(database.WithScope(db, logger))

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewEngagementHandler(engagementService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewStandardHandler(standardRepo, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewControlHandler(controlService, generationService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewRequestHandler(requestService, signoffService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewDocumentHandler(documentService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewQuestionnaireHandler(questionnaireService, logger).RegisterRoutes(mux, authMiddleware, scope)

	if cfg.Assistant.Enabled {
		generator, err := llm.NewClient(&llm.Config{
			Endpoint: cfg.Assistant.Endpoint,
			Model:    cfg.Assistant.Model,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create assistant client", zap.Error(err))
		}
		assistantService := services.NewAssistantService(generator, conversationRepo, logger)
		handlers.NewAssistantHandler(assistantService, logger).RegisterRoutes(mux, authMiddleware, scope)
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting auditsource-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// runMigrations applies pending schema migrations over a short-lived
// database/sql connection; the pgx pool is opened afterwards.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	db, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	return database.RunMigrations(db, migrationsPath, logger)
}
