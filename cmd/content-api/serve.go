package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/noah-isme/content-admin-api/api/swagger"
	"github.com/noah-isme/content-admin-api/internal/handler"
	"github.com/noah-isme/content-admin-api/internal/repository"
	"github.com/noah-isme/content-admin-api/internal/router"
	"github.com/noah-isme/content-admin-api/internal/service"
	"github.com/noah-isme/content-admin-api/pkg/cache"
	"github.com/noah-isme/content-admin-api/pkg/config"
	"github.com/noah-isme/content-admin-api/pkg/database"
	"github.com/noah-isme/content-admin-api/pkg/jobs"
	"github.com/noah-isme/content-admin-api/pkg/storage"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logr, err := bootstrap()
		if err != nil {
			return err
		}
		defer logr.Sync() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logr)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "Apply pending migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if autoMigrate {
		if err := database.Migrate(db.DB, 0, logr); err != nil {
			return err
		}
	}

	metrics := service.NewMetricsService()
	checks := map[string]handler.Pinger{"database": pingFunc(db.PingContext)}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}
	var rowCache *service.RowCache
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, "content", logr)
		checks["cache"] = cacheRepo
		rowCache = service.NewRowCache(cacheRepo, metrics, cfg.Hierarchy.CacheTTL, logr)
	}

	blobs, err := storage.New(ctx, cfg.Blob)
	if err != nil {
		return err
	}
	cleanup := jobs.NewQueue("blob-cleanup", service.NewBlobCleanupHandler(blobs, cfg.Blob.Timeout, metrics, logr), jobs.QueueConfig{
		Workers:    cfg.Cleanup.Workers,
		MaxRetries: cfg.Cleanup.MaxRetries,
		RetryDelay: cfg.Cleanup.RetryDelay,
		Logger:     logr,
	})
	cleanup.Start(context.Background())
	defer cleanup.Stop()

	hierarchyRepo := repository.NewHierarchyRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	userRepo := repository.NewUserRepository(db)

	hierarchy := service.NewHierarchyService(hierarchyRepo, assignmentRepo, artifactRepo, rowCache, metrics, service.HierarchyConfig{
		CacheTTL: cfg.Hierarchy.CacheTTL,
		MaxDepth: cfg.Hierarchy.MaxDepth,
	}, logr)
	checks["hierarchy"] = hierarchy
	paths := service.NewPathResolver(hierarchy, cfg.Hierarchy.CacheTTL)
	artifacts := service.NewArtifactService(artifactRepo, blobs, cleanup, hierarchy, metrics, service.ArtifactConfig{
		MaxPageBytes:         cfg.Artifacts.MaxPageBytes,
		MaxAdditionalBytes:   cfg.Artifacts.MaxAdditionalBytes,
		AdditionalExtensions: cfg.Artifacts.AdditionalExtensions,
		BlobTimeout:          cfg.Blob.Timeout,
	}, logr)
	assignments := service.NewAssignmentService(assignmentRepo, hierarchy, paths, metrics, logr)
	directory := service.NewDirectoryService(userRepo, service.DirectoryConfig{
		PositionPrefixes: cfg.Directory.PositionPrefixes,
		UnknownPosition:  cfg.Directory.UnknownPosition,
	}, logr)
	conflicts := service.NewConflictService(assignments, directory, paths, validator.New(), metrics, service.ConflictConfig{
		DirectoryTimeout: cfg.Directory.Timeout,
		UnknownPosition:  cfg.Directory.UnknownPosition,
	}, logr)

	engine := router.New(cfg, router.Handlers{
		Hierarchy:  handler.NewHierarchyHandler(hierarchy, paths),
		Artifacts:  handler.NewArtifactHandler(artifacts),
		Assignment: handler.NewAssignmentHandler(assignments, conflicts),
		Roster:     handler.NewRosterHandler(service.NewRosterService(assignments, nil, nil, logr)),
		Metrics:    handler.NewMetricsHandler(metrics, checks),
	}, metrics, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("blob_driver", cfg.Blob.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
