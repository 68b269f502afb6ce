package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/content-admin-api/internal/handler"
	"github.com/noah-isme/content-admin-api/internal/middleware"
	"github.com/noah-isme/content-admin-api/internal/service"
	"github.com/noah-isme/content-admin-api/pkg/config"
	"github.com/noah-isme/content-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/content-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/content-admin-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Hierarchy  *handler.HierarchyHandler
	Artifacts  *handler.ArtifactHandler
	Assignment *handler.AssignmentHandler
	Roster     *handler.RosterHandler
	Metrics    *handler.MetricsHandler
}

// New builds the gin engine with the shared middleware chain.
func New(cfg *config.Config, h Handlers, metrics *service.MetricsService, log *zap.Logger) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if cfg.Docs && cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/summary", h.Metrics.Summary)

	api.GET("/hierarchy", h.Hierarchy.Tree)
	api.POST("/hierarchy/refresh", h.Hierarchy.Refresh)
	api.GET("/nodes/:id", h.Hierarchy.Node)
	api.GET("/nodes/:id/path", h.Hierarchy.Path)

	api.GET("/pages/:id/artifacts", h.Artifacts.ListByPage)
	api.POST("/pages/:id/artifacts", h.Artifacts.CreateAdditional)
	artifacts := api.Group("/artifacts")
	artifacts.GET("/:id", h.Artifacts.Get)
	artifacts.DELETE("/:id", h.Artifacts.Remove)
	artifacts.GET("/:id/archives", h.Artifacts.Archives)
	artifacts.GET("/:id/content", h.Artifacts.Content)
	artifacts.POST("/:id/pending", h.Artifacts.Stage)
	artifacts.POST("/:id/approve", h.Artifacts.Approve)

	assignments := api.Group("/assignments")
	assignments.GET("", h.Assignment.List)
	assignments.GET("/lookup", h.Assignment.Lookup)
	assignments.GET("/export", h.Roster.Export)
	assignments.POST("", h.Assignment.Create)
	assignments.PUT("/:id", h.Assignment.Replace)
	assignments.DELETE("/:id", h.Assignment.Remove)

	return r
}
