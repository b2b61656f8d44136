package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/grievance-api/api/swagger"
	"github.com/noah-isme/grievance-api/internal/handler"
	"github.com/noah-isme/grievance-api/internal/middleware"
	"github.com/noah-isme/grievance-api/internal/wire"
	"github.com/noah-isme/grievance-api/pkg/config"
	"github.com/noah-isme/grievance-api/pkg/grpcserver"
	"github.com/noah-isme/grievance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/grievance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/grievance-api/pkg/middleware/requestid"
)

// @title Grievance API
// @version 1.0.0
// @description Grievance submission, tracking and escalation service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := wire.Build(cfg, logr)
	if err != nil {
		logr.Fatal("failed to build services", zap.Error(err))
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Delivery outlives the signal so queued notifications can drain on shutdown.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	go func() {
		if err := app.Hub.Run(workerCtx); err != nil {
			logr.Error("realtime hub stopped", zap.Error(err))
		}
	}()
	app.Notifications.Start(workerCtx)
	if cfg.Grievance.EscalationEnabled {
		app.Scheduler.Start(ctx)
	}
	go runExportCleanup(ctx, app, cfg.Exports.CleanupInterval)

	if cfg.GRPC.Enabled {
		health := grpcserver.NewHealthServer(logger.ServiceName, map[string]grpcserver.Checker{
			"database": app.Ping,
		}, 0, logr)
		go func() {
			if err := health.Serve(ctx, cfg.GRPC.Port); err != nil {
				logr.Error("grpc health server failed", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, app, logr),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}
	app.Scheduler.Stop()
	if err := app.Notifications.Flush(shutdownCtx); err != nil {
		logr.Warn("pending notifications dropped", zap.Error(err))
	}
	app.Notifications.Stop()
	stopWorkers()
}

func newRouter(cfg *config.Config, app *wire.Container, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(app.Metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(app.Metrics, app.DB)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(app.Auth)
	grievanceHandler := handler.NewGrievanceHandler(app.Grievance)
	escalationHandler := handler.NewEscalationHandler(app.Escalation, app.Scheduler)
	exportHandler := handler.NewExportHandler(app.Exports)
	realtimeHandler := handler.NewRealtimeHandler(app.Hub, cfg.CORS.AllowedOrigins)

	api := r.Group(cfg.APIPrefix)
	requireAuth := middleware.JWT(app.Auth)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", requireAuth, authHandler.Logout)
	auth.POST("/change-password", requireAuth, authHandler.ChangePassword)
	auth.GET("/me", requireAuth, authHandler.Me)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.TrackRPS, cfg.RateLimit.TrackBurst)
	api.GET("/track/:trackingId", limiter.Handler(), middleware.OptionalJWT(app.Auth), grievanceHandler.Track)
	api.GET("/export/:token", exportHandler.Download)

	grievances := api.Group("/grievances", requireAuth)
	grievances.POST("", grievanceHandler.Submit)
	grievances.GET("", grievanceHandler.List)
	grievances.GET("/stats", grievanceHandler.Stats)
	grievances.POST("/export", middleware.RequireAdmin(), exportHandler.Create)
	grievances.GET("/:id", grievanceHandler.Get)
	grievances.PATCH("/:id/status", middleware.RequireHandler(), grievanceHandler.UpdateStatus)
	grievances.POST("/:id/comments", grievanceHandler.AddComment)
	grievances.PATCH("/:id/confidential", middleware.RequireAdmin(), grievanceHandler.SetConfidential)
	grievances.DELETE("/:id", middleware.RequireAdmin(), grievanceHandler.Delete)
	grievances.GET("/:id/history", middleware.RequireAdmin(), grievanceHandler.History)
	grievances.POST("/:id/escalate", middleware.RequireAdmin(), escalationHandler.Escalate)

	admin := api.Group("/admin", requireAuth, middleware.RequireAdmin())
	admin.POST("/escalations/sweep", escalationHandler.Sweep)
	admin.POST("/users", authHandler.CreateUser)
	admin.GET("/metrics", metricsHandler.Snapshot)

	api.GET("/ws/grievances", middleware.QueryJWT(app.Auth), middleware.RequireHandler(), realtimeHandler.Stream)

	if app.Chatbot != nil {
		telegramHandler := handler.NewTelegramHandler(app.Chatbot, cfg.Notify.TelegramWebhookSecret, logr)
		api.POST("/integrations/telegram/webhook", telegramHandler.Webhook)
	}

	return r
}

// runExportCleanup removes rendered exports once their links have expired.
func runExportCleanup(ctx context.Context, app *wire.Container, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := app.Exports.Cleanup(app.Config.Exports.SignedURLTTL)
			if err != nil {
				app.Logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				app.Logger.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
