// Package main runs the admin back-office HTTP server with notice WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/domstore/admin-backend/config"
	"github.com/domstore/admin-backend/internal/account"
	"github.com/domstore/admin-backend/internal/auditlog"
	"github.com/domstore/admin-backend/internal/health"
	"github.com/domstore/admin-backend/internal/middleware"
	"github.com/domstore/admin-backend/internal/notice"
	"github.com/domstore/admin-backend/internal/orders"
	"github.com/domstore/admin-backend/internal/promotions"
	"github.com/domstore/admin-backend/internal/reports"
	"github.com/domstore/admin-backend/internal/session"
	"github.com/domstore/admin-backend/internal/upstream"
	"github.com/domstore/admin-backend/internal/vouchers"
	"github.com/domstore/admin-backend/pkg/database"
	"github.com/domstore/admin-backend/pkg/queue"
	"github.com/domstore/admin-backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	checks := map[string]health.Checker{"redis": rdb}

	// Audit log: Postgres when reachable, in-process otherwise.
	var audit auditlog.Store = auditlog.NewMemory()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Warn("database unavailable, audit log kept in memory", zap.Error(err))
	} else {
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		audit = auditlog.NewRepository(pool)
		checks["postgres"] = health.CheckFunc(pool.Ping)
	}

	bus := notice.NewRedisPubSub(rdb.Client, logger)
	notifier := notice.Multi{notice.NewLog(logger), bus}

	guard := session.NewGuard(session.NewRedisStore(rdb.Client), notifier, logger)
	client := upstream.New(
		cfg.Upstream.BaseURL,
		&http.Client{Timeout: cfg.Upstream.Timeout()},
		guard,
		upstream.NewMetrics(prometheus.DefaultRegisterer),
		logger,
	)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Per-session views; a lost credential discards all of them.
	boards := orders.NewRegistry(orders.NewService(client, audit, logger), notifier)
	voucherSvc := vouchers.NewService(client, audit, logger)
	editors := vouchers.NewRegistry(voucherSvc, notifier)
	dropSession := []func(string){boards.Drop, editors.Drop}

	orderHandler := orders.NewHandler(boards, dropSession...)
	voucherHandler := vouchers.NewHandler(editors, jobQueue, logger, dropSession...)

	// Promotions, reports, account
	promotionHandler := promotions.NewHandler(promotions.NewService(client, audit, logger))
	reportSvc := reports.NewService(client, reports.NewRedisCache(rdb.Client), cfg.Reports.CacheTTL(), logger)
	reportHandler := reports.NewHandler(reportSvc, jobQueue, logger)
	accountHandler := account.NewHandler(account.NewService(client, notifier, logger))
	auditHandler := auditlog.NewHandler(audit)

	sessionHandler := session.NewHandler(guard, logger, dropSession...)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health and metrics
	router.GET("/health", health.NewHandler(checks).Get)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Session (public)
	router.POST("/session", sessionHandler.Login)

	// Notices over WebSocket (session id in query; no header on upgrade)
	router.GET("/ws/notices", notice.ServeWs(bus, func(ctx context.Context, sessionID string) bool {
		sc, err := guard.Current(ctx, sessionID)
		return err == nil && sc.Authenticated
	}, logger))

	// Admin API (stored credential required)
	api := router.Group("")
	api.Use(middleware.Session(guard, logger))
	{
		api.DELETE("/session", sessionHandler.Logout)

		// Orders
		api.GET("/orders", orderHandler.List)
		api.GET("/orders/board", orderHandler.Board)
		api.GET("/orders/statuses", orderHandler.Statuses)
		api.PUT("/orders/:id", orderHandler.SetStatus)

		// Vouchers
		api.GET("/vouchers", voucherHandler.List)
		api.POST("/vouchers", voucherHandler.Create)
		api.POST("/vouchers/deactivate_expired", voucherHandler.DeactivateExpired)
		api.GET("/vouchers/:id", voucherHandler.Get)
		api.PUT("/vouchers/:id", voucherHandler.Update)
		api.DELETE("/vouchers/:id", voucherHandler.Delete)
		api.DELETE("/vouchers/:id/detail", voucherHandler.Close)

		// Promotions
		api.POST("/promotions", promotionHandler.Add)

		// Reports
		api.GET("/reports/business-overview/:date", reportHandler.Get(reports.BusinessOverview))
		api.GET("/reports/orders/summary", reportHandler.Get(reports.OrdersSummary))
		api.GET("/reports/revenue-by-category/:date", reportHandler.Get(reports.RevenueByCategory))
		api.GET("/reports/revenue/:date", reportHandler.Get(reports.Revenue))
		api.GET("/reports/promotion-effectiveness/:date", reportHandler.Get(reports.PromotionEffectiveness))
		api.POST("/reports/snapshots", reportHandler.Snapshot)

		// Account and audit
		api.PUT("/account/password", accountHandler.ChangePassword)
		api.GET("/audit", auditHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("upstream", cfg.Upstream.BaseURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
