// Package main runs the background job worker (bulk voucher deactivation, report snapshots to S3).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/domstore/admin-backend/config"
	"github.com/domstore/admin-backend/internal/auditlog"
	"github.com/domstore/admin-backend/internal/notice"
	"github.com/domstore/admin-backend/internal/reports"
	"github.com/domstore/admin-backend/internal/session"
	"github.com/domstore/admin-backend/internal/upstream"
	"github.com/domstore/admin-backend/internal/vouchers"
	"github.com/domstore/admin-backend/internal/worker"
	"github.com/domstore/admin-backend/pkg/database"
	"github.com/domstore/admin-backend/pkg/queue"
	"github.com/domstore/admin-backend/pkg/redis"
	"github.com/domstore/admin-backend/pkg/storage"
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

	var audit auditlog.Recorder
	if pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger); err != nil {
		logger.Warn("database unavailable, worker runs without audit log", zap.Error(err))
	} else {
		defer pool.Close()
		audit = auditlog.NewRepository(pool)
	}

	var snapshots worker.SnapshotStore
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ReportsBucket:        cfg.AWS.ReportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			snapshots = s3Client
		}
	}

	notifier := notice.Multi{notice.NewLog(logger), notice.NewRedisPubSub(rdb.Client, logger)}
	guard := session.NewGuard(session.NewRedisStore(rdb.Client), notifier, logger)
	client := upstream.New(
		cfg.Upstream.BaseURL,
		&http.Client{Timeout: cfg.Upstream.Timeout()},
		guard,
		upstream.NewMetrics(nil),
		logger,
	)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	processor := worker.NewProcessor(worker.Deps{
		Jobs:         jobQueue,
		Sessions:     guard,
		Vouchers:     vouchers.NewService(client, audit, logger),
		Reports:      reports.NewService(client, reports.NewRedisCache(rdb.Client), cfg.Reports.CacheTTL(), logger),
		Snapshots:    snapshots,
		Notifier:     notifier,
		ServiceToken: cfg.Worker.ServiceToken,
	}, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	if cfg.Worker.DeactivateExpiredIntervalMin > 0 {
		interval := time.Duration(cfg.Worker.DeactivateExpiredIntervalMin) * time.Minute
		go processor.Schedule(workerCtx, interval)
		logger.Info("periodic deactivation enabled", zap.Duration("interval", interval))
	}
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
