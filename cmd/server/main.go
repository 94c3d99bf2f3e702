package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockledger/internal/config"
	"github.com/mamadbah2/stockledger/internal/repository"
	"github.com/mamadbah2/stockledger/internal/repository/cache"
	"github.com/mamadbah2/stockledger/internal/repository/memory"
	"github.com/mamadbah2/stockledger/internal/repository/mongodb"
	"github.com/mamadbah2/stockledger/internal/repository/sheets"
	"github.com/mamadbah2/stockledger/internal/scheduler"
	"github.com/mamadbah2/stockledger/internal/server/handlers"
	"github.com/mamadbah2/stockledger/internal/server/router"
	"github.com/mamadbah2/stockledger/internal/service/alerts"
	"github.com/mamadbah2/stockledger/internal/service/importer"
	"github.com/mamadbah2/stockledger/internal/service/ledger"
	"github.com/mamadbah2/stockledger/internal/service/reporting"
	"github.com/mamadbah2/stockledger/internal/telemetry"
	"github.com/mamadbah2/stockledger/pkg/clients/mailer"
	"github.com/mamadbah2/stockledger/pkg/clients/rabbitmq"
	"github.com/mamadbah2/stockledger/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		baseLogger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			baseLogger.Error("failed to flush traces", zap.Error(err))
		}
	}()

	var store repository.Store
	switch cfg.Store.Driver {
	case config.StoreDriverMongoDB:
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, cfg.MongoDB.Collection, baseLogger.Named("repo.mongodb"))
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		store = mongoRepo
	default:
		baseLogger.Warn("using in-memory store, records are lost on restart")
		store = memory.NewRepository()
	}

	notifiers := alerts.Fanout{alerts.NewLogNotifier(baseLogger.Named("alerts.log"))}
	if cfg.MailEnabled() {
		notifiers = append(notifiers, mailer.NewClient(cfg.Mail, cfg.Alerts.Recipient))
		baseLogger.Info("mail alerts enabled", zap.String("recipient", cfg.Alerts.Recipient))
	} else {
		baseLogger.Warn("mail api not configured, alerts are only logged")
	}
	if cfg.RabbitMQ.URL != "" {
		conn, ch, err := rabbitmq.SetupConn(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, baseLogger.Named("rabbitmq"))
		if err != nil {
			baseLogger.Fatal("failed to init rabbitmq publisher", zap.Error(err))
		}
		defer closeAMQP(conn, ch, baseLogger)
		notifiers = append(notifiers, rabbitmq.NewPublisher(ch, cfg.RabbitMQ.Exchange))
		baseLogger.Info("rabbitmq alert publishing enabled", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}

	dispatcher := alerts.NewDispatcher(notifiers, alerts.Options{
		QueueSize:   cfg.Alerts.QueueSize,
		Workers:     cfg.Alerts.Workers,
		SendTimeout: cfg.Alerts.SendTimeout,
	}, baseLogger.Named("svc.alerts"))
	dispatcher.Start()

	var reportCache reporting.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			baseLogger.Fatal("failed to init redis report cache", zap.Error(err))
		}
		defer func() { _ = redisCache.Close() }()
		reportCache = redisCache
		baseLogger.Info("redis report cache enabled", zap.Duration("ttl", cfg.Redis.TTL))
	}

	var sheetReader sheets.Reader
	if cfg.SheetsEnabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		sheetReader = sheetsRepo
	}

	reportingSvc := reporting.NewService(store, reportCache, reporting.Options{
		LowStockLevel:  cfg.Reporting.LowStockLevel,
		HighStockLevel: cfg.Reporting.HighStockLevel,
		StoreTimeout:   cfg.Store.Timeout,
	}, baseLogger.Named("svc.reporting"))

	ledgerSvc := ledger.NewService(store, dispatcher, ledger.Options{
		AllowNegativeStock: cfg.Ledger.AllowNegativeStock,
		StoreTimeout:       cfg.Store.Timeout,
	}, baseLogger.Named("svc.ledger"))
	ledgerSvc.OnChange(reportingSvc)

	importSvc := importer.NewService(store, dispatcher, cfg.Store.Timeout, baseLogger.Named("svc.importer"))
	importSvc.OnChange(reportingSvc)

	engine := router.New(router.Handlers{
		Inventory: handlers.NewInventoryHandler(ledgerSvc, baseLogger.Named("handlers.inventory")),
		Reports:   handlers.NewReportHandler(reportingSvc, baseLogger.Named("handlers.reports")),
		Imports:   handlers.NewImportHandler(importSvc, sheetReader, cfg.Server.MaxUploadBytes, baseLogger.Named("handlers.imports")),
	}, cfg.Telemetry.ServiceName, baseLogger.Named("router"))

	sched, err := scheduler.NewScheduler(cfg.Reporting, reportingSvc, notifiers, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		baseLogger.Error("alert queue not drained before shutdown", zap.Error(err))
	}
}

func closeAMQP(conn *amqp.Connection, ch *amqp.Channel, log *zap.Logger) {
	if err := ch.Close(); err != nil {
		log.Error("failed to close rabbitmq channel", zap.Error(err))
	}
	if err := conn.Close(); err != nil {
		log.Error("failed to close rabbitmq connection", zap.Error(err))
	}
}
