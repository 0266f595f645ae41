package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/order-parser/internal/app"
	"github.com/joseph-ayodele/order-parser/internal/async"
	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/export"
	"github.com/joseph-ayodele/order-parser/internal/ingest"
	repo "github.com/joseph-ayodele/order-parser/internal/repository"
	"github.com/joseph-ayodele/order-parser/internal/salesorder"
	"github.com/joseph-ayodele/order-parser/internal/server"
	"github.com/joseph-ayodele/order-parser/internal/services/inbox"
	"github.com/joseph-ayodele/order-parser/internal/services/models"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("orderparserd.config.failed", "error", err)
		os.Exit(1)
	}
	logger := common.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("orderparserd.config.invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{
		URL:             cfg.Database.URL,
		SQLitePath:      cfg.Database.SQLitePath,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("orderparserd.db.open.failed", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	if err := db.HealthCheck(ctx, 5*time.Second, logger); err != nil {
		logger.Error("orderparserd.db.ping.failed", "error", err)
		os.Exit(1)
	}

	modelsRepo := repo.NewParserModelRepository(db, logger)
	logsRepo := repo.NewProcessingLogRepository(db, logger)
	docsRepo := repo.NewParsedDocumentRepository(db, logger)
	ordersRepo := repo.NewSalesOrderRepository(db, logger)

	runner, err := app.BuildRunner(cfg, modelsRepo, logsRepo, docsRepo, logger)
	if err != nil {
		logger.Error("orderparserd.pipeline.failed", "error", err)
		os.Exit(1)
	}

	queue := async.NewQueue(runner,
		async.WithWorkers(cfg.Worker.Workers),
		async.WithQueueSize(cfg.Worker.QueueSize),
		async.WithProcessTimeout(cfg.Worker.ProcessTimeout),
		async.WithLogger(logger),
	)
	inboxSvc := inbox.NewService(queue, logger)

	if cfg.Worker.InboxDir != "" {
		if err := os.MkdirAll(cfg.Worker.InboxDir, 0o755); err != nil {
			logger.Error("orderparserd.inbox.mkdir.failed", "dir", cfg.Worker.InboxDir, "error", err)
			os.Exit(1)
		}
		events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Worker.InboxDir},
			InitialScan: true,
			Debounce:    750 * time.Millisecond,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("orderparserd.inbox.watch.failed", "dir", cfg.Worker.InboxDir, "error", err)
			os.Exit(1)
		}
		go inboxSvc.Consume(ctx, events)
		go func() {
			for err := range errs {
				logger.Warn("orderparserd.inbox.watch.error", "error", err)
			}
		}()
	}

	router := server.NewRouter(server.Deps{
		Runner:         runner,
		Models:         models.NewService(modelsRepo, logger),
		Logs:           logsRepo,
		Documents:      docsRepo,
		SalesOrders:    salesorder.NewService(ordersRepo, docsRepo, logger),
		Export:         export.NewService(logsRepo, docsRepo, logger),
		Inbox:          inboxSvc,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		Logger:         logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var healthServer *server.HealthServer
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("orderparserd.grpc.listen.failed", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		healthServer = server.NewHealthServer(logger)
		go func() {
			if err := healthServer.Serve(lis); err != nil {
				logger.Error("orderparserd.grpc.serve.failed", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("orderparserd.http.listening", "addr", cfg.Server.HTTPAddr, "db", db.Dialect())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("orderparserd.http.serve.failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("orderparserd.shutdown.start")
	if healthServer != nil {
		healthServer.SetServing(false)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("orderparserd.http.shutdown.failed", "error", err)
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Warn("orderparserd.queue.drain.failed", "error", err)
	}
	if healthServer != nil {
		healthServer.Stop()
	}
	logger.Info("orderparserd.shutdown.ok")
}
