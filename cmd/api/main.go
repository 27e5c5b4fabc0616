package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xxz807/messledger/internal/ledger/adapter/repo"
	"github.com/xxz807/messledger/internal/ledger/api"
	"github.com/xxz807/messledger/internal/ledger/service"
	"github.com/xxz807/messledger/internal/platform/config"
	"github.com/xxz807/messledger/internal/platform/database"
	"github.com/xxz807/messledger/internal/platform/eventlog"
	"github.com/xxz807/messledger/internal/platform/logger"
	"github.com/xxz807/messledger/internal/platform/server"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %s", err)
	}

	// 2. 初始化基础设施 (Infra)
	appLogger, err := logger.NewLogger(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("Error building logger: %s", err)
	}
	defer func() { _ = appLogger.Sync() }()

	db, err := database.Open(cfg.Database, cfg.Server.Mode, appLogger)
	if err != nil {
		appLogger.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		appLogger.Fatal("database migration failed", zap.Error(err))
	}

	audit := eventlog.NewGormStore(db)
	events := eventlog.NewWorker(audit, appLogger, cfg.EventLog.Buffer)
	events.Start()

	// 3. 依赖注入 (Wiring)
	repos := repo.NewRepositories(db)
	ledgerHandler := api.NewLedgerHandler(api.Services{
		Members:    service.NewMemberService(repos, appLogger),
		Settlement: service.NewSettlementService(db, repos, appLogger),
		Expenses:   service.NewExpenseService(db, repos, appLogger, events),
		Deposits:   service.NewDepositService(db, repos, appLogger),
		Batches:    service.NewBatchService(db, repos, appLogger, events),
		Months:     service.NewMonthService(db, repos, appLogger, events),
		Audit:      audit,
	})

	// 4. 初始化 Server (Gateway)
	srv := server.NewServer(appLogger, cfg.Server.Port, cfg.Server.Mode, ledgerHandler)

	go func() {
		if err := srv.Run(); err != nil {
			appLogger.Fatal("Server startup failed", zap.Error(err))
		}
	}()
	appLogger.Info("ledger ready", zap.String("currency", cfg.Ledger.Currency), zap.String("driver", cfg.Database.Driver))

	// 5. 优雅停机：先停 HTTP，再把审计事件落完
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("server shutdown failed", zap.Error(err))
	}
	events.Shutdown()
}
