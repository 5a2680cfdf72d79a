package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockdesk/internal/config"
	"github.com/mamadbah2/stockdesk/internal/inventory"
	"github.com/mamadbah2/stockdesk/internal/repository/localstate"
	"github.com/mamadbah2/stockdesk/internal/repository/mongodb"
	"github.com/mamadbah2/stockdesk/internal/repository/sheets"
	"github.com/mamadbah2/stockdesk/internal/scheduler"
	"github.com/mamadbah2/stockdesk/internal/search"
	"github.com/mamadbah2/stockdesk/internal/server/handlers"
	"github.com/mamadbah2/stockdesk/internal/server/router"
	"github.com/mamadbah2/stockdesk/internal/service/dashboard"
	reportingsvc "github.com/mamadbah2/stockdesk/internal/service/reporting"
	"github.com/mamadbah2/stockdesk/internal/service/sales"
	"github.com/mamadbah2/stockdesk/internal/session"
	"github.com/mamadbah2/stockdesk/pkg/clients/stockapi"
	whatsappclient "github.com/mamadbah2/stockdesk/pkg/clients/whatsapp"
	"github.com/mamadbah2/stockdesk/pkg/logger"
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

	var mongoRepo *mongodb.MongoDBRepository
	if cfg.MongoDB.Enabled() {
		mongoRepo, err = mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
	}

	credentials, err := credentialStore(cfg.Credentials, mongoRepo)
	if err != nil {
		baseLogger.Fatal("failed to init credential store", zap.Error(err))
	}
	baseLogger.Info("credential store ready", zap.String("backend", cfg.Credentials.Backend))

	apiClient := stockapi.NewClient(stockapi.Config{
		BaseURL: cfg.API.ResolveBaseURL(),
		Timeout: cfg.API.Timeout,
	})
	baseLogger.Info("stock backend configured", zap.String("base_url", cfg.API.ResolveBaseURL()))

	guard := session.NewGuard(apiClient, credentials, cfg.Credentials.LoggedOutTTL, baseLogger.Named("session"))
	store := inventory.NewStore(apiClient, baseLogger.Named("inventory"))

	engine := search.NewEngine(store,
		search.WithQuietPeriod(cfg.Desk.SearchDebounce),
		search.WithLowStockThreshold(cfg.Desk.LowStockThreshold),
		search.WithLogger(baseLogger.Named("search")))
	defer engine.Stop()

	workflow := sales.NewWorkflow(apiClient, store, baseLogger.Named("svc.sales"),
		sales.WithAlertThreshold(cfg.Desk.LowStockThreshold))

	loader := dashboard.NewLoader(apiClient, store, dashboard.Settings{
		LowStockThreshold: cfg.Desk.LowStockThreshold,
		RecentSales:       cfg.Desk.RecentSalesLimit,
		AnalyticsDays:     cfg.Desk.AnalyticsDays,
		AnalyticsLimit:    cfg.Desk.AnalyticsLimit,
	}, baseLogger.Named("svc.dashboard"))

	location, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		baseLogger.Fatal("invalid timezone", zap.Error(err))
	}
	reportOpts := reportingsvc.Options{
		OutputDir: cfg.Reporting.OutputDir,
		Threshold: cfg.Desk.LowStockThreshold,
		Location:  location,
	}
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		reportOpts.Sheets = sheetsRepo
	} else {
		baseLogger.Warn("google sheets not configured, sales export disabled")
	}
	if mongoRepo != nil {
		reportOpts.Archive = mongoRepo
	}
	if cfg.WhatsApp.Enabled() {
		reportOpts.Notifier = whatsappclient.NewClient(cfg.WhatsApp)
		reportOpts.Recipient = cfg.WhatsApp.Recipient
	} else {
		baseLogger.Warn("whatsapp digest not configured")
	}
	reportingSvc := reportingsvc.NewService(apiClient, reportOpts, baseLogger.Named("svc.reporting"))

	sched, err := scheduler.NewScheduler(cfg.Reporting, store, reportingSvc, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	deps := handlers.Deps{
		Guard:       guard,
		Backend:     apiClient,
		Store:       store,
		Search:      engine,
		Sales:       workflow,
		Payments:    sales.NewPayments(apiClient, baseLogger.Named("svc.payments")),
		Receipts:    sales.NewReceipts(apiClient, baseLogger.Named("svc.receipts")),
		Dashboard:   loader,
		LoginPage:   cfg.Server.LoginPage,
		ReceiptsDir: cfg.Reporting.ReceiptsDir,
	}
	if mongoRepo != nil {
		deps.Archive = mongoRepo
	}
	deskHandler := handlers.NewDeskHandler(deps, baseLogger.Named("handlers.desk"))
	ginEngine := router.New(deskHandler, baseLogger.Named("router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      ginEngine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
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
}

func credentialStore(cfg config.CredentialsConfig, mongoRepo *mongodb.MongoDBRepository) (localstate.Store, error) {
	switch cfg.Backend {
	case config.CredentialsMemory:
		return localstate.NewMemoryStore(), nil
	case config.CredentialsMongoDB:
		if mongoRepo == nil {
			return nil, errors.New("mongodb credentials backend requires MONGODB_URI")
		}
		return mongoRepo.StateStore(cfg.DeskID), nil
	default:
		return localstate.NewFileStore(cfg.FilePath)
	}
}
