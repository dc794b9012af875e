package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cart-recovery/internal/audit"
	"cart-recovery/internal/auth"
	"cart-recovery/internal/bizhours"
	"cart-recovery/internal/calls"
	"cart-recovery/internal/carts"
	"cart-recovery/internal/config"
	"cart-recovery/internal/dispatch"
	"cart-recovery/internal/httpapi"
	"cart-recovery/internal/ingest"
	"cart-recovery/internal/outcome"
	"cart-recovery/internal/providers/klaviyo"
	"cart-recovery/internal/providers/shopify"
	"cart-recovery/internal/providers/twilio"
	"cart-recovery/internal/providers/vapi"
	"cart-recovery/internal/reporting"
	"cart-recovery/internal/rules"
	"cart-recovery/internal/webhooks"
	"cart-recovery/pkg/logger"
	"cart-recovery/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Storage
	callsRepo := calls.NewPostgresRepo(db)
	cartsRepo := carts.NewPostgresRepo(db)
	rulesRepo := rules.NewPostgresRepo(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	// Providers
	voice := vapi.New(vapi.Config{
		APIKey:        cfg.Vapi.APIKey,
		AssistantID:   cfg.Vapi.AssistantID,
		PhoneNumberID: cfg.Vapi.PhoneNumberID,
	})
	sms := twilio.New(twilio.Config{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Twilio.FromNumber,
		StoreName:  cfg.Recovery.StoreName,
	})
	shop := shopify.New(shopify.Config{
		StoreURL:    cfg.Shopify.StoreURL,
		AccessToken: cfg.Shopify.AccessToken,
	})
	marketing := klaviyo.New(klaviyo.Config{APIKey: cfg.Klaviyo.APIKey})

	// Pipeline
	dispatcher := &dispatch.Dispatcher{
		Repo:   callsRepo,
		Voice:  voice,
		Window: bizhours.DefaultWindow,
		Log:    log,
	}
	ingestSvc := &ingest.Service{
		Repo:          callsRepo,
		Rules:         rulesRepo,
		Guard:         ingest.NewDedupGuard(rdb, cfg.Recovery.DedupWindow),
		Dispatcher:    dispatcher,
		OutboundCalls: cfg.Recovery.OutboundCalls,
		DedupWindow:   cfg.Recovery.DedupWindow,
		Log:           log,
	}
	resolver := &outcome.Resolver{
		Repo:      callsRepo,
		SMS:       sms,
		Marketing: marketing,
		Log:       log,
	}

	scheduler := dispatch.NewScheduler(dispatcher, cfg.Recovery.SchedulerInterval, log)
	if err := scheduler.Start(rootCtx); err != nil {
		log.Error("scheduler start failed", "err", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	// Handlers
	hooks := webhooks.Handlers{
		Ingest:        ingestSvc,
		Calls:         callsRepo,
		Carts:         cartsRepo,
		Resolver:      resolver,
		SMS:           sms,
		Discounts:     shop,
		KlaviyoSecret: cfg.Klaviyo.WebhookSecret,
		ShopifySecret: cfg.Shopify.WebhookSecret,
		ImportSecret:  cfg.Recovery.ImportSecret,
		Audit:         auditSvc,
		Log:           log,
	}
	api := httpapi.Handlers{
		Auth:    authManager,
		Calls:   callsRepo,
		Carts:   cartsRepo,
		Rules:   rulesRepo,
		Reports: reporting.NewService(callsRepo, cartsRepo),
		Audit:   auditSvc,
		Log:     log,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, db, hooks, api, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env,
			"outbound_calls", cfg.Recovery.OutboundCalls)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
