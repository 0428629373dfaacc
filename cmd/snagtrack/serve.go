package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/snagtrack/snagtrack/internal/activity"
	"github.com/snagtrack/snagtrack/internal/api"
	"github.com/snagtrack/snagtrack/internal/auth"
	"github.com/snagtrack/snagtrack/internal/billing"
	"github.com/snagtrack/snagtrack/internal/config"
	"github.com/snagtrack/snagtrack/internal/mail"
	"github.com/snagtrack/snagtrack/internal/metrics"
	"github.com/snagtrack/snagtrack/internal/plan"
	"github.com/snagtrack/snagtrack/internal/presence"
	"github.com/snagtrack/snagtrack/internal/ratelimit"
	"github.com/snagtrack/snagtrack/internal/report"
	"github.com/snagtrack/snagtrack/internal/site"
	"github.com/snagtrack/snagtrack/internal/sitename"
	"github.com/snagtrack/snagtrack/internal/storage"
	"github.com/snagtrack/snagtrack/internal/team"
	"github.com/snagtrack/snagtrack/internal/user"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Snagtrack API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	userStore := user.NewStore(pool)
	teamStore := team.NewStore(pool)
	siteStore := site.NewStore(pool)
	reportStore := report.NewStore(pool)
	activityStore := activity.NewStore(pool)
	subStore := billing.NewStore(pool)
	usageStore := plan.NewStore(pool)

	planEngine := plan.NewEngine(subStore, usageStore)
	feed := activity.NewFeed(activityStore, reportStore)
	billingService := billing.NewService(subStore, teamStore, cfg.Stripe, logger)

	var storageClient *storage.Client
	if cfg.Storage.Endpoint != "" {
		storageClient, err = storage.NewClient(cfg.Storage)
		if err != nil {
			return err
		}
		if err := storageClient.EnsureBucket(ctx); err != nil {
			return err
		}
		slog.Info("object storage ready", "bucket", cfg.Storage.Bucket)
	} else {
		slog.Warn("object storage not configured, screenshot uploads disabled")
	}

	mailer := mail.NewSender(cfg.SMTP, cfg.Server.BaseURL)
	if !mailer.Enabled() {
		slog.Warn("smtp not configured, invite emails disabled")
	}

	m := metrics.New()
	m.RegisterDBPoolCollector(func() (total, idle, acquired int32) {
		stat := pool.Stat()
		return stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns()
	})

	toucher := presence.NewToucher(userStore, cfg.Presence.BatchSize, cfg.Presence.FlushInterval)
	toucher.OnFlush(m.ObservePresenceFlush)
	go toucher.Start(ctx)

	tokens := auth.NewTokens(cfg.Auth.TokenSecret, cfg.Auth.TokenValidity)
	limiter := ratelimit.New(cfg.RateLimit.AuthBurst, cfg.RateLimit.Window)

	router := api.NewRouter(api.RouterDeps{
		Users:          userStore,
		Teams:          teamStore,
		Sites:          siteStore,
		Reports:        reportStore,
		Activities:     activityStore,
		Feed:           feed,
		Plans:          planEngine,
		Billing:        billingService,
		Subs:           subStore,
		Storage:        storageClient,
		SiteNames:      sitename.NewFetcher(cfg.SiteFetch.Timeout),
		Mailer:         mailer,
		Toucher:        toucher,
		Tokens:         tokens,
		Limiter:        limiter,
		Metrics:        m,
		DBPool:         pool,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		BaseURL:        cfg.Server.BaseURL,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	toucher.Stop()

	return srv.Shutdown(shutdownCtx)
}
