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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"marketplace/internal/auth"
	"marketplace/internal/backend"
	"marketplace/internal/cart"
	"marketplace/internal/catalog"
	"marketplace/internal/checkout"
	"marketplace/internal/config"
	"marketplace/internal/db"
	"marketplace/internal/downloads"
	"marketplace/internal/logger"
	"marketplace/internal/mail"
	"marketplace/internal/payments"
	"marketplace/internal/registration"
	"marketplace/internal/storage"
	"marketplace/internal/workspace"
)

const (
	imageConcurrency = 8
	sweepEvery       = 5 * time.Minute
	// workspaces backed by redis can leave memory early; they are restored on the next request
	persistedIdle = 30 * time.Minute
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(logger.Options{Service: "marketplace-bff", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connect failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Redis is optional: without it images are not cached and workspaces live in memory only.
	var (
		imageCache storage.ImageCache
		snapshots  workspace.SnapshotStore
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, continuing without it", slog.Any("err", err))
			_ = rdb.Close()
		} else {
			defer rdb.Close()
			adapter := storage.NewRedisAdapter(rdb)
			imageCache = adapter
			snapshots = adapter
			log.Info("connected to redis", slog.String("addr", cfg.RedisAddr))
		}
	}

	hc := &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSec) * time.Second}

	backendClient := backend.NewClient(cfg.BackendURL, hc, log)
	gotrue := auth.NewGoTrue(cfg.SupabaseURL, cfg.SupabaseAnonKey, hc, log)
	verifier := auth.NewVerifier(cfg.SupabaseJWTSecret)
	if !verifier.Enabled() {
		log.Warn("SUPABASE_JWT_SECRET not set, access tokens are not verified locally")
	}

	images := storage.NewImages(
		storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseAnonKey, hc),
		imageCache,
		cfg.PostImageBucket,
		time.Duration(cfg.ImageCacheTTLMin)*time.Minute,
		log,
	)

	mailer := mail.NewSMTPMailer(mail.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	})

	workspaceTTL := time.Duration(cfg.WorkspaceTTLHours) * time.Hour
	registry := workspace.NewRegistry(workspace.Deps{
		Checkout: backendClient,
		Registration: registration.Deps{
			Backend:       backendClient,
			Accounts:      payments.NewStripeAccounts(cfg.StripeSecretKey, nil, log),
			Options:       registration.NewRepo(pool),
			Mailer:        mailer,
			PayoutCountry: cfg.PayoutCountry,
			Log:           log,
		},
		Log: log,
	}, snapshots, workspaceTTL, log)

	idle := workspaceTTL
	if snapshots != nil {
		idle = persistedIdle
	}
	go sweep(ctx, registry, idle, log)

	// Handlers
	authHandler := auth.NewHandler(auth.Dependencies{
		Auth:        gotrue,
		Verifier:    verifier,
		DefaultLang: cfg.DefaultLang,
		Log:         log,
	})
	catHandler := catalog.NewHandler(catalog.NewService(catalog.NewRepo(pool), images, imageConcurrency, log), cfg.DefaultLang)
	cartHandler := cart.NewHandler()
	checkoutHandler := checkout.NewHandler(cfg.DefaultLang)
	regHandler := registration.NewHandler(cfg.DefaultLang)
	dlHandler := downloads.NewHandler(downloads.NewService(downloads.NewRepo(pool), log), cfg.DefaultLang)

	if cfg.AppEnv == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// Public catalog routes (no workspace needed)
	api := r.Group("/api")
	api.GET("/subjects", catHandler.ListSubjects)
	api.GET("/posts", catHandler.ListPosts)

	site := r.Group("/")
	site.Use(workspace.Middleware(registry, workspace.CookieConfig{
		Name:   cfg.SessionCookie,
		Secure: cfg.CookieSecure,
		TTL:    workspaceTTL,
	}))
	{
		site.POST("/session/login", authHandler.Login)
		site.POST("/session/logout", authHandler.Logout)
		site.GET("/session", authHandler.Me)

		// cart works for anonymous visitors too
		site.GET("/cart", cartHandler.GetMyCart)
		site.DELETE("/cart", cartHandler.Clear)
		site.POST("/cart/items", cartHandler.AddItem)
		site.PATCH("/cart/items", cartHandler.UpdateQty)
		site.DELETE("/cart/items/:id", cartHandler.RemoveItem)

		site.GET("/checkout", checkoutHandler.Status)
		site.POST("/checkout/cancel", checkoutHandler.Cancel)
		site.POST("/checkout/complete", checkoutHandler.Complete)

		// tokens go to the backend from here; anonymous visitors get the handlers' own 401
		fresh := site.Group("/")
		fresh.Use(auth.RefreshSession(gotrue, verifier, log))
		fresh.POST("/checkout", checkoutHandler.Start)
		fresh.GET("/provider/registration", regHandler.Get)
		fresh.PATCH("/provider/registration", regHandler.Patch)
		fresh.POST("/provider/registration", regHandler.Submit)

		protected := site.Group("/")
		protected.Use(auth.RequireSession(gotrue, verifier, cfg.DefaultLang, log))
		protected.GET("/downloads", dlHandler.List)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", slog.Any("err", err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", slog.Any("err", err))
	}
}

func sweep(ctx context.Context, reg *workspace.Registry, idle time.Duration, log *slog.Logger) {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := reg.Sweep(now, idle); n > 0 {
				log.Debug("evicted idle workspaces", slog.Int("count", n), slog.Int("live", reg.Len()))
			}
		}
	}
}
