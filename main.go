package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"rata-backend/config"
	"rata-backend/database"
	"rata-backend/handlers"
	"rata-backend/logger"
	"rata-backend/middleware"
	"rata-backend/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.GetLogger()
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis (optional): cross-instance change feed and webhook dedup
	var (
		feed       database.ChangeFeed
		deliveries database.DeliveryLog
	)
	if client := database.ConnectRedis(ctx, cfg.RedisURL); client != nil {
		defer client.Close()
		feed = database.NewRedisNotifier(client)
		deliveries = database.NewRedisDeliveryLog(client)
	} else {
		feed = database.NewLocalFeed()
		deliveries = database.NewMemoryDeliveryLog()
	}

	// Store
	var store database.Store
	if cfg.UsesMemoryStore() {
		log.Warn("DATABASE_URL not set, data is kept in memory only")
		store = database.NewMemoryStore(feed)
	} else {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalw("Failed to connect to database", "error", err)
		}
		store = database.NewPostgresStore(db, feed)
	}
	defer store.Close()

	// Identity and push
	var (
		verifier middleware.Verifier
		push     services.PushSender
	)
	if cfg.FirebaseCredPath != "" {
		app, err := services.NewFirebaseApp(ctx, cfg.FirebaseCredPath)
		if err != nil {
			log.Fatalw("Failed to initialize Firebase", "error", err)
		}
		fv, err := middleware.NewFirebaseVerifier(ctx, app)
		if err != nil {
			log.Fatalw("Failed to initialize Firebase auth", "error", err)
		}
		verifier = fv
		if sender, err := services.NewFirebasePushSender(ctx, app); err != nil {
			log.Warnw("Push notifications disabled", "error", err)
		} else {
			push = sender
		}
	} else {
		jv, err := middleware.NewJWTVerifier(cfg.JWTSecret)
		if err != nil {
			log.Fatalw("Either FIREBASE_CREDENTIALS or JWT_SECRET must be configured", "error", err)
		}
		verifier = jv
		log.Info("Firebase not configured, verifying HS256 session tokens")
	}

	var mailer services.Mailer
	if cfg.SendGridAPIKey != "" {
		mailer = services.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridFrom, cfg.AppName)
	} else {
		log.Info("SendGrid not configured, invitation emails disabled")
	}
	notifier := services.NewNotificationService(store, push, mailer, cfg.AppName, cfg.AppURL)

	var blob services.BlobStorage
	if cfg.UploadsEnabled() {
		blob = services.NewS3BlobStorage(services.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
	} else {
		log.Info("S3 not configured, file uploads disabled")
	}

	var gateway services.PaymentGateway
	if cfg.MercadoPagoToken != "" {
		mp, err := services.NewMercadoPagoGateway(cfg.MercadoPagoBaseURL, cfg.MercadoPagoToken)
		if err != nil {
			log.Fatalw("Failed to initialize MercadoPago", "error", err)
		}
		gateway = mp
	} else {
		log.Info("MercadoPago not configured, payment links disabled")
	}

	h := handlers.New(handlers.Deps{
		AppName:        cfg.AppName,
		Users:          services.NewUserService(store),
		Membership:     services.NewMembershipService(store, notifier, cfg.RequireExpenseReceipt),
		Settlement:     services.NewSettlementService(store, store, notifier),
		Ledger:         services.NewLedgerService(store, store, notifier),
		Lifecycle:      services.NewLifecycleService(store, store),
		Bills:          services.NewBillService(store, store, gateway, cfg.AppURL, cfg.PaymentCurrency),
		Reconciliation: services.NewReconciliationService(store, gateway, deliveries),
		Uploads:        services.NewUploadService(blob, cfg.MaxUploadBytes),
		Feed:           feed,
	})

	// Setup router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	h.RegisterRoutes(r, middleware.AuthRequired(verifier))

	// Start server
	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("Server starting", "app", cfg.AppName, "addr", srv.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server forced to shutdown", "error", err)
	}
}
