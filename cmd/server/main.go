package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"techwire-be/internal/admin"
	"techwire-be/internal/auth"
	"techwire-be/internal/category"
	"techwire-be/internal/client"
	"techwire-be/internal/config"
	"techwire-be/internal/db"
	"techwire-be/internal/logger"
	"techwire-be/internal/middleware"
	"techwire-be/internal/notify"
	"techwire-be/internal/order"
	"techwire-be/internal/payment"
	"techwire-be/internal/payment/webhook"
	"techwire-be/internal/product"
	"techwire-be/internal/stock"
	"techwire-be/internal/storage"
	"techwire-be/internal/telemetry"
	"techwire-be/internal/transport"
	"techwire-be/internal/upload"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	notifyTimeout  = 15 * time.Second
	notifyAttempts = 3
	shutdownGrace  = 20 * time.Second
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv, cfg.LogLevel)
	defer logger.Sync()
	log := logger.L()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "techwire-be",
		Version:     "1.0.0",
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		log.Fatal("failed to init telemetry", zap.Error(err))
	}

	database := db.InitDB(cfg)
	defer database.Close()
	txm := db.NewTxManager(database)

	blobs, err := storage.NewOSStore(cfg.BlobRoot, cfg.BlobBaseURL)
	if err != nil {
		log.Fatal("failed to open blob storage", zap.Error(err))
	}

	adminRepo := admin.NewRepository(database)

	// Order mail goes to every admin address on file.
	notifiers := []notify.Notifier{notify.NewMailer(notify.MailerConfig{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		User:        cfg.SMTPUser,
		Password:    cfg.SMTPPassword,
		From:        cfg.SMTPFrom,
		FrontendURL: cfg.FrontendURL,
	}, adminRepo)}

	if len(cfg.KafkaBrokers) > 0 {
		cl, err := notify.NewKafkaClient(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Warn("kafka unavailable, order events disabled", zap.Error(err))
		} else {
			kp := notify.NewKafkaPublisher(cl)
			defer kp.Close()
			notifiers = append(notifiers, kp)
		}
	}
	dispatcher := notify.NewDispatcher(notifyTimeout, notifyAttempts, notifiers...)

	clientTokens := auth.NewJWT(cfg.JWTSecret, cfg.ClientTokenTTL)
	adminTokens := auth.NewJWT(cfg.AdminJWTSecret, 0)

	clientRepo := client.NewRepository(database)
	clientSvc := client.NewService(clientRepo, clientTokens)

	adminSvc := admin.NewService(adminRepo, dispatcher)

	stockRepo := stock.NewRepository()
	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, stockRepo, clientRepo, txm, dispatcher, order.Options{
		AcquireWait: cfg.OrderTxAcquireWait,
		Timeout:     cfg.OrderTxTimeout,
	})

	gateway := payment.NewRazorpayGateway(cfg.PaymentBaseURL, cfg.PaymentKeyID, cfg.PaymentSecret)
	paymentSvc := payment.NewService(orderRepo, stockRepo, clientRepo, txm, gateway, dispatcher, payment.Options{
		Secret:      cfg.PaymentSecret,
		Currency:    cfg.PaymentCurrency,
		AcquireWait: cfg.OrderTxAcquireWait,
		Timeout:     cfg.OrderTxTimeout,
	})

	productSvc := product.NewService(product.NewRepository(database), txm, blobs)
	uploadSvc := upload.NewService(upload.NewRepository(database), blobs, dispatcher)

	guards := transport.Guards{
		Client: middleware.ClientAuth(clientTokens),
		Admin:  middleware.AdminAuth(adminTokens, adminSvc),
		Super:  middleware.SuperAdminOnly,
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.InternalServiceKey)
		guards.Strict = limiter.Strict
		go limiter.Run(ctx)
	}

	deps := routerDeps{
		Guards:      guards,
		Limiter:     limiter,
		CORSOrigins: cfg.CORSOrigins,
		Modules: []module{
			client.NewHandler(clientSvc, clientTokens, cfg.CookieSecure),
			admin.NewHandler(adminSvc),
			product.NewHandler(productSvc),
			category.NewHandler(category.NewService(category.NewRepository(database))),
			order.NewHandler(orderSvc),
			payment.NewHandler(paymentSvc),
			upload.NewHandler(uploadSvc),
		},
		Media: http.FileServer(afero.NewHttpFs(blobs.Fs())),
	}
	if cfg.PaymentWebhookSecret != "" {
		deps.Webhook = webhook.NewHandler(paymentSvc, cfg.PaymentWebhookSecret)
	} else {
		log.Info("payment webhook disabled: no webhook secret configured")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           setupRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	uploadSvc.Wait()
	dispatcher.Wait()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error("telemetry shutdown", zap.Error(err))
	}
}
