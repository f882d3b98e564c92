package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/auth"
	"storefront/internal/broker"
	"storefront/internal/gateway"
	"storefront/internal/mailer"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront")

	tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicOrder))

	eventPublisher := broker.NewEventPublisher(producer)

	paymentGateway, err := gateway.NewClient(cfg.Gateway.KeyID, cfg.Gateway.KeySecret, gateway.WithBaseURL(cfg.Gateway.BaseURL))
	if err != nil {
		logger.Fatal("Failed to configure payment gateway", zap.Error(err))
	}

	sender, err := mailer.NewSender(cfg.Mail)
	if err != nil {
		logger.Fatal("Failed to load mail templates", zap.Error(err))
	}

	sealer, err := auth.NewSealer(cfg.Auth.SecretsKey)
	if err != nil {
		logger.Fatal("Invalid SECRETS_KEY", zap.Error(err))
	}
	hasher := auth.NewBcrypt(0)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, "storefront")

	otp := service.NewOTPManager(redisClient, cfg.Business.OTPTTL)
	accountService := service.NewAccountService(db, otp, sender, hasher, tokens, cfg.Auth.UserTokenTTL)
	adminService := service.NewAdminService(db, sealer, hasher, tokens, otp, sender, cfg.Auth.AdminTokenTTL)
	sender.UseCredentials(adminService.MailCredentials)

	areaService := service.NewAreaService(db, db, cfg.Business.DefaultRadius)
	addressService := service.NewAddressService(db, db, areaService, cfg.Business.DefaultCountry)
	catalogService := service.NewCatalogService(db)
	cartService := service.NewCartService(db, db)
	chargeService := service.NewChargeService(db)
	promoService := service.NewPromoService(db)
	checkoutService := service.NewCheckoutService(cartService, addressService, areaService, chargeService, promoService)
	orderService := service.NewOrderService(db, db, addressService, redisClient, redisClient, paymentGateway, eventPublisher, cfg.Business.RefundLockTTL)
	paymentService := service.NewPaymentService(db, paymentGateway, eventPublisher, paymentGateway.Secret(), cfg.Business.Currency)
	notificationService := service.NewNotificationService(db, adminService, sender)
	dashboardService := service.NewDashboardService(db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(consumer, service.NewEventProcessor(db, notificationService))
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			logger.Error("Notification worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Accounts:      accountService,
		Admin:         adminService,
		Areas:         areaService,
		Addresses:     addressService,
		Catalog:       catalogService,
		Cart:          cartService,
		Charges:       chargeService,
		Promos:        promoService,
		Checkout:      checkoutService,
		Orders:        orderService,
		Payments:      paymentService,
		Notifications: notificationService,
		Dashboard:     dashboardService,
	}, tokens, cfg.Server.AllowedOrigins, map[string]api.Pinger{
		"postgres": db,
		"redis":    redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	notificationWorker.Stop()

	logger.Info("Server exited")
}
