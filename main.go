package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mileage-redemption-system/config"
	"mileage-redemption-system/handlers"
	"mileage-redemption-system/middleware"
	"mileage-redemption-system/models"
	"mileage-redemption-system/services"
	"mileage-redemption-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	if cfg.ServiceToken == "" {
		log.Fatal("SERVICE_TOKEN environment variable not set — service cannot authenticate Gateway")
	}

	app := fiber.New(fiber.Config{})

	// Only Gateway requests allowed — no exceptions.
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, X-User-ID, X-User-Roles, X-Merchant-ID, X-Risk-IP-Anonymized, X-Risk-IP-Blacklisted",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.Merchant{},
		&models.LedgerEntry{},
		&models.RedemptionToken{},
		&models.Coupon{},
		&models.Settlement{},
		&models.ReferralLink{},
		&models.SignupAttempt{},
		&models.PromoEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	notifier := services.NewNotifier(256)

	ledgerService := services.NewLedgerService(db)
	tokenService := services.NewTokenService(db, cfg.TokenSigningSecret, cfg.TokenTTL())
	settlementService := services.NewSettlementService(db, notifier, cfg.EventCouponGovernmentRatio)
	couponService := services.NewCouponService(db)
	eventRegistry := services.NewEventRegistry(db)

	riskWeights := services.DefaultRiskWeights
	riskWeights.BlockThreshold = cfg.RiskBlockThreshold
	riskScorer := services.NewRiskScorer(db, riskWeights)

	signupService := services.NewSignupService(db, ledgerService, riskScorer, eventRegistry, notifier, cfg)
	redeemService := services.NewRedeemService(db, tokenService, ledgerService, settlementService, notifier)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RabbitMQURL != "" {
		notifyWorker := workers.NewNotifyWorker(notifier, cfg.RabbitMQURL, cfg.NotifyExchange)
		go notifyWorker.Run(ctx)
	} else {
		log.Println("RABBITMQ_URL not set — notifications will be dropped")
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-notifier.Events():
				}
			}
		}()
	}

	services.StartMaintenanceScheduler(tokenService, eventRegistry, cfg.TokenRetention())

	handlers.SetupAccountRoutes(app, signupService, ledgerService, tokenService, couponService)
	handlers.SetupMerchantRoutes(app, redeemService)
	handlers.SetupAdminRoutes(app, settlementService, eventRegistry, couponService, ledgerService)

	go func() {
		if err := app.Listen(":" + cfg.ServerPort); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("Server running on http://localhost:%s", cfg.ServerPort)
	log.Println("Maintenance scheduler running (token retention + promo event sweeps)")
	log.Println("GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("CORS configured for origins: %s", cfg.AllowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}
