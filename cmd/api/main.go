package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"campusnest/internal/config"
	"campusnest/internal/database"
	"campusnest/internal/gateway"
	"campusnest/internal/middleware"
	"campusnest/internal/modules/booking"
	"campusnest/internal/modules/notification"
	"campusnest/internal/modules/payment"
	"campusnest/internal/modules/reference"
	"campusnest/internal/modules/settlement"
	jwtsvc "campusnest/internal/pkg/jwt"
	"campusnest/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if config.IsProdLike(cfg.AppEnv) {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	loggerf := log.Printf

	bookingRepo := repository.NewBookingRepository(db)
	propertyRepo := repository.NewPropertyRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	rdb := config.NewRedisClient(cfg)
	if rdb != nil {
		defer rdb.Close()
	}
	allocator := reference.NewAllocator(cfg.ReferencePrefix, rdb, bookingRepo, loggerf)

	signer := gateway.NewSigner(cfg.GatewayMerchant, cfg.GatewayPassword1, cfg.GatewayPassword2)
	gw := gateway.NewHTTPClient(cfg.GatewayBaseURL, signer, cfg.GatewayTimeout, cfg.GatewayTestMode, loggerf)

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)

	hub := notification.NewHub()
	defer hub.Close()
	var publisher notification.EventPublisher
	if p := notification.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue, loggerf); p != nil {
		publisher = p
	}
	notificationService := notification.NewService(notificationRepo, hub, publisher, loggerf)
	notificationHandler := notification.NewHandler(notificationService, hub, j, loggerf)

	settlementService := settlement.NewService(settlementRepo, bookingRepo, loggerf)
	settlementHandler := settlement.NewHandler(settlementService, loggerf)

	refunds := payment.NewRefundDispatcher(paymentRepo, gw, cfg.GatewayTimeout, loggerf)
	bookingService := booking.NewService(bookingRepo, propertyRepo, allocator, refunds, settlementService, notificationService, loggerf)
	rates := booking.NewSettingsRateSource(settingsRepo, cfg.DefaultCommissionRate)
	bookingHandler := booking.NewHandler(bookingService, rates, loggerf)

	paymentService := payment.NewService(bookingService, paymentRepo, gw, refunds, notificationService, cfg.GatewayTimeout, loggerf)
	paymentHandler := payment.NewHandler(paymentService, signer, cfg.ReconcileAfter, loggerf)

	r := gin.New()
	r.Use(gin.Logger(), middleware.ErrorLogger(), middleware.CORS())

	v1 := r.Group("/api/v1")
	{
		// public: gateway callbacks, websocket (token in query), availability count
		paymentHandler.RegisterPublicRoutes(v1)
		notificationHandler.RegisterPublicRoutes(v1)
		bookingHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(j))
		{
			bookingHandler.RegisterRoutes(protected)
			paymentHandler.RegisterProtectedRoutes(protected)
			notificationHandler.RegisterRoutes(protected)

			landlord := protected.Group("")
			landlord.Use(middleware.RequireRole(jwtsvc.RoleLandlord))
			settlementHandler.RegisterLandlordRoutes(landlord)

			admin := protected.Group("/admin")
			admin.Use(middleware.AdminOnly())
			bookingHandler.RegisterAdminRoutes(admin)
			paymentHandler.RegisterAdminRoutes(admin)
			settlementHandler.RegisterAdminRoutes(admin)
		}
	}

	log.Printf("level=info msg=listening addr=%s env=%s", cfg.HTTPAddr, cfg.AppEnv)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatal(err)
	}
	notificationService.Wait()
}
