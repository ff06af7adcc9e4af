package main

import (
	"context"
	"log"
	"time"

	"campusnest/internal/config"
	"campusnest/internal/database"
	"campusnest/internal/gateway"
	"campusnest/internal/modules/booking"
	"campusnest/internal/modules/notification"
	"campusnest/internal/modules/payment"
	"campusnest/internal/modules/reference"
	"campusnest/internal/modules/settlement"
	"campusnest/internal/repository"
)

// One-shot maintenance job meant for cron: completes ended leases, replays
// gateway state for stale payments and backfills missing ledger entries.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	loggerf := log.Printf

	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	var publisher notification.EventPublisher
	if p := notification.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue, loggerf); p != nil {
		publisher = p
	}
	notificationService := notification.NewService(repository.NewNotificationRepository(db), nil, publisher, loggerf)
	settlementService := settlement.NewService(repository.NewSettlementRepository(db), bookingRepo, loggerf)

	signer := gateway.NewSigner(cfg.GatewayMerchant, cfg.GatewayPassword1, cfg.GatewayPassword2)
	gw := gateway.NewHTTPClient(cfg.GatewayBaseURL, signer, cfg.GatewayTimeout, cfg.GatewayTestMode, loggerf)
	refunds := payment.NewRefundDispatcher(paymentRepo, gw, cfg.GatewayTimeout, loggerf)

	// no new bookings are created here, so the database sequence is enough
	allocator := reference.NewAllocator(cfg.ReferencePrefix, nil, bookingRepo, loggerf)
	bookingService := booking.NewService(bookingRepo, repository.NewPropertyRepository(db), allocator, refunds, settlementService, notificationService, loggerf)
	paymentService := payment.NewService(bookingService, paymentRepo, gw, refunds, notificationService, cfg.GatewayTimeout, loggerf)

	ctx := context.Background()
	now := time.Now().UTC()

	completed, err := bookingService.CompleteEndedLeases(ctx, now)
	if err != nil {
		log.Fatalf("complete ended leases failed: %v", err)
	}

	report, err := paymentService.ReconcilePending(ctx, now.Add(-cfg.ReconcileAfter))
	if err != nil {
		log.Fatalf("reconcile pending payments failed: %v", err)
	}

	backfilled, err := settlementService.Backfill(ctx)
	if err != nil {
		log.Fatalf("settlement backfill failed: %v", err)
	}

	notificationService.Wait()
	log.Printf("reconcile completed: leases_completed=%d report=%+v settlements_backfilled=%d", completed, report, backfilled)
}
