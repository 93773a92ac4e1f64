package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medjobs/leadmarket/internal/config"
	"github.com/medjobs/leadmarket/internal/infra/database"
	"github.com/medjobs/leadmarket/internal/infra/http/handlers"
	"github.com/medjobs/leadmarket/internal/infra/http/middleware"
	"github.com/medjobs/leadmarket/internal/infra/integration/stripe"
	"github.com/medjobs/leadmarket/internal/infra/mail"
	"github.com/medjobs/leadmarket/internal/infra/queue"
	"github.com/medjobs/leadmarket/internal/infra/worker"
	"github.com/medjobs/leadmarket/internal/logger"
	"github.com/medjobs/leadmarket/internal/ratelimit"
	"github.com/medjobs/leadmarket/internal/scoring"
	"github.com/medjobs/leadmarket/internal/spam"
	"github.com/medjobs/leadmarket/internal/usecase"
	"github.com/medjobs/leadmarket/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logg, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	if err := run(cfg, logg); err != nil {
		logg.Error("server exited", logger.Error(err))
		_ = logg.Sync()
		os.Exit(1)
	}
	_ = logg.Sync()
}

func run(cfg *config.Config, logg logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Database
	db, err := database.NewDBConnection(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	leadRepo := database.NewLeadRepository(db)
	listingRepo := database.NewListingRepository(db)
	purchaseRepo := database.NewPurchaseRepository(db)
	endpointRepo := database.NewWebhookEndpointRepository(db)

	// 2. Rate limit counter: Redis when configured, otherwise per process
	var (
		counter    ratelimit.Counter
		redisCheck func(context.Context) error
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		counter = ratelimit.NewRedisCounter(rdb)
		redisCheck = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		mem := ratelimit.NewMemoryCounter()
		go mem.RunCleanup(ctx, time.Minute)
		counter = mem
		logg.Warn("REDIS_ADDR not set, rate limiting is per instance")
	}

	// 3. Webhook dispatcher and its queue
	policy := webhook.DefaultRetryPolicy()
	policy.AttemptTimeout = cfg.WebhookTimeout
	dispatcher := webhook.NewDispatcher(endpointRepo, nil, policy, logg)
	dispatcher.OnResult = func(task webhook.Task, res webhook.Result) {
		middleware.RecordWebhookDelivery(task.Event, res.Success, res.Attempts)
	}

	var rabbitCheck func() bool
	if cfg.AMQPURL != "" {
		rabbitMQ, err := queue.NewRabbitMQ(cfg.AMQPURL, cfg.WebhookWorkers)
		if err != nil {
			return err
		}
		defer rabbitMQ.Close()

		pubCh, err := rabbitMQ.Conn.Channel()
		if err != nil {
			return err
		}
		dispatcher.SetQueue(queue.NewProducer(pubCh))

		consumer := queue.NewWorker(rabbitMQ.Ch, dispatcher, cfg.WebhookWorkers, logg)
		if err := consumer.Start(ctx, queue.QueueName); err != nil {
			return err
		}
		rabbitCheck = rabbitMQ.Healthy
	} else {
		inProcess := webhook.NewInProcessQueue(cfg.WebhookQueueCap, cfg.WebhookWorkers, dispatcher.DeliverFunc(), logg)
		dispatcher.SetQueue(inProcess)
		inProcess.Start(ctx)
		defer inProcess.Stop()
		logg.Warn("AMQP_URL not set, webhook deliveries do not survive restarts")
	}

	// 4. Gateways and adapters
	gateway := meteredGateway{stripe.NewClient(cfg.StripeAPIKey, cfg.StripeURL, cfg.GatewayTimeout)}

	var notifier usecase.HotLeadNotifier
	if cfg.MailHost != "" && cfg.SalesAlertEmail != "" {
		notifier = mail.NewEmailSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPassword, cfg.SalesAlertEmail)
	}

	// 5. Use cases
	scorer := scoring.NewEngine()
	submitLeadUC := usecase.NewSubmitLeadUseCase(
		ratelimit.NewLimiter(counter, cfg.RateLimitMax, cfg.RateLimitWindow, logg),
		spam.NewClassifier(),
		usecase.NewResolver(leadRepo, cfg.DedupWindow),
		leadRepo,
		scorer,
		dispatcher,
		notifier,
		logg,
	)
	manageLeadUC := usecase.NewManageLeadUseCase(leadRepo, listingRepo, scorer, dispatcher, logg)
	createListingUC := usecase.NewCreateListingUseCase(leadRepo, listingRepo, dispatcher, logg)
	marketplaceUC := usecase.NewMarketplaceUseCase(listingRepo, purchaseRepo, cfg.PaymentCurrency)
	purchaseUC := usecase.NewPurchaseLeadUseCase(listingRepo, purchaseRepo, gateway, cfg.PaymentCurrency, logg)
	completeUC := usecase.NewCompletePurchaseUseCase(purchaseRepo, leadRepo, gateway, dispatcher, logg)
	registerWebhookUC := usecase.NewRegisterWebhookUseCase(endpointRepo)

	// 6. Background workers
	sweeper := worker.NewListingExpirationWorker(listingRepo, cfg.ListingSweepInterval, logg, middleware.RecordListingsExpired)
	go sweeper.Start(ctx)

	// 7. Handlers
	leadHandler := handlers.NewLeadHandler(submitLeadUC, handlers.NewClientIP(cfg.TrustedProxies), logg)
	marketHandler := handlers.NewMarketplaceHandler(marketplaceUC, purchaseUC, completeUC, logg)
	adminHandler := handlers.NewAdminHandler(manageLeadUC, createListingUC, registerWebhookUC, logg)
	healthHandler := handlers.NewHealthHandler(db, redisCheck, rabbitCheck)

	// 8. Router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", middleware.HeaderBuyerID, middleware.HeaderAdminToken},
		MaxAge:         300,
	}))

	r.Get("/health", healthHandler.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/leads", leadHandler.CaptureLead)

	r.Route("/marketplace", func(r chi.Router) {
		r.Use(middleware.Buyer)
		r.Get("/listings", marketHandler.Browse)
		r.Get("/listings/{leadId}", marketHandler.GetListing)
		r.Get("/purchases", marketHandler.ListPurchases)
		r.Post("/purchases", marketHandler.CreatePurchase)
		r.Post("/purchases/{purchaseId}/complete", marketHandler.CompletePurchase)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminOnly(cfg.AdminToken))
		r.Get("/leads/{id}", adminHandler.GetLead)
		r.Patch("/leads/{id}/status", adminHandler.UpdateLeadStatus)
		r.Post("/leads/{id}/rescore", adminHandler.RescoreLead)
		r.Delete("/leads/{id}", adminHandler.DeleteLead)
		r.Post("/listings", adminHandler.CreateListing)
		r.Post("/webhooks", adminHandler.RegisterWebhook)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("server listening", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
