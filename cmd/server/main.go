// Command server runs the ticket lottery backend: public catalog and auth
// routes, the authenticated storefront, and the admin draw/gate surface,
// plus the deadline sweeper and the outbox worker as background tasks.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"stagepass/internal/auth/device"
	authhandler "stagepass/internal/auth/handler"
	authservice "stagepass/internal/auth/service"
	authstore "stagepass/internal/auth/store"
	drawhandler "stagepass/internal/draw/handler"
	drawmetrics "stagepass/internal/draw/metrics"
	drawservice "stagepass/internal/draw/service"
	eventhandler "stagepass/internal/event/handler"
	eventservice "stagepass/internal/event/service"
	eventstore "stagepass/internal/event/store"
	"stagepass/internal/identity"
	identityhandler "stagepass/internal/identity/handler"
	identitymetrics "stagepass/internal/identity/metrics"
	"stagepass/internal/jwtauth"
	"stagepass/internal/outbox"
	"stagepass/internal/platform/config"
	"stagepass/internal/platform/httpserver"
	"stagepass/internal/platform/kafka"
	"stagepass/internal/platform/logger"
	"stagepass/internal/platform/metrics"
	"stagepass/internal/platform/middleware"
	platformredis "stagepass/internal/platform/redis"
	reghandler "stagepass/internal/registration/handler"
	regmetrics "stagepass/internal/registration/metrics"
	regservice "stagepass/internal/registration/service"
	regstore "stagepass/internal/registration/store"
	tickethandler "stagepass/internal/ticket/handler"
	ticketmetrics "stagepass/internal/ticket/metrics"
	ticketservice "stagepass/internal/ticket/service"
	ticketstore "stagepass/internal/ticket/store"
	transporthttp "stagepass/internal/transport/http"
	txcontext "stagepass/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.New()
	registrationMetrics := regmetrics.New()
	drawMetrics := drawmetrics.New()
	ticketMetrics := ticketmetrics.New()

	// Stores: Postgres when configured, in-memory for development. The
	// memory mode seeds a demo event so the storefront works out of the box.
	var (
		userStore   authservice.UserStore
		eventStore  eventservice.EventStore
		regStore    regservice.RegistrationStore
		ticketStore ticketservice.TicketStore
		resolver    identity.TicketResolver
		outboxStore *regstore.Outbox
		txRunner    regservice.StoreTx = txcontext.NopRunner{}
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		userStore = authstore.NewPostgres(db)
		eventStore = eventstore.NewPostgres(db)
		regStore = regstore.NewPostgres(db)
		pgTickets := ticketstore.NewPostgres(db)
		ticketStore, resolver = pgTickets, pgTickets
		outboxStore = regstore.NewOutbox(db)
		txRunner = txcontext.NewRunner(db)
		log.Info("using postgres storage")
	} else {
		userStore = authstore.NewInMemory()
		events := eventstore.NewInMemory()
		seeded := eventstore.SeedDemoEvent(events)
		eventStore = events
		regStore = regstore.NewInMemory()
		memTickets := ticketstore.NewInMemory()
		ticketStore, resolver = memTickets, memTickets
		log.Info("using in-memory storage", "seeded_event_id", seeded.ID.String())
	}

	jwtService := jwtauth.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	authSvc := authservice.NewAuthService(userStore, jwtService, device.NewService(true), cfg.AccessTokenTTL, log)
	eventSvc := eventservice.NewEventService(eventStore, log)

	ticketSvc := ticketservice.NewTicketService(ticketStore, authSvc, nil, log, ticketMetrics)
	regOpts := []regservice.Option{
		regservice.WithLogger(log),
		regservice.WithMetrics(registrationMetrics),
		regservice.WithTx(txRunner),
		regservice.WithTicketIssuer(ticketSvc),
	}
	if outboxStore != nil {
		regOpts = append(regOpts, regservice.WithPublisher(outboxStore))
	}
	regSvc := regservice.NewRegistrationService(regStore, eventSvc, regOpts...)
	ticketSvc.BindRegistrations(regSvc)

	// The draw lock is distributed only when Redis is configured; a single
	// dev process is safe with the in-process fallback.
	var locker drawservice.Locker = drawservice.NewLocalLocker()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = drawservice.NewRedisLocker(redisClient)
		log.Info("using redis draw lock")
	}
	drawSvc := drawservice.NewDrawService(regSvc, eventSvc,
		drawservice.WithLogger(log),
		drawservice.WithLocker(locker),
		drawservice.WithMetrics(drawMetrics),
		drawservice.WithPaymentGrace(cfg.Draw.PaymentGrace),
		drawservice.WithLockTTL(cfg.Draw.LockTTL),
	)
	sweeper := drawservice.NewSweeper(regSvc, cfg.Draw.SweepInterval, log, drawMetrics)

	handlers := transporthttp.Handlers{
		AuthPublic:    authhandler.New(authSvc, log).RegisterPublic,
		AuthProtected: authhandler.New(authSvc, log).RegisterProtected,
		Events:        eventhandler.New(eventSvc, log),
		EventsAdmin:   eventhandler.New(eventSvc, log).RegisterAdmin,
		Registrations: reghandler.New(regSvc, log),
		Tickets:       tickethandler.New(ticketSvc, log),
		TicketsAdmin:  tickethandler.New(ticketSvc, log).RegisterAdmin,
		Draws:         drawhandler.New(drawSvc, log),
	}
	if cfg.Verifier.BaseURL != "" {
		client := identity.NewClient(cfg.Verifier.BaseURL,
			identity.WithHTTPClient(&http.Client{Timeout: cfg.Verifier.Timeout}),
			identity.WithClientLogger(log),
		)
		verifySvc := identity.NewVerificationService(client, resolver, log, identitymetrics.New())
		handlers.IdentityAdmin = identityhandler.New(verifySvc, log).RegisterAdmin
		log.Info("identity verification enabled", "verifier_url", cfg.Verifier.BaseURL)
	}

	router := transporthttp.NewRouter(handlers, transporthttp.Options{
		Logger:     log,
		Metrics:    httpMetrics,
		Auth:       middleware.RequireAuth(jwtauth.NewJWTServiceAdapter(jwtService), log),
		AdminToken: middleware.RequireAdminToken(cfg.AdminToken, log),
	})
	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		return sweeper.Run(ctx)
	})

	if outboxStore != nil {
		publisher, err := kafka.NewPublisher(ctx, cfg.Kafka)
		if err != nil {
			return err
		}
		if publisher != nil {
			defer publisher.Close()
			worker := outbox.NewWorker(outboxStore, publisher, log,
				outbox.WithMetrics(outbox.NewMetrics()),
			)
			group.Go(func() error {
				return worker.Run(ctx)
			})
			log.Info("outbox worker started", "topic", publisher.Topic())
		}
	}

	return group.Wait()
}
