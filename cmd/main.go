package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"ticketflow/cmd/buildCFG"
	"ticketflow/cmd/middleware"
	"ticketflow/internal/api/api"
	"ticketflow/internal/auth"
	rabbitReader "ticketflow/internal/consumerWorker"
	"ticketflow/internal/idempotency"
	"ticketflow/internal/mailer"
	"ticketflow/internal/payment"
	"ticketflow/internal/rabbit"
	"ticketflow/internal/repo"
	"ticketflow/internal/repo/memory"
	"ticketflow/internal/service"
	"ticketflow/internal/ticket"
)

func main() {
	_ = godotenv.Load()

	zlog.Init()
	log := zlog.Logger

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", ""); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repository := openRepository(ctx, cfg, serverCfg, &log)

	rdb := idempotency.NewClient(buildCFG.BuildRedisConfig(cfg), &log)
	var dedup idempotency.Store = idempotency.Noop{}
	if rdb != nil {
		defer rdb.Close()
		prefix, ttl := buildCFG.BuildDedupConfig(cfg)
		dedup = idempotency.New(rdb, prefix, ttl)
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var notifier service.Notifier
	var reader *rabbitReader.Reader
	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Warn().Err(err).Msg("confirmation e-mails disabled")
	} else if rmq, err := rabbit.NewRabbit(rabbitCfg); err != nil {
		log.Warn().Err(err).Msg("RabbitMQ unavailable, confirmation e-mails disabled")
	} else {
		defer rmq.Close()
		smtpMailer := mailer.New(buildCFG.BuildSMTPConfig(cfg), &log)
		reader = rabbitReader.NewReader(rmq, smtpMailer, buildCFG.BuildWorkerConfig(cfg).MaxAttempts)
		go reader.Start(workerCtx)
		notifier = mailer.NewDispatcher(rmq, &log)
	}

	paymentCfg, err := buildCFG.BuildPaymentConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load payment config")
	}
	webhookCfg, err := buildCFG.BuildWebhookConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load webhook config")
	}

	serviceInstance := service.NewService(service.Deps{
		Store:    repository,
		Gateway:  payment.NewClient(paymentCfg, &log),
		Tickets:  ticket.NewQRIssuer(buildCFG.BuildTicketConfig(cfg).QRSize),
		Notifier: notifier,
		Dedup:    dedup,
		Log:      &log,
	}, service.Config{
		Currency:   serverCfg.Currency,
		BcryptCost: serverCfg.BcryptCost,
	})

	routers := &api.Routers{
		Service:  serviceInstance,
		Webhooks: payment.NewWebhookVerifier(webhookCfg.Secret, webhookCfg.Tolerance),
		Limiter:  middleware.RateLimit(rdb, buildCFG.BuildRateLimitConfig(cfg)),
		Mode:     serverCfg.Mode,
	}
	if authCfg := buildCFG.BuildAuthConfig(cfg, &log); authCfg.JWTSecret != "" {
		routers.Auth = auth.NewVerifier(authCfg.JWTSecret)
	}

	srv := &http.Server{
		Addr:         ":" + serverCfg.Port,
		Handler:      api.NewRouters(routers),
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err := <-serverErrChan:
		log.Error().Err(err).Msg("server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down server")
	}

	cancelWorkers()
	if reader != nil {
		reader.Stop()
	}

	if cfg.GetBool("database.migrate_down_on_exit") {
		log.Info().Msg("Rolling back migrations...")
		if err := repository.MigrateDown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to rollback migrations")
		}
	}
	log.Info().Msg("Shutdown complete")
}

func openRepository(ctx context.Context, cfg *config.Config, serverCfg buildCFG.ServerConfig, log *zerolog.Logger) repo.Repository {
	if serverCfg.Storage == buildCFG.StorageMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return memory.New()
	}

	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		log.Fatal().Msgf("failed to connect to DB: %v", err)
	}
	if err := db.Master.PingContext(ctx); err != nil {
		log.Fatal().Msgf("DB ping failed: %v", err)
	}
	log.Info().Msg("Database connected successfully")

	repository, err := repo.NewRepository(db, log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	if err := repository.MigrateUp(ctx); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations applied successfully")
	return repository
}
