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

	"golang.org/x/sync/errgroup"

	"profil/internal/audit"
	orgservice "profil/internal/organization/service"
	orgstore "profil/internal/organization/store/organization"
	"profil/internal/platform/config"
	"profil/internal/platform/httpserver"
	"profil/internal/platform/logger"
	platformpg "profil/internal/platform/postgres"
	platformredis "profil/internal/platform/redis"
	profileservice "profil/internal/profile/service"
	personstore "profil/internal/profile/store/person"
	"profil/internal/registry"
	"profil/internal/sync/checkpoint"
	"profil/internal/sync/engine"
	"profil/internal/sync/feed"
	"profil/internal/sync/job"
	syncmetrics "profil/internal/sync/metrics"
	"profil/internal/sync/models"
	httptransport "profil/internal/transport/http"
	"profil/pkg/verification"
)

// main wires the process: storage, sync jobs, the audit relay and the ops
// HTTP surface. Domain logic lives under internal/.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := platformpg.Open(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := platformpg.EnsureSchema(ctx, db); err != nil {
		log.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	organizations := orgstore.NewPostgres(db)
	persons := personstore.NewPostgres(db)
	checkpoints := checkpoint.NewPostgres(db)
	metrics := syncmetrics.New()

	auditStore := audit.NewPostgresStore(db)
	auditPub := audit.NewPublisher(auditStore)

	eng, err := engine.New(db, organizations, persons, checkpoints,
		engine.WithLogger(log),
		engine.WithMetrics(metrics),
	)
	if err != nil {
		log.Error("build engine", "error", err)
		os.Exit(1)
	}

	feedClient := feed.NewClient(feed.WithLogger(log))

	var locker job.Locker = job.NoopLocker{}
	if redisClient != nil {
		locker = job.NewRedisLocker(redisClient, 30*time.Minute)
	}

	jobs := make(map[models.SourceType]httptransport.Runner)
	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.AddressFeed.Enabled() {
		source := job.NewAddressSource(feedClient, eng, cfg.AddressFeed.Endpoint, cfg.AddressFeed.PageSize)
		addressJob, err := job.New(source, checkpoints,
			job.WithLocker(locker),
			job.WithLogger(log),
			job.WithMetrics(metrics),
			job.WithAudit(auditPub),
		)
		if err != nil {
			log.Error("build address sync job", "error", err)
			os.Exit(1)
		}
		jobs[models.SourceOrgAddresses] = addressJob
		group.Go(func() error {
			return runOnTicker(groupCtx, log, addressJob, string(models.SourceOrgAddresses), cfg.AddressFeed.Interval)
		})
	}

	if cfg.PersonFeed.Enabled() {
		source := job.NewPersonSource(feedClient, eng, cfg.PersonFeed.Endpoint, cfg.PersonFeed.PageSize)
		personJob, err := job.New(source, checkpoints,
			job.WithLocker(locker),
			job.WithLogger(log),
			job.WithMetrics(metrics),
			job.WithAudit(auditPub),
		)
		if err != nil {
			log.Error("build person sync job", "error", err)
			os.Exit(1)
		}
		jobs[models.SourcePersonContacts] = personJob
		group.Go(func() error {
			return runOnTicker(groupCtx, log, personJob, string(models.SourcePersonContacts), cfg.PersonFeed.Interval)
		})
	}

	if cfg.Kafka.Enabled() {
		producer, err := audit.NewKafkaProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		relay := audit.NewRelay(auditStore, producer, audit.WithRelayLogger(log))
		group.Go(func() error {
			err := relay.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	var addressService *orgservice.Service
	if cfg.RegistryUpdateEndpoint != "" {
		registryClient, err := registry.NewClient(cfg.RegistryUpdateEndpoint, registry.WithLogger(log))
		if err != nil {
			log.Error("build registry client", "error", err)
			os.Exit(1)
		}
		addressService, err = orgservice.New(db, organizations, registryClient, auditPub,
			orgservice.WithLogger(log),
		)
		if err != nil {
			log.Error("build organization service", "error", err)
			os.Exit(1)
		}
	}

	profileService, err := profileservice.New(persons, verification.NewBcryptHasher(0),
		profileservice.WithLogger(log),
	)
	if err != nil {
		log.Error("build profile service", "error", err)
		os.Exit(1)
	}

	deps := httptransport.Deps{
		DB:       db,
		Jobs:     jobs,
		Profiles: profileService,
		Log:      log,
	}
	if redisClient != nil {
		deps.Redis = redisClient
	}
	if addressService != nil {
		deps.Addresses = addressService
	}
	router := httptransport.NewRouter(deps)
	srv := httpserver.New(cfg.Addr, router)

	group.Go(func() error {
		log.Info("starting profil", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// runOnTicker runs one sync immediately, then on every interval tick until
// the context ends. A failed run is logged and retried on the next tick.
func runOnTicker(ctx context.Context, log *slog.Logger, runner httptransport.Runner, name string, interval time.Duration) error {
	run := func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("sync run failed", "source", name, "error", err)
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			run()
		}
	}
}
