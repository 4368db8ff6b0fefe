package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"mealcard/internal/db"
	mealstore "mealcard/internal/meal/store"
	"mealcard/internal/platform/config"
	"mealcard/internal/platform/httpserver"
	"mealcard/internal/platform/logger"
	"mealcard/internal/platform/metrics"
	redisplatform "mealcard/internal/platform/redis"
	"mealcard/internal/roster/epoch"
	"mealcard/internal/roster/ports"
	"mealcard/internal/roster/snapshot"
	"mealcard/internal/roster/store"
	"mealcard/internal/scheduler"
	httptransport "mealcard/internal/transport/http"
	"mealcard/pkg/platform/audit"
	auditkafka "mealcard/pkg/platform/audit/kafka"

	mealservice "mealcard/internal/meal/service"
	"mealcard/internal/meal/service/finalizer"
	"mealcard/internal/roster/service/cascade"
	"mealcard/internal/roster/service/reconciler"
	"mealcard/internal/roster/service/secondary"
)

// main wires dependencies and keeps the process lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	handle, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer handle.Close()

	if err := db.RunMigrations(handle); err != nil {
		log.Error("run migrations", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	// Redis backs the epoch guard; without it the secondary sync corrects
	// person linkage unconditionally, matching the uncoordinated legacy
	// behavior.
	var guard ports.EpochGuard = epoch.NopGuard{}
	redisClient, err := redisplatform.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		guard = epoch.NewRedisGuard(redisClient.Client, cfg.EpochTTL)
	}

	var publisher audit.Publisher = audit.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := auditkafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	cardStore := store.NewPostgresCardStore(handle)
	personStore := store.NewPostgresPersonStore(handle)
	txRunner := store.NewPostgresTxRunner(handle)
	requestStore := mealstore.NewPostgresRequestStore(handle)

	cascadeSvc, err := cascade.New(personStore, requestStore,
		cascade.WithLogger(log),
		cascade.WithAuditPublisher(publisher),
	)
	if err != nil {
		log.Error("build cascade service", "error", err)
		os.Exit(1)
	}

	finalizerSvc, err := finalizer.New(requestStore,
		finalizer.WithLogger(log),
		finalizer.WithAuditPublisher(publisher),
	)
	if err != nil {
		log.Error("build finalizer", "error", err)
		os.Exit(1)
	}

	mealSvc, err := mealservice.New(requestStore, mealservice.WithLogger(log))
	if err != nil {
		log.Error("build meal service", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(m, log)

	if err := sched.Register(scheduler.Job{
		Name: "finalize",
		Spec: cfg.FinalizeSpec,
		Run: func(ctx context.Context) error {
			count, err := finalizerSvc.Run(ctx)
			m.RequestsFinalized.Add(float64(count))
			return err
		},
	}); err != nil {
		log.Error("register finalize job", "error", err)
		os.Exit(1)
	}

	if cfg.DirectoryURL != "" {
		directoryDB, err := db.Open(ctx, cfg.DirectoryURL)
		if err != nil {
			log.Error("open directory database", "error", err)
			os.Exit(1)
		}
		defer directoryDB.Close()

		reconcileSvc, err := reconciler.New(
			snapshot.NewSQLReader(directoryDB, "cards"),
			txRunner, cardStore, personStore, cascadeSvc,
			reconciler.WithLogger(log),
			reconciler.WithAuditPublisher(publisher),
			reconciler.WithEpochGuard(guard),
			reconciler.WithResponsibleMarker(cfg.ResponsibleMarker),
		)
		if err != nil {
			log.Error("build reconciler", "error", err)
			os.Exit(1)
		}
		if err := sched.Register(scheduler.Job{
			Name: "reconcile",
			Spec: cfg.ReconcileSpec,
			Run: func(ctx context.Context) error {
				report, err := reconcileSvc.Run(ctx)
				m.RecordsProcessed.WithLabelValues("reconcile").Add(float64(report.Processed))
				m.RecordFailures.WithLabelValues("reconcile").Add(float64(report.Failed))
				m.CardsRegistered.Add(float64(report.Registered))
				m.CardsRenamed.Add(float64(report.Renamed))
				m.CardsDeactivated.Add(float64(report.Deactivated))
				m.PersonsExpelled.Add(float64(report.Expelled))
				m.RequestsPurged.Add(float64(report.PurgedRequests))
				return err
			},
		}); err != nil {
			log.Error("register reconcile job", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("directory source not configured, reconcile job disabled")
	}

	if cfg.RegistryURL != "" {
		registryDB, err := db.Open(ctx, cfg.RegistryURL)
		if err != nil {
			log.Error("open registry database", "error", err)
			os.Exit(1)
		}
		defer registryDB.Close()

		secondarySvc, err := secondary.New(
			snapshot.NewSQLReader(registryDB, "cards"),
			txRunner, guard,
			secondary.WithLogger(log),
			secondary.WithAuditPublisher(publisher),
		)
		if err != nil {
			log.Error("build secondary sync", "error", err)
			os.Exit(1)
		}
		if err := sched.Register(scheduler.Job{
			Name: "secondary_sync",
			Spec: cfg.SecondarySpec,
			Run: func(ctx context.Context) error {
				report, err := secondarySvc.Run(ctx)
				m.RecordsProcessed.WithLabelValues("secondary_sync").Add(float64(report.Processed))
				m.RecordFailures.WithLabelValues("secondary_sync").Add(float64(report.Failed))
				return err
			},
		}); err != nil {
			log.Error("register secondary sync job", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("registry source not configured, secondary sync disabled")
	}

	sched.Start()
	defer sched.Stop()

	handlerOpts := []httptransport.HandlerOption{
		httptransport.WithHealthCheck("postgres", handle.PingContext),
	}
	if redisClient != nil {
		handlerOpts = append(handlerOpts, httptransport.WithHealthCheck("redis", redisClient.Health))
	}
	handler := httptransport.NewHandler(mealSvc, sched, handlerOpts...)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	log.Info("starting mealcard", "addr", cfg.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case <-quit:
		case <-gctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
