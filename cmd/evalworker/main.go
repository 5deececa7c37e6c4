package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sakaicontrib/evaluation-sub013/v1/bus"
	"github.com/sakaicontrib/evaluation-sub013/v1/dispatch"
	"github.com/sakaicontrib/evaluation-sub013/v1/lock"
	"github.com/sakaicontrib/evaluation-sub013/v1/metrics"
	"github.com/sakaicontrib/evaluation-sub013/v1/schedule"
	"github.com/sakaicontrib/evaluation-sub013/v1/store"
	"github.com/sakaicontrib/evaluation-sub013/v1/watch"
)

const bootstrapLockName = "evalworker:bootstrap"

var (
	configPath = flag.String("config", "", "Path to the TOML config file")
	listenAddr = flag.String("listen", "", "Listen address, overrides the config file")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "evalworker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Str("app", "evalworker").Logger()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(sqlite.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	evalStore := store.NewGorm(db)
	sched := schedule.NewGormScheduler(db)
	transitions := schedule.NewTransitions(sched, schedule.WithLogger(log))

	var (
		eventBus bus.Bus
		locker   lock.Locker
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		eventBus = bus.NewRedisBus(client)
		locker = lock.NewRedis(client)
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis bus and locker")
	} else {
		eventBus = bus.NewInMemoryBus()
		locker = lock.NewGorm(db, lock.WithGormLogger(log))
	}

	dispatcher := dispatch.New(evalStore, transitions, logNotifier{log: log},
		dispatch.WithBus(eventBus),
		dispatch.WithLogger(log),
	)

	if cfg.Bootstrap {
		if err := bootstrap(ctx, log, locker, evalStore, transitions); err != nil {
			return err
		}
	}

	registry := metrics.NewRegistry()
	metrics.RegisterCoreMetrics(registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/watch", watch.SSEHandler(eventBus))
	mux.HandleFunc("/watch/ws", watch.WebSocketHandler(eventBus))
	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	pump := schedule.NewPump(sched, dispatcher,
		schedule.WithPumpInterval(cfg.PumpInterval),
		schedule.WithPumpBatch(cfg.PumpBatch),
		schedule.WithPumpLogger(log),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Dur("interval", cfg.PumpInterval).Msg("pump started")
		err := pump.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http server started")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("evalworker stopped")
	return nil
}

// bootstrap reconciles every live evaluation's pending invocations once at
// startup, healing anything missed while no worker was running. The
// distributed lock keeps it a cluster singleton; a denied obtain means
// another node is already on it.
func bootstrap(ctx context.Context, log zerolog.Logger, locker lock.Locker, evalStore store.EvaluationStore, transitions *schedule.Transitions) error {
	holder := lock.NewHolderID("evalworker")
	status, err := lock.RunExclusive(ctx, locker, bootstrapLockName, holder, func(ctx context.Context) error {
		evals, err := evalStore.All(ctx)
		if err != nil {
			return err
		}
		fixed := 0
		for _, e := range evals {
			if err := transitions.OnUpdate(ctx, e); err != nil {
				log.Warn().Int64("evaluation", e.ID).Err(err).Msg("bootstrap fixup failed")
				continue
			}
			fixed++
		}
		log.Info().Int("evaluations", fixed).Msg("bootstrap fixup done")
		return nil
	})
	if err != nil {
		return fmt.Errorf("bootstrap fixup: %w", err)
	}
	if status == lock.StatusDenied {
		log.Info().Msg("bootstrap fixup already running on another node")
	}
	return nil
}
