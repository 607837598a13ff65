package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/adapters/cache"
	eventadapter "github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/adapters/events"
	grpcadapter "github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/adapters/grpc"
	httpadapter "github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/adapters/http"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/adapters/metrics"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/adapters/security"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/directory"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	outbox     *eventadapter.OutboxWorker
	// inProcessOutbox is set on the memory store, where no separate worker can
	// see the outbox.
	inProcessOutbox bool
	cleanupFn       func(context.Context)
}

type storage struct {
	users   ports.UserStore
	outbox  ports.OutboxRepository
	ping    func(context.Context) error
	closeFn func()
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	var closers []io.Closer
	cleanup := func() {
		for _, closer := range closers {
			_ = closer.Close()
		}
		store.closeFn()
	}

	var limiter ports.Cache
	pingRedis := func(context.Context) error { return nil }
	if cfg.RedisURL != "" {
		redisClient, redisErr := cache.Connect(ctx, cfg.RedisURL)
		if redisErr != nil {
			cleanup()
			return nil, redisErr
		}
		closers = append(closers, redisClient)
		limiter = cache.NewRedisCache(redisClient)
		pingRedis = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.WarnContext(ctx, "REDIS_URL not set, lookup rate limiting disabled")
	}

	verifier, err := security.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		cleanup()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:      cfg.ServiceID,
			LookupRateLimit:  cfg.LookupRateLimit,
			LookupRateWindow: cfg.LookupRateWindow,
		},
		Users:   store.users,
		Outbox:  store.outbox,
		Cache:   limiter,
		Tokens:  verifier,
		Metrics: metrics.New(registry),
		Logger:  logger,
	})
	api := directory.NewAPI(service, logger)

	readiness := func(ctx context.Context) error {
		if err := store.ping(ctx); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		if err := pingRedis(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}
	handler := httpadapter.NewHandler(service, api, registry, readiness)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcadapter.LoggingInterceptor(logger)))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewUserDirectoryServer(api))

	publisher := ports.EventPublisher(eventadapter.NewLoggingPublisher(logger))
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicEvents, cfg.KafkaTopicByType)
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using logging publisher", "error", pubErr)
		} else {
			publisher = kafkaPublisher
			closers = append(closers, kafkaPublisher)
		}
	}
	outbox := eventadapter.NewOutboxWorker(logger, store.outbox, publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize)

	return &Runtime{
		cfg:             cfg,
		logger:          logger,
		httpServer:      httpServer,
		grpcServer:      grpcServer,
		outbox:          outbox,
		inProcessOutbox: cfg.DatabaseURL == "",
		cleanupFn: func(context.Context) {
			cleanup()
		},
	}, nil
}

func openStorage(ctx context.Context, cfg Config, logger *slog.Logger) (storage, error) {
	if cfg.DatabaseURL == "" {
		logger.WarnContext(ctx, "DB_URL not set, using in-memory store")
		return storage{
			users:   memory.NewUserStore(),
			outbox:  memory.NewOutboxRepository(),
			ping:    func(context.Context) error { return nil },
			closeFn: func() {},
		}, nil
	}
	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return storage{}, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return storage{}, err
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return storage{}, err
	}
	repos := postgres.NewRepositories(db, cfg.StoreTimeout)
	return storage{
		users:   repos.Users,
		outbox:  repos.Outbox,
		ping:    sqlDB.PingContext,
		closeFn: func() { _ = sqlDB.Close() },
	}, nil
}

func Build(ctx context.Context, configPath string) (*Runtime, error) {
	return NewRuntime(ctx, configPath)
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(context.Background())
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 3)

	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	if r.inProcessOutbox {
		go func() {
			if err := r.outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}
	r.logger.InfoContext(ctx, "user directory started",
		"http_port", r.cfg.HTTPPort,
		"grpc_port", r.cfg.GRPCPort,
		"in_memory_store", r.inProcessOutbox,
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", runErr)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	if r.inProcessOutbox {
		r.cleanupFn(context.Background())
		return errors.New("worker requires DB_URL; the in-memory outbox is relayed by the api process")
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.cleanupFn(context.Background())

	if err := r.outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
