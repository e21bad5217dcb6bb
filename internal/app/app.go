package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
	healthcheck "github.com/cowboyjack911/pc-install-repairhub/internal/health"
	"github.com/cowboyjack911/pc-install-repairhub/internal/messaging/kafka"
	"github.com/cowboyjack911/pc-install-repairhub/internal/metrics"
	"github.com/cowboyjack911/pc-install-repairhub/internal/service/outbox"
	"github.com/cowboyjack911/pc-install-repairhub/internal/service/ticketing"
	"github.com/cowboyjack911/pc-install-repairhub/internal/version"
)

// ticketingHealthService: имя сервиса в стандартном gRPC health protocol.
const ticketingHealthService = "repairhub.ticketing"

const shutdownTimeout = 5 * time.Second

// App собирает процесс repairhub: хранилище, сервис заявок, outbox и серверы.
type App struct {
	cfg    Config
	logger *log.Entry

	deps          *runtimeDependencies
	service       *ticketing.Service
	kafkaProducer *kafka.Producer
	outboxWorker  *outbox.Worker
	healthHandler *healthcheck.Handler
}

// New открывает хранилище и собирает зависимости. Серверы стартуют в Run.
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	service, err := ticketing.NewService(ticketing.Dependencies{
		Customers: deps.customers,
		Assets:    deps.assets,
		Tickets:   deps.tickets,
		Inventory: deps.inventory,
		Timeline:  deps.timeline,
		Outbox:    deps.outbox,
	},
		ticketing.WithLogger(logger.WithField("layer", "ticketing")),
		ticketing.WithMetrics(metrics.NewTicketingMetrics()),
	)
	if err != nil {
		deps.close(logger)
		return nil, err
	}

	a := &App{
		cfg:           cfg,
		logger:        logger,
		deps:          deps,
		service:       service,
		healthHandler: healthcheck.NewHandler(version.GetVersion()).WithCommit(version.GetCommit()),
	}
	a.healthHandler.RegisterChecker("storage", deps.storageChecker)

	producer, err := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
	if err == nil && producer != nil {
		a.kafkaProducer = producer
		a.outboxWorker = outbox.NewWorker(
			deps.outbox,
			kafka.NewOutboxPublisher(producer, cfg.OutboxTopic),
			cfg.outboxConfig(),
			outbox.WithLogger(logger.WithField("layer", "outbox")),
			outbox.WithDeadLetters(kafka.NewOutboxPublisher(producer, cfg.OutboxDLQ)),
			outbox.WithMetrics(metrics.NewOutboxMetrics()),
		)
		a.healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxChecker(deps.outbox, cfg.OutboxMaxPending, cfg.OutboxMaxAge))
	}
	return a, nil
}

// Service возвращает сервис заявок для встраивания в другие транспорты.
func (a *App) Service() *ticketing.Service {
	return a.service
}

// StockAdmin возвращает управление складскими остатками выбранного хранилища.
func (a *App) StockAdmin() domain.StockAdmin {
	return a.deps.stockAdmin
}

// Run запускает приложение с cfg и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	a, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// Run поднимает gRPC, HTTP и outbox worker; при отмене ctx аккуратно всё останавливает.
func (a *App) Run(ctx context.Context) error {
	logger := a.logger
	defer a.deps.close(logger)
	defer closeKafkaProducer(a.kafkaProducer, logger)

	outboxCancel, outboxDone := a.startOutboxWorker(ctx)
	defer shutdownOutboxWorker(outboxCancel, outboxDone, logger)

	grpcServer, healthServer := newGRPCServer(logger)

	lis, err := net.Listen("tcp", a.cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", a.cfg.GRPCAddr, err)
	}

	metricsSrv, err := startMetricsServer(ctx, a.cfg.MetricsAddr, logger, a.healthHandler)
	if err != nil {
		_ = lis.Close()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", lis.Addr().String()).Info("gRPC server listening")
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping gRPC server")
		healthServer.Shutdown()
		stopGRPC(grpcServer, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func (a *App) startOutboxWorker(ctx context.Context) (context.CancelFunc, <-chan struct{}) {
	if a.outboxWorker == nil {
		a.logger.Info("kafka is not configured, outbox events stay pending")
		return nil, nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.outboxWorker.Run(workerCtx)
	}()
	a.logger.WithField("topic", a.cfg.OutboxTopic).Info("outbox worker started")
	return cancel, done
}

// shutdownOutboxWorker отменяет worker и ждёт завершения текущей пачки.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel == nil {
		return
	}
	cancel()
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info("outbox worker stopped")
	case <-time.After(shutdownTimeout):
		logger.Warn("outbox worker did not stop in time")
	}
}

// newGRPCServer собирает gRPC-сервер со стандартным health, reflection и prometheus-метриками.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ticketingHealthService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)
	return grpcServer, healthServer
}

func stopGRPC(grpcServer *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop timed out, forcing gRPC server stop")
		grpcServer.Stop()
	}
}

// newHTTPMux собирает /metrics и health endpoints.
func newHTTPMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

// startMetricsServer запускает HTTP-сервер метрик и health checks.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) (*http.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}

	srv := &http.Server{
		Addr:              lis.Addr().String(),
		Handler:           newHTTPMux(healthHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.WithField("addr", srv.Addr).Info("metrics and health endpoints listening")
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv, nil
}

// shutdownHTTP останавливает HTTP-сервер с таймаутом.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
