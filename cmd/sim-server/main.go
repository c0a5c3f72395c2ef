package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/carecascade-simulator/core"
	"github.com/signalsfoundry/carecascade-simulator/internal/api"
	"github.com/signalsfoundry/carecascade-simulator/internal/config"
	"github.com/signalsfoundry/carecascade-simulator/internal/logging"
	"github.com/signalsfoundry/carecascade-simulator/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// version is set at build time.
var version = "dev"

// Config holds the server settings resolved from flags and environment.
type Config struct {
	ListenAddress  string
	MetricsAddress string
	Engine         config.Config
	Tracing        observability.TracingConfig
	// Registerer receives the Prometheus collectors; nil means the default
	// registry.
	Registerer prometheus.Registerer
}

func main() {
	grpcAddr := flag.String("grpc-addr", ":50051", "TCP address the simulation gRPC server listens on")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for Prometheus /metrics (empty disables)")
	catalogPath := flag.String("catalog", "", "catalog file overlaid on the built-in catalog")
	flag.Parse()

	engine := config.Load()
	if *catalogPath != "" {
		engine.CatalogPath = *catalogPath
	}
	log, closeLog := logging.Open(engine.Logging(), engine.LogFile)
	defer closeLog()

	cfg := Config{
		ListenAddress:  *grpcAddr,
		MetricsAddress: *metricsAddr,
		Engine:         engine,
		Tracing:        engine.Tracing("server", version),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "simulation server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the simulation API on lis until ctx is cancelled.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	if log == nil {
		log = logging.Noop()
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	store, err := cfg.Engine.Catalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	apiMetrics, err := observability.NewAPICollector(cfg.Registerer)
	if err != nil {
		return fmt.Errorf("init api metrics: %w", err)
	}
	simMetrics, err := observability.NewSimulationCollector(cfg.Registerer)
	if err != nil {
		return fmt.Errorf("init simulation metrics: %w", err)
	}
	apiMetrics.SetCatalogCounts(
		len(store.ListDiseases()),
		len(store.ListHealthSystems()),
		len(store.ListCountries()),
		len(store.ListInterventions()),
	)

	opts := []core.RunnerOption{
		core.WithLogger(log),
		core.WithMetricsRecorder(simMetrics),
		core.WithDiscountRate(cfg.Engine.DiscountRate),
	}
	if cfg.Engine.MaxParallel > 0 {
		opts = append(opts, core.WithMaxParallel(cfg.Engine.MaxParallel))
	}
	runner := core.NewRunner(store, opts...)
	runner.RegisterWeekListener(simMetrics.ObserveWeek)

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			api.RequestIDUnaryServerInterceptor(log),
			api.TracingUnaryServerInterceptor(),
			apiMetrics.UnaryServerInterceptor(),
		),
	)
	api.Register(server, api.NewSimulationService(runner, log))

	metricsSrv := serveMetrics(cfg.MetricsAddress, apiMetrics.Handler(), log)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(lis)
	}()
	log.Info(ctx, "starting simulation gRPC server", logging.String("addr", lis.Addr().String()))

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
	}

	log.Info(context.Background(), "shutting down simulation server")
	server.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

func serveMetrics(addr string, handler http.Handler, log logging.Logger) *http.Server {
	if addr == "" || handler == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
