package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/signalsfoundry/carecascade-simulator/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Tracing exporters.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// DefaultOTLPEndpoint is dialled when an OTLP exporter has no endpoint.
const DefaultOTLPEndpoint = "localhost:4317"

// TracingConfig selects the span exporter and describes the process that
// emits the spans. internal/config builds it from the environment.
type TracingConfig struct {
	Enabled     bool
	Exporter    string
	Endpoint    string
	SampleRatio float64
	// Output receives stdout-exported spans; defaults to os.Stdout.
	Output io.Writer

	Service SimulatorResource
}

// SimulatorResource is attached to every span the process exports.
type SimulatorResource struct {
	Name      string
	Version   string
	Component string // cli | server
	// CatalogSource is "embedded" or the overlay file path.
	CatalogSource string
	HorizonWeeks  int
	DiscountRate  float64
	HealthSystem  string
}

func (r SimulatorResource) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", r.Name),
		attribute.String("service.namespace", "healthsim"),
		attribute.String("sim.catalog.source", r.CatalogSource),
		attribute.Int("sim.horizon.weeks", r.HorizonWeeks),
		attribute.Float64("sim.discount_rate", r.DiscountRate),
	}
	if r.Version != "" {
		attrs = append(attrs, attribute.String("service.version", r.Version))
	}
	if r.Component != "" {
		attrs = append(attrs, attribute.String("sim.component", r.Component))
	}
	if r.HealthSystem != "" {
		attrs = append(attrs, attribute.String("sim.health_system.default", r.HealthSystem))
	}
	return attrs
}

// Sampler returns a parent-based sampler for SampleRatio: 1 or more samples
// every trace and 0 or less none.
func (c TracingConfig) Sampler() sdktrace.Sampler {
	switch {
	case c.SampleRatio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case c.SampleRatio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
	}
}

type exporterFactory func(context.Context, TracingConfig) (sdktrace.SpanExporter, error)

var exporters = map[string]exporterFactory{
	ExporterStdout: newStdoutExporter,
	"":             newStdoutExporter,
	ExporterOTLP:   newOTLPExporter,
	"otlpgrpc":     newOTLPExporter,
}

func newStdoutExporter(_ context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return stdouttrace.New(
		stdouttrace.WithWriter(out),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
}

func newOTLPExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultOTLPEndpoint
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	))
}

// InitTracing installs the global tracer provider and propagators. The
// returned function flushes and stops the exporter. With tracing disabled
// a noop provider is installed and the returned function does nothing.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	newExporter, ok := exporters[cfg.Exporter]
	if !ok {
		return nil, fmt.Errorf("unsupported tracing exporter %q", cfg.Exporter)
	}
	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(cfg.Service.attributes()...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(cfg.Sampler()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("component", cfg.Service.Component),
		logging.String("catalog", cfg.Service.CatalogSource),
		logging.Float("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

// ShutdownWithTimeout flushes spans within five seconds and logs failures.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
