package tracing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/leasecore/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("tracing",
	fx.Invoke(Install),
)

const defaultSamplingRatio = 0.1

// Payments, deposit settlements and the unattended sweep are rare and
// touch money, so their root spans are always kept.
var alwaysSampled = []string{"payment.", "deposit.", "scheduler."}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// Install sets the global tracer provider and propagator. With tracing
// disabled it installs a no-op provider.
func Install(p Params) error {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cfg := p.Config.Tracing
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return nil
	}

	exporter, err := dialExporter(cfg)
	if err != nil {
		return err
	}
	provider := NewProvider(p.Config, sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)

	log := p.Log.Named("tracing")
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("flushing spans")
			return provider.Shutdown(ctx)
		},
	})
	log.Info("tracing enabled",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
		zap.Float64("sampling_ratio", samplingRatio(cfg.SamplingRatio)),
	)
	return nil
}

// NewProvider builds a tracer provider tagged with the deployment and using
// the billing sampler. opts add exporters or span processors.
func NewProvider(cfg config.Config, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.AppName),
		attribute.String("service.version", cfg.Version),
		attribute.String("deployment.environment", cfg.Environment),
	)
	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(NewSampler(cfg.Tracing.SamplingRatio)),
	}
	return sdktrace.NewTracerProvider(append(base, opts...)...)
}

// NewSampler follows the parent decision. Root spans are sampled at ratio
// unless their name marks a money movement or a sweep.
func NewSampler(ratio float64) sdktrace.Sampler {
	return sdktrace.ParentBased(billingSampler{
		ratio: sdktrace.TraceIDRatioBased(samplingRatio(ratio)),
	})
}

type billingSampler struct {
	ratio sdktrace.Sampler
}

func (s billingSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, prefix := range alwaysSampled {
		if strings.HasPrefix(p.Name, prefix) {
			return sdktrace.AlwaysSample().ShouldSample(p)
		}
	}
	return s.ratio.ShouldSample(p)
}

func (s billingSampler) Description() string {
	return fmt.Sprintf("BillingSampler{%s}", s.ratio.Description())
}

func samplingRatio(value float64) float64 {
	switch {
	case value <= 0:
		return defaultSamplingRatio
	case value > 1:
		return 1
	default:
		return value
	}
}

func dialExporter(cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	endpoint := strings.TrimSpace(cfg.ExporterEndpoint)
	switch strings.ToLower(strings.TrimSpace(cfg.ExporterProtocol)) {
	case "http", "http/protobuf":
		var opts []otlptracehttp.Option
		if endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	case "grpc", "":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("tracing: unsupported OTLP protocol %q", cfg.ExporterProtocol)
	}
}
