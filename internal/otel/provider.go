package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const defaultMetricInterval = time.Minute

// Config holds OTel configuration
type Config struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	LogWriter    io.Writer // required when enabled unless Endpoint is set
	Endpoint     string    // OTLP endpoint, optional
	Insecure     bool

	// MetricWriter receives periodic metric dumps. Nil leaves metrics on the
	// no-op provider.
	MetricWriter   io.Writer
	MetricInterval time.Duration
}

// Provider manages OpenTelemetry providers for logs and metrics
type Provider struct {
	logProvider   *sdklog.LoggerProvider
	meterProvider *sdkmetric.MeterProvider
	config        Config
}

// New builds the log provider and, when a metric writer is set, a meter
// provider that also becomes the global one. A disabled config yields a
// provider whose methods do nothing.
func New(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	ctx := context.Background()
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	processors, err := logProcessors(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, proc := range processors {
		opts = append(opts, sdklog.WithProcessor(proc))
	}
	p.logProvider = sdklog.NewLoggerProvider(opts...)

	if cfg.MetricWriter != nil {
		p.meterProvider, err = newMeterProvider(res, cfg)
		if err != nil {
			return nil, err
		}
		// package-level meters (flags, eventbus, dispatcher) resolve through the global provider
		otel.SetMeterProvider(p.meterProvider)
	}
	return p, nil
}

func logProcessors(ctx context.Context, cfg Config) ([]sdklog.Processor, error) {
	batch := func(e sdklog.Exporter) sdklog.Processor {
		return sdklog.NewBatchProcessor(e, sdklog.WithExportTimeout(cfg.BatchTimeout))
	}

	var processors []sdklog.Processor
	if cfg.LogWriter != nil {
		exporter, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		processors = append(processors, batch(exporter))
	}
	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exporter, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		processors = append(processors, batch(exporter))
	}
	if len(processors) == 0 {
		return nil, errors.New("OTel enabled but no log writer or endpoint configured")
	}
	return processors, nil
}

func newMeterProvider(res *resource.Resource, cfg Config) (*sdkmetric.MeterProvider, error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.MetricWriter))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	), nil
}

// LoggerProvider returns the log provider for use with otelslog bridge.
// Returns nil if OTel is not enabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logProvider
}

// Meter returns a named meter, or a no-op meter when metrics are not exported.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider == nil {
		return noop.Meter{}
	}
	return p.meterProvider.Meter(name)
}

// Flush forces a flush of all pending logs and metrics.
func (p *Provider) Flush(ctx context.Context) error {
	return p.each(ctx, "flush", (*sdklog.LoggerProvider).ForceFlush, (*sdkmetric.MeterProvider).ForceFlush)
}

// Shutdown gracefully shuts down all providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.each(ctx, "shutdown", (*sdklog.LoggerProvider).Shutdown, (*sdkmetric.MeterProvider).Shutdown)
}

func (p *Provider) each(
	ctx context.Context,
	op string,
	logFn func(*sdklog.LoggerProvider, context.Context) error,
	meterFn func(*sdkmetric.MeterProvider, context.Context) error,
) error {
	if !p.config.Enabled {
		return nil
	}
	var errs []error
	if p.logProvider != nil {
		if err := logFn(p.logProvider, ctx); err != nil {
			errs = append(errs, fmt.Errorf("log %s failed: %w", op, err))
		}
	}
	if p.meterProvider != nil {
		if err := meterFn(p.meterProvider, ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric %s failed: %w", op, err))
		}
	}
	return errors.Join(errs...)
}

// Enabled returns whether OTel is enabled
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}
