package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds OTel configuration
type Config struct {
	Enabled     bool
	ServiceName string
	Version     string
	// Interval between exports. Zero uses the SDK default.
	Interval time.Duration
	// Writer receives the exported metrics as JSON (required when enabled).
	Writer io.Writer
}

// Provider owns the meter provider that backs the global otel meter.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	config        Config
}

// New creates a provider and installs it as the global meter provider.
// If OTel is disabled, returns a no-op provider and leaves the global alone.
func New(cfg Config) (*Provider, error) {
	p := &Provider{
		config: cfg,
	}

	if !cfg.Enabled {
		return p, nil
	}
	if cfg.Writer == nil {
		return nil, errors.New("OTel enabled but no metrics writer configured")
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(cfg.Writer),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
	)
	otel.SetMeterProvider(p.meterProvider)

	return p, nil
}

// Meter returns a meter with the given name for creating metrics.
// Returns a no-op meter when OTel is disabled.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider == nil {
		return noop.Meter{}
	}
	return p.meterProvider.Meter(name)
}

// Flush exports everything recorded so far.
func (p *Provider) Flush(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	if err := p.meterProvider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("metrics flush failed: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the export loop.
// Should be called when the plugin unloads.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics shutdown failed: %w", err)
	}
	return nil
}

// Enabled returns whether OTel is enabled
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}
