package respiro

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InitOTelHNY wires tracing through the Honeycomb helper,
// configured entirely by the standard OTEL_* environment.
// Returns the shutdown hook.
func InitOTelHNY() (func(), error) {
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName("respiro"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure OpenTelemetry: %w", err)
	}
	slog.Info("OpenTelemetry tracing enabled", slog.String("Exporter", "honeycomb"))
	return func() { otelShutdown() }, nil
}

// InitOTelOTLP builds a plain OTLP/HTTP trace provider for
// collectors that don't want the Honeycomb defaults (e.g. Grafana),
// including Baggage propagation. Returns the shutdown hook.
func InitOTelOTLP() (func(), error) {
	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	slog.Info("OpenTelemetry tracing enabled", slog.String("Exporter", "otlp"))
	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			slog.Error("Could not shut down tracer provider", slog.Any("Error", err))
		}
	}, nil
}
