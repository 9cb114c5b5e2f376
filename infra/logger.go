package infra

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/resumelab/cv-optimizer/config"
)

type LoggerClient struct {
	Logger *slog.Logger

	loggerProvider *sdklog.LoggerProvider
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// InitLoggerClient wires slog through the OpenTelemetry bridge with OTLP
// exporters for logs, traces and metrics. When no OTLP endpoint is configured
// it falls back to plain stdout logging.
func InitLoggerClient(cfg *config.EnvConfig) *LoggerClient {
	if cfg.Grafana.OTLPEndpoint == "" {
		log.Println("No OTLP endpoint configured, logging to stdout")
		return NewStdoutLogger()
	}

	ctx := context.Background()

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.Grafana.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment.Mode),
		),
	)
	if err != nil {
		log.Printf("Failed to build otel resource: %v", err)
		return NewStdoutLogger()
	}

	insecure := cfg.Environment.Mode == "development"

	logOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Grafana.OTLPEndpoint)}
	traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Grafana.OTLPEndpoint)}
	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Grafana.OTLPEndpoint)}
	if insecure {
		logOpts = append(logOpts, otlploghttp.WithInsecure())
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}

	logExporter, err := otlploghttp.New(ctx, logOpts...)
	if err != nil {
		log.Printf("Failed to initialize OTLP log exporter: %v", err)
		return NewStdoutLogger()
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)

	traceExporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(traceOpts...))
	if err != nil {
		log.Printf("Failed to initialize OTLP trace exporter: %v", err)
		return NewStdoutLogger()
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		log.Printf("Failed to initialize OTLP metric exporter: %v", err)
		return NewStdoutLogger()
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		log.Printf("Failed to start runtime instrumentation: %v", err)
	}

	logger := otelslog.NewLogger(cfg.Grafana.ServiceName, otelslog.WithLoggerProvider(loggerProvider))

	return &LoggerClient{
		Logger:         logger,
		loggerProvider: loggerProvider,
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
	}
}

// NewStdoutLogger returns a LoggerClient without any OTLP wiring. Also used by
// tests.
func NewStdoutLogger() *LoggerClient {
	return &LoggerClient{
		Logger: slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}
}

func (l *LoggerClient) InfoWithContextf(ctx context.Context, format string, args ...interface{}) {
	l.Logger.InfoContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) WarningWithContextf(ctx context.Context, format string, args ...interface{}) {
	l.Logger.WarnContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) ErrorWithContextf(ctx context.Context, err error, format string, args ...interface{}) {
	if err != nil {
		l.Logger.ErrorContext(ctx, fmt.Sprintf(format, args...), slog.Any("error", err))
		return
	}
	l.Logger.ErrorContext(ctx, fmt.Sprintf(format, args...))
}

// Shutdown flushes every provider. Safe to call on stdout-only clients.
func (l *LoggerClient) Shutdown(ctx context.Context) error {
	var firstErr error
	if l.loggerProvider != nil {
		if err := l.loggerProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if l.tracerProvider != nil {
		if err := l.tracerProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if l.meterProvider != nil {
		if err := l.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
