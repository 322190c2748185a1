// Package observability wires tracing, metrics exposition, and logging
// for a Harvester host process. The engine itself only emits through
// otel and prometheus globals; this package owns provider setup and
// shutdown.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/quarrylabs/harvester/pkg/config"
	"github.com/quarrylabs/harvester/pkg/logger"
)

var initOnce sync.Once

// Init sets up the tracing provider and the structured logger from the
// observability section of cfg. Safe to call more than once; only the
// first call takes effect.
func Init(cfg *config.Config) error {
	var err error
	initOnce.Do(func() {
		level := cfg.Observability.LogLevel
		if level == "" {
			level = "info"
		}
		if initErr := logger.Init(logger.Config{Level: level, Encoding: "json"}); initErr != nil {
			err = fmt.Errorf("init logging: %w", initErr)
			return
		}

		if cfg.Observability.EnableTracing {
			if initErr := initTracing(cfg); initErr != nil {
				err = fmt.Errorf("init tracing: %w", initErr)
				return
			}
		}

		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	})
	return err
}

func initTracing(cfg *config.Config) error {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.Name),
			semconv.ServiceVersionKey.String(cfg.Version),
		),
	)
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("create stdout exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch rate := cfg.Observability.TracingSampleRate; {
	case rate <= 0:
		sampler = sdktrace.NeverSample()
	case rate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(rate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
	)
	otel.SetTracerProvider(tp)
	return nil
}

// MetricsHandler returns the HTTP handler exposing prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes traces and the logger. Call on process exit.
func Shutdown(ctx context.Context) error {
	var errs []error

	if tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); ok {
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}

	if err := logger.Sync(); err != nil {
		// Sync on stdout/stderr fails in some environments; ignore it.
		// See https://github.com/uber-go/zap/issues/328
		msg := err.Error()
		if !strings.Contains(msg, "bad file descriptor") &&
			!strings.Contains(msg, "invalid argument") {
			errs = append(errs, fmt.Errorf("sync logger: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
