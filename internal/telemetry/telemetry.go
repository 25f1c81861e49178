// Package telemetry wires worker pools of the example programs to a
// Prometheus registry served over HTTP and to an OpenTelemetry tracer
// provider that reports slow tasks through the logger.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/utkarsh5026/batchpool/internal/config"
	"github.com/utkarsh5026/batchpool/pool"
)

// Telemetry holds the metrics registry and tracer provider shared by the
// pools of one program.
type Telemetry struct {
	Registry *prometheus.Registry
	Tracer   *sdktrace.TracerProvider

	logger *slog.Logger
	slow   *slowTaskProcessor
	server *http.Server
	addr   string
	traces *os.File
}

// New creates a registry carrying the Go runtime collectors and a tracer
// provider. Task spans longer than slowTask are logged at Warn; zero turns
// that off.
func New(logger *slog.Logger, slowTask time.Duration) *Telemetry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	slow := &slowTaskProcessor{threshold: slowTask, logger: logger}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(slow),
	)

	return &Telemetry{
		Registry: reg,
		Tracer:   tp,
		logger:   logger,
		slow:     slow,
	}
}

// FromConfig creates a Telemetry and starts what cfg asks for: span export
// when TraceFile is set and the metrics endpoint when Addr is set.
func FromConfig(logger *slog.Logger, cfg config.Telemetry) (*Telemetry, error) {
	t := New(logger, cfg.SlowTask)
	if cfg.TraceFile != "" {
		if err := t.ExportSpans(cfg.TraceFile); err != nil {
			_ = t.Shutdown(context.Background())
			return nil, err
		}
	}
	if cfg.Addr != "" {
		if _, err := t.Serve(cfg.Addr); err != nil {
			_ = t.Shutdown(context.Background())
			return nil, err
		}
	}
	return t, nil
}

// PoolOptions instruments a pool registered under name.
func (t *Telemetry) PoolOptions(name string) []pool.WorkerPoolOption {
	return []pool.WorkerPoolOption{
		pool.WithLogger(t.logger),
		pool.WithMetrics(t.Registry, name),
		pool.WithTracerProvider(t.Tracer),
	}
}

// SlowTasks returns how many task spans exceeded the threshold.
func (t *Telemetry) SlowTasks() int64 {
	return t.slow.count.Load()
}

// Serve exposes the registry on addr at /metrics and returns the bound
// address, which differs from addr when addr asks for port 0.
func (t *Telemetry) Serve(addr string) (string, error) {
	if t.server != nil {
		return "", errors.New("metrics endpoint already serving")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(t.Registry, promhttp.HandlerOpts{Registry: t.Registry}))
	t.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := t.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("metrics endpoint stopped", "error", err)
		}
	}()

	t.addr = ln.Addr().String()
	t.logger.Info("serving metrics", "addr", t.addr)
	return t.addr, nil
}

// Addr returns the bound metrics address, or "" when not serving.
func (t *Telemetry) Addr() string {
	return t.addr
}

// ExportSpans writes every finished task span as JSON to the file at path.
// Spans are batched; Shutdown flushes them and closes the file.
func (t *Telemetry) ExportSpans(path string) error {
	if t.traces != nil {
		return errors.New("spans already exported")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(f), stdouttrace.WithPrettyPrint())
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("create span exporter: %w", err)
	}

	t.Tracer.RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exp))
	t.traces = f
	t.logger.Info("exporting spans", "path", path)
	return nil
}

// Shutdown stops the endpoint and flushes the tracer provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.server != nil {
		errs = append(errs, t.server.Shutdown(ctx))
	}
	errs = append(errs, t.Tracer.Shutdown(ctx))
	if t.traces != nil {
		errs = append(errs, t.traces.Close())
	}
	return errors.Join(errs...)
}

// slowTaskProcessor is a span processor that logs task spans whose duration
// exceeds threshold.
type slowTaskProcessor struct {
	threshold time.Duration
	logger    *slog.Logger
	count     atomic.Int64
}

var _ sdktrace.SpanProcessor = (*slowTaskProcessor)(nil)

func (p *slowTaskProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *slowTaskProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	if p.threshold <= 0 {
		return
	}
	d := s.EndTime().Sub(s.StartTime())
	if d < p.threshold {
		return
	}
	p.count.Add(1)

	args := []any{"span", s.Name(), "duration", d}
	for _, kv := range s.Attributes() {
		if kv.Value.Type() == attribute.INT64 {
			args = append(args, string(kv.Key), kv.Value.AsInt64())
		}
	}
	p.logger.Warn("slow task", args...)
}

func (p *slowTaskProcessor) Shutdown(context.Context) error   { return nil }
func (p *slowTaskProcessor) ForceFlush(context.Context) error { return nil }
