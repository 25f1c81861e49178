package pool

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	// DefaultQueueCapacity is the number of pending tasks a pool buffers
	// before Submit starts blocking.
	DefaultQueueCapacity = 100

	// MaxQueueCapacity bounds WithQueueCapacity.
	MaxQueueCapacity = 1 << 24

	// MaxDeclaredTasks bounds the declared task count of a batch; the results
	// container is allocated up front at this size.
	MaxDeclaredTasks = 1 << 26
)

// WorkerPoolOption is a functional option for configuring a WorkerPool.
type WorkerPoolOption func(*workerPoolConfig)

type workerPoolConfig struct {
	queueCapacity   int
	submissionOrder bool
	rateLimiter     *rate.Limiter
	pinWorkers      bool
	logger          *slog.Logger
	registerer      prometheus.Registerer
	metricsName     string
	tracerProvider  trace.TracerProvider
	beforeTaskStart func(worker, index int)
	onTaskEnd       any // func(Result[R]); checked against R in NewWorkerPool

	errs []error
}

func (cfg *workerPoolConfig) invalid(format string, args ...any) {
	cfg.errs = append(cfg.errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfiguration}, args...)...))
}

// WithQueueCapacity sets how many submitted tasks may wait for a worker
// before Submit blocks. Defaults to DefaultQueueCapacity.
func WithQueueCapacity(capacity int) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		switch {
		case capacity < 1:
			cfg.invalid("queue capacity must be >= 1, got %d", capacity)
		case capacity > MaxQueueCapacity:
			cfg.errs = append(cfg.errs, fmt.Errorf("%w: queue capacity %d exceeds %d", ErrAllocation, capacity, MaxQueueCapacity))
		default:
			cfg.queueCapacity = capacity
		}
	}
}

// WithSubmissionOrder stores each result at its task's submission index
// instead of at its completion index. In this mode a batch accepts at most
// the declared number of tasks; extra submissions fail with ErrInvalidState.
func WithSubmissionOrder() WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.submissionOrder = true
	}
}

// WithRateLimit caps how fast workers start tasks, across the whole pool.
// tasksPerSecond is the sustained rate and burst the number of tasks that
// may start back to back.
//
// Example:
//
//	WithRateLimit(10, 5) // 10 tasks/sec with a burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if tasksPerSecond <= 0 || burst < 1 {
			cfg.invalid("rate limit needs tasksPerSecond > 0 and burst >= 1, got %g/%d", tasksPerSecond, burst)
			return
		}
		cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
	}
}

// WithCPUAffinity locks every worker to its own OS thread and, where the
// platform allows it, pins that thread to core workerID mod NumCPU.
func WithCPUAffinity() WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.pinWorkers = true
	}
}

// WithLogger routes lifecycle logging to logger. Pools are silent by default.
func WithLogger(logger *slog.Logger) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMetrics registers the pool's Prometheus collectors with reg. name is
// attached to every series as the "pool" label, so several pools can share
// one registry.
func WithMetrics(reg prometheus.Registerer, name string) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if reg == nil {
			cfg.invalid("metrics registerer is nil")
			return
		}
		cfg.registerer = reg
		cfg.metricsName = name
	}
}

// WithTracerProvider records one span per executed task using tp. Without
// it the global OpenTelemetry provider is used, which is a no-op unless the
// application installed one.
func WithTracerProvider(tp trace.TracerProvider) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if tp != nil {
			cfg.tracerProvider = tp
		}
	}
}

// WithBeforeTaskStart registers a hook called on the worker goroutine right
// before a task's work function runs.
func WithBeforeTaskStart(fn func(worker, index int)) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.beforeTaskStart = fn
	}
}

// WithOnTaskEnd registers a hook called on the worker goroutine after a task
// has completed and its argument has been dropped. R must match the result
// type of the pool the option is passed to.
func WithOnTaskEnd[R any](fn func(Result[R])) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if fn != nil {
			cfg.onTaskEnd = fn
		}
	}
}

// resolveOnTaskEnd checks the type-erased hook against the pool's result type.
func resolveOnTaskEnd[R any](cfg *workerPoolConfig) (func(Result[R]), error) {
	if cfg.onTaskEnd == nil {
		return nil, nil
	}
	fn, ok := cfg.onTaskEnd.(func(Result[R]))
	if !ok {
		var zero R
		return nil, fmt.Errorf("%w: WithOnTaskEnd hook has type %T, but pool produces %T",
			ErrInvalidConfiguration, cfg.onTaskEnd, zero)
	}
	return fn, nil
}
