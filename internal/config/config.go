// Package config loads the settings of the bundled example programs from a
// YAML file, then applies BATCHPOOL_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/utkarsh5026/batchpool/pool"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "BATCHPOOL"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Pool        Pool        `yaml:"pool"`
	Log         Log         `yaml:"log"`
	Telemetry   Telemetry   `yaml:"telemetry"`
	Integration Integration `yaml:"integration"`
	CSV         CSV         `yaml:"csv"`
}

// Pool mirrors the worker pool options.
type Pool struct {
	Threads         int     `yaml:"threads"`
	QueueCapacity   int     `yaml:"queue_capacity"`
	SubmissionOrder bool    `yaml:"submission_order"`
	RateLimit       float64 `yaml:"rate_limit"` // tasks per second, 0 disables
	RateBurst       int     `yaml:"rate_burst"`
	PinWorkers      bool    `yaml:"pin_workers"`
}

type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Telemetry controls the Prometheus endpoint and task tracing. An empty
// Addr disables the endpoint; a zero SlowTask disables slow task logging.
// TraceFile, when set, receives every task span as JSON.
type Telemetry struct {
	Addr      string        `yaml:"addr"`
	Name      string        `yaml:"name"`
	SlowTask  time.Duration `yaml:"slow_task"`
	TraceFile string        `yaml:"trace_file"`
}

// Integration configures the Monte-Carlo integration of 9 - x^2.
type Integration struct {
	Iterations int     `yaml:"iterations"` // samples per task
	Tasks      int     `yaml:"tasks"`
	Lower      float64 `yaml:"lower"`
	Upper      float64 `yaml:"upper"`
	Seed       uint64  `yaml:"seed"`
}

// CSV configures the parallel CSV writer.
type CSV struct {
	Output         string `yaml:"output"`
	Lines          int    `yaml:"lines"`
	Columns        int    `yaml:"columns"`
	LinesPerWorker int    `yaml:"lines_per_worker"` // chunk size is LinesPerWorker * threads
	MaxWriters     int    `yaml:"max_writers"`
	Seed           uint64 `yaml:"seed"`
}

// Default returns the settings the example programs run with when no file
// is given.
func Default() Config {
	return Config{
		Pool: Pool{
			Threads:       8,
			QueueCapacity: pool.DefaultQueueCapacity,
			RateBurst:     1,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Telemetry: Telemetry{
			Name: "batchpool",
		},
		Integration: Integration{
			Iterations: 1_000_000,
			Tasks:      8,
			Lower:      0,
			Upper:      3,
			Seed:       42,
		},
		CSV: CSV{
			Output:         "out.csv",
			Lines:          100_000,
			Columns:        100,
			LinesPerWorker: 8,
			MaxWriters:     4,
			Seed:           42,
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	}

	if err := ApplyEnv(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports every problem with cfg at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Pool.Threads >= 1, "pool.threads must be >= 1, got %d", c.Pool.Threads)
	check(c.Pool.QueueCapacity >= 1 && c.Pool.QueueCapacity <= pool.MaxQueueCapacity,
		"pool.queue_capacity must be in [1, %d], got %d", pool.MaxQueueCapacity, c.Pool.QueueCapacity)
	check(c.Pool.RateLimit >= 0, "pool.rate_limit must be >= 0, got %g", c.Pool.RateLimit)
	check(c.Pool.RateLimit == 0 || c.Pool.RateBurst >= 1, "pool.rate_burst must be >= 1, got %d", c.Pool.RateBurst)

	_, err := ParseLevel(c.Log.Level)
	check(err == nil, "log.level %q is not one of debug, info, warn, error", c.Log.Level)
	check(c.Log.Format == "text" || c.Log.Format == "json", "log.format must be text or json, got %q", c.Log.Format)

	check(c.Telemetry.SlowTask >= 0, "telemetry.slow_task must be >= 0, got %v", c.Telemetry.SlowTask)

	check(c.Integration.Iterations >= 1, "integration.iterations must be >= 1, got %d", c.Integration.Iterations)
	check(c.Integration.Tasks >= 1, "integration.tasks must be >= 1, got %d", c.Integration.Tasks)
	check(c.Integration.Upper > c.Integration.Lower,
		"integration.upper (%g) must be above integration.lower (%g)", c.Integration.Upper, c.Integration.Lower)

	check(c.CSV.Output != "", "csv.output is required")
	check(c.CSV.Lines >= 1, "csv.lines must be >= 1, got %d", c.CSV.Lines)
	check(c.CSV.Columns >= 1, "csv.columns must be >= 1, got %d", c.CSV.Columns)
	check(c.CSV.LinesPerWorker >= 1, "csv.lines_per_worker must be >= 1, got %d", c.CSV.LinesPerWorker)
	check(c.CSV.MaxWriters >= 1, "csv.max_writers must be >= 1, got %d", c.CSV.MaxWriters)

	return errors.Join(errs...)
}

// Options turns the pool section into worker pool options.
func (p Pool) Options() []pool.WorkerPoolOption {
	opts := []pool.WorkerPoolOption{pool.WithQueueCapacity(p.QueueCapacity)}
	if p.SubmissionOrder {
		opts = append(opts, pool.WithSubmissionOrder())
	}
	if p.RateLimit > 0 {
		opts = append(opts, pool.WithRateLimit(p.RateLimit, p.RateBurst))
	}
	if p.PinWorkers {
		opts = append(opts, pool.WithCPUAffinity())
	}
	return opts
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return level, nil
}

// NewLogger builds the logger described by l, writing to w.
func (l Log) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: unknown log format %q", ErrInvalid, l.Format)
	}
}

// ApplyEnv overrides fields of the struct target points to from environment
// variables named PREFIX_SECTION_FIELD, where each part is the field's yaml
// key (or Go name) in upper case, e.g. BATCHPOOL_POOL_QUEUE_CAPACITY.
func ApplyEnv(prefix string, target any) error {
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to a struct")
	}
	return applyEnvToStruct(prefix, val.Elem())
}

func applyEnvToStruct(prefix string, val reflect.Value) error {
	typ := val.Type()

	for i := range val.NumField() {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !field.CanSet() {
			continue
		}

		envKey := prefix + "_" + envName(fieldType)
		if field.Kind() == reflect.Struct {
			if err := applyEnvToStruct(envKey, field); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envKey, err)
		}
	}
	return nil
}

func envName(f reflect.StructField) string {
	name := f.Name
	if tag, _, _ := strings.Cut(f.Tag.Get("yaml"), ","); tag != "" && tag != "-" {
		name = tag
	}
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

var durationType = reflect.TypeOf(time.Duration(0))

func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value: %s", value)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value: %s", value)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float value: %s", value)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value: %s", value)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}
