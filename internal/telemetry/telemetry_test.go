package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/utkarsh5026/batchpool/internal/config"
	"github.com/utkarsh5026/batchpool/pool"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runPool(t *testing.T, tel *Telemetry, name string, sleep map[int]time.Duration, n int) {
	t.Helper()
	p, err := pool.NewWorkerPool[int](2, n, tel.PoolOptions(name)...)
	if err != nil {
		t.Fatalf("NewWorkerPool failed: %v", err)
	}
	for i := range n {
		task, _ := pool.NewTask(func(v int) int {
			time.Sleep(sleep[v])
			return v
		}, i, nil)
		if err := p.Submit(task); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	if _, err := p.Await(); err != nil {
		t.Fatalf("Await failed: %v", err)
	}
}

func TestSlowTasksAreLogged(t *testing.T) {
	var out lockedBuffer
	logger := slog.New(slog.NewTextHandler(&out, nil))
	tel := New(logger, 20*time.Millisecond)
	defer tel.Shutdown(context.Background())

	runPool(t, tel, "slow", map[int]time.Duration{1: 40 * time.Millisecond}, 4)

	if got := tel.SlowTasks(); got != 1 {
		t.Fatalf("expected 1 slow task, got %d", got)
	}
	logs := out.String()
	if !strings.Contains(logs, "slow task") || !strings.Contains(logs, "batchpool.task.index=1") {
		t.Fatalf("expected a slow task record for index 1:\n%s", logs)
	}
}

func TestSlowTaskLoggingDisabled(t *testing.T) {
	tel := New(slog.New(slog.DiscardHandler), 0)
	defer tel.Shutdown(context.Background())

	runPool(t, tel, "fast", map[int]time.Duration{0: 5 * time.Millisecond}, 2)
	if got := tel.SlowTasks(); got != 0 {
		t.Fatalf("expected no slow tasks, got %d", got)
	}
}

func TestServeMetrics(t *testing.T) {
	tel := New(slog.New(slog.DiscardHandler), 0)
	addr, err := tel.Serve("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
	}()

	if _, err := tel.Serve("127.0.0.1:0"); err == nil {
		t.Error("expected an error serving twice")
	}

	runPool(t, tel, "served", nil, 3)

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	for _, want := range []string{
		`batchpool_tasks_submitted_total{pool="served"} 3`,
		`batchpool_tasks_completed_total{pool="served"} 3`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestExportSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.json")
	tel := New(slog.New(slog.DiscardHandler), 0)
	if err := tel.ExportSpans(path); err != nil {
		t.Fatalf("ExportSpans failed: %v", err)
	}
	if err := tel.ExportSpans(path); err == nil {
		t.Error("expected an error exporting twice")
	}

	runPool(t, tel, "traced", nil, 3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), `"batchpool.task"`); got != 3 {
		t.Fatalf("expected 3 exported task spans, got %d:\n%s", got, data)
	}
}

func TestFromConfig(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("starts the endpoint and span export", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "spans.json")
		tel, err := FromConfig(logger, config.Telemetry{Addr: "127.0.0.1:0", TraceFile: path})
		if err != nil {
			t.Fatalf("FromConfig failed: %v", err)
		}
		defer tel.Shutdown(context.Background())

		addr := tel.Addr()
		if addr == "" {
			t.Fatal("expected the metrics endpoint to be serving")
		}
		runPool(t, tel, "configured", nil, 2)

		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected trace file to exist: %v", err)
		}
	})

	t.Run("nothing started without settings", func(t *testing.T) {
		tel, err := FromConfig(logger, config.Telemetry{})
		if err != nil {
			t.Fatalf("FromConfig failed: %v", err)
		}
		defer tel.Shutdown(context.Background())
		if got := tel.Addr(); got != "" {
			t.Errorf("expected no metrics address, got %q", got)
		}
	})

	t.Run("bad trace path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "spans.json")
		if _, err := FromConfig(logger, config.Telemetry{TraceFile: path}); err == nil {
			t.Error("expected an error for an unwritable trace file")
		}
	})
}
