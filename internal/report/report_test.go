package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/utkarsh5026/batchpool/pool"
)

func TestTimings(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	err := r.Timings([]Row{
		{Variant: "serial", Phase: "generate", Elapsed: 400 * time.Millisecond},
		{Variant: "pooled", Phase: "generate", Elapsed: 100 * time.Millisecond, Baseline: 400 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("Timings failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"serial", "pooled", "generate", "baseline", "4.00x", "100ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in table:\n%s", want, out)
		}
	}
}

func TestStats(t *testing.T) {
	var buf bytes.Buffer
	s := pool.Stats{
		ID:            "0123456789abcdef",
		State:         pool.StateJoined,
		Workers:       4,
		Declared:      10,
		Completed:     10,
		QueueCapacity: 100,
	}
	if err := New(&buf).Stats(s); err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"01234567", "joined", "0/100"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in table:\n%s", want, out)
		}
	}
	if strings.Contains(out, "89abcdef") {
		t.Errorf("expected a shortened pool id:\n%s", out)
	}
}

func TestSpeedup(t *testing.T) {
	tests := []struct {
		elapsed, baseline time.Duration
		want              string
	}{
		{time.Second, 0, "baseline"},
		{0, time.Second, "-"},
		{250 * time.Millisecond, time.Second, "4.00x"},
		{2 * time.Second, time.Second, "0.50x"},
	}
	for _, tt := range tests {
		if got := speedup(tt.elapsed, tt.baseline); got != tt.want {
			t.Errorf("speedup(%v, %v) = %q, want %q", tt.elapsed, tt.baseline, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		1234567 * time.Microsecond: "1.235s",
		12345 * time.Microsecond:   "12.35ms",
	}
	for d, want := range tests {
		if got := FormatDuration(d); got != want {
			t.Errorf("FormatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestCompareAndMessages(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	r.Section("Integration", "y = 9 - x^2")
	r.Compare("Numerically calculated", 18.01, 18, 0.1)
	r.Success("wrote %d lines", 10)

	out := buf.String()
	for _, want := range []string{"Integration", "y = 9 - x^2", "18.010000", "expected 18.000000", "wrote 10 lines"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestHook_CountsCompletedTasks(t *testing.T) {
	const n = 25
	var buf bytes.Buffer
	progress := NewProgress(&buf, n, "squares")

	p, err := pool.NewWorkerPool[int](4, n, Hook[int](progress))
	if err != nil {
		t.Fatalf("NewWorkerPool failed: %v", err)
	}
	for i := range n {
		task, _ := pool.NewTask(func(v int) int { return v * v }, i, nil)
		if err := p.Submit(task); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	if _, err := p.Await(); err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if err := progress.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	if got := progress.Done(); got != n {
		t.Fatalf("expected %d steps, got %d", n, got)
	}
	if !strings.Contains(buf.String(), "squares") {
		t.Errorf("expected the description in the bar output, got %q", buf.String())
	}
}
