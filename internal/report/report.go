// Package report renders the output of the example programs: colored
// section headers, timing tables and a progress bar fed by pool hooks.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"

	"github.com/utkarsh5026/batchpool/pool"
)

var (
	Bold   = color.New(color.Bold)
	Green  = color.New(color.FgGreen)
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Blue   = color.New(color.FgBlue)
)

// Row is one line of a timing table. Baseline is the serial time the row is
// compared against; zero means the row is the baseline.
type Row struct {
	Variant  string
	Phase    string
	Elapsed  time.Duration
	Baseline time.Duration
}

type Reporter struct {
	out io.Writer
}

func New(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Section prints a bold title followed by optional description lines.
func (r *Reporter) Section(title string, lines ...string) {
	fmt.Fprintln(r.out)
	Bold.Fprintln(r.out, title)
	Bold.Fprintln(r.out, strings.Repeat("═", len([]rune(title))))
	for _, l := range lines {
		fmt.Fprintln(r.out, l)
	}
	fmt.Fprintln(r.out)
}

// Timings renders rows as a table with a speedup column.
func (r *Reporter) Timings(rows []Row) error {
	table := tablewriter.NewWriter(r.out)
	table.Header("Variant", "Phase", "Time", "vs Serial")

	for _, row := range rows {
		if err := table.Append(
			row.Variant,
			row.Phase,
			FormatDuration(row.Elapsed),
			speedup(row.Elapsed, row.Baseline),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

// Stats renders a pool snapshot.
func (r *Reporter) Stats(s pool.Stats) error {
	table := tablewriter.NewWriter(r.out)
	table.Header("Pool", "State", "Workers", "Declared", "Completed", "Queue")
	if err := table.Append(
		shortID(s.ID),
		s.State.String(),
		fmt.Sprint(s.Workers),
		fmt.Sprint(s.Declared),
		fmt.Sprint(s.Completed),
		fmt.Sprintf("%d/%d", s.Queued, s.QueueCapacity),
	); err != nil {
		return err
	}
	return table.Render()
}

// Compare prints a computed value next to the expected one, green when they
// agree within tolerance.
func (r *Reporter) Compare(label string, got, want, tolerance float64) {
	c := Green
	if math.Abs(got-want) > tolerance {
		c = Yellow
	}
	fmt.Fprintf(r.out, "%-24s ", label)
	c.Fprintf(r.out, "%f", got)
	fmt.Fprintf(r.out, "  (expected %f)\n", want)
}

// Error prints err in red.
func (r *Reporter) Error(err error) {
	Red.Fprintf(r.out, "✗ %v\n", err)
}

// Success prints a green confirmation line.
func (r *Reporter) Success(format string, args ...any) {
	Green.Fprintf(r.out, "✓ "+format+"\n", args...)
}

func speedup(elapsed, baseline time.Duration) string {
	if baseline <= 0 {
		return "baseline"
	}
	if elapsed <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fx", float64(baseline)/float64(elapsed))
}

// FormatDuration rounds d to a unit that keeps three significant figures.
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.Round(time.Microsecond).String()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Progress is a progress bar that can be advanced from worker goroutines.
type Progress struct {
	bar  *progressbar.ProgressBar
	done atomic.Int64
}

// NewProgress draws a bar of total steps on out.
func NewProgress(out io.Writer, total int, description string) *Progress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
	)
	return &Progress{bar: bar}
}

// Step advances the bar by one.
func (p *Progress) Step() {
	p.done.Add(1)
	_ = p.bar.Add(1)
}

// Done returns the number of steps taken.
func (p *Progress) Done() int64 {
	return p.done.Load()
}

func (p *Progress) Finish() error {
	return p.bar.Finish()
}

// Hook returns a pool option that advances p once per completed task.
func Hook[R any](p *Progress) pool.WorkerPoolOption {
	return pool.WithOnTaskEnd(func(pool.Result[R]) {
		p.Step()
	})
}
