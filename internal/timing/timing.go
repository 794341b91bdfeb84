// Package timing provides simple phase timing for provisioning and
// startup workflows. Enabled from the CLI with VMCTL_TIMING=1.
package timing

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Timer tracks durations of named workflow phases.
type Timer struct {
	start  time.Time
	phases []Phase
}

// Phase is one timed segment of a workflow.
type Phase struct {
	Name     string
	Duration time.Duration
}

// New creates a Timer starting from now.
func New() *Timer {
	return &Timer{start: time.Now()}
}

// Mark records a named phase ending now. The duration covers the time
// since the previous mark (or since creation for the first mark).
// Mark on a nil Timer is a no-op, so workflow code can mark phases
// unconditionally.
func (t *Timer) Mark(name string) {
	if t == nil {
		return
	}
	now := time.Now()
	var duration time.Duration
	if len(t.phases) == 0 {
		duration = now.Sub(t.start)
	} else {
		duration = now.Sub(t.start) - t.elapsed()
	}
	t.phases = append(t.phases, Phase{Name: name, Duration: duration})
}

// Total returns the elapsed time since the timer was created.
func (t *Timer) Total() time.Duration {
	return time.Since(t.start)
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying t. Workflow code deep in the
// call chain picks it up with FromContext without threading a Timer
// through every signature.
func NewContext(ctx context.Context, t *Timer) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext returns the Timer carried by ctx, or nil when there is
// none. The nil result is safe to Mark.
func FromContext(ctx context.Context) *Timer {
	t, _ := ctx.Value(contextKey{}).(*Timer)
	return t
}

// Phases returns all recorded phases in order.
func (t *Timer) Phases() []Phase {
	return t.phases
}

// Report writes a phase breakdown to w.
func (t *Timer) Report(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "=== Timing ===")
	for _, p := range t.phases {
		fmt.Fprintf(w, "  %-20s %s\n", p.Name+":", formatDuration(p.Duration))
	}
	fmt.Fprintf(w, "  %-20s %s\n", "TOTAL:", formatDuration(t.Total()))
	fmt.Fprintln(w, "==============")
}

// elapsed returns the sum of all recorded phase durations.
func (t *Timer) elapsed() time.Duration {
	var total time.Duration
	for _, p := range t.phases {
		total += p.Duration
	}
	return total
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
