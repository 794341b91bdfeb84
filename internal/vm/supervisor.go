package vm

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/progamer242688/vm/pkg/hypervisor"
)

// State is the live run state of a VM, always derived from process
// inspection and never stored.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ProbeConfig bounds the readiness probe after start.
type ProbeConfig struct {
	// Attempts is the maximum number of connection attempts.
	Attempts int

	// Step is the backoff increment: attempt n waits n*Step.
	Step time.Duration

	// MaxDelay caps the per-attempt wait.
	MaxDelay time.Duration
}

// DefaultProbe polls for roughly a minute and a half before giving up.
var DefaultProbe = ProbeConfig{
	Attempts: 30,
	Step:     500 * time.Millisecond,
	MaxDelay: 3 * time.Second,
}

// DialFunc opens a TCP connection; tests substitute it.
type DialFunc func(network, addr string, timeout time.Duration) (net.Conn, error)

// Supervisor starts, probes, and stops the hypervisor process behind a VM.
//
// Process identity is the PID file written at launch plus a liveness
// signal against the recorded PID. A stale PID file left by an unclean
// exit is removed on the next inspection.
type Supervisor struct {
	// RunDir is where PID files live.
	RunDir string

	// Driver launches and signals the hypervisor process.
	Driver hypervisor.Driver

	// Grace is how long a graceful stop waits before forcing termination.
	// If zero, 10 seconds.
	Grace time.Duration

	// Probe bounds the readiness probe. Zero value means DefaultProbe.
	Probe ProbeConfig

	// Dial overrides TCP dialing for the readiness probe.
	// If nil, net.DialTimeout is used.
	Dial DialFunc

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// NewSupervisor creates a supervisor recording PID files under runDir.
func NewSupervisor(runDir string, driver hypervisor.Driver) *Supervisor {
	return &Supervisor{RunDir: runDir, Driver: driver}
}

func (s *Supervisor) graceWindow() time.Duration {
	if s.Grace > 0 {
		return s.Grace
	}
	return 10 * time.Second
}

func (s *Supervisor) probeConfig() ProbeConfig {
	if s.Probe.Attempts > 0 {
		return s.Probe
	}
	return DefaultProbe
}

func (s *Supervisor) dialFunc() DialFunc {
	if s.Dial != nil {
		return s.Dial
	}
	return net.DialTimeout
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Supervisor) pidPath(name string) string {
	return PIDPathFor(s.RunDir, name)
}

// PIDOf returns the recorded PID for a VM, or 0 when none is recorded.
func (s *Supervisor) PIDOf(name string) int {
	pid, err := hypervisor.ReadPIDFile(s.pidPath(name))
	if err != nil {
		return 0
	}
	return pid
}

// StateOf derives the live run state of a VM.
func (s *Supervisor) StateOf(name string) State {
	pid := s.PIDOf(name)
	if pid == 0 {
		return StateStopped
	}
	if !s.Driver.Alive(pid) {
		// Unclean exit left the PID file behind
		os.Remove(s.pidPath(name))
		return StateStopped
	}
	return StateRunning
}

// Start launches the VM process detached; it keeps running after this
// call and after vmctl exits. Starting a VM whose process is already
// observed is a no-op failing with ErrAlreadyRunning.
func (s *Supervisor) Start(ctx context.Context, record *VMRecord, plan *ForwardPlan) (int, error) {
	if s.StateOf(record.Name) == StateRunning {
		return 0, fmt.Errorf("start %s: %w", record.Name, ErrAlreadyRunning)
	}
	if err := os.MkdirAll(s.RunDir, 0755); err != nil {
		return 0, fmt.Errorf("create run dir: %w", err)
	}

	forwards := make([]hypervisor.PortForward, len(plan.Rules))
	for i, rule := range plan.Rules {
		forwards[i] = hypervisor.PortForward{HostPort: rule.HostPort, GuestPort: rule.GuestPort}
	}

	spec := &hypervisor.LaunchSpec{
		Name:      record.Name,
		ImagePath: record.ImagePath,
		SeedPath:  record.SeedPath,
		MemoryMB:  record.MemoryMB,
		CPUs:      record.CPUs,
		GUI:       record.GUI,
		Forwards:  forwards,
		PIDFile:   s.pidPath(record.Name),
	}

	s.logger().Info("starting vm", "vm", record.Name, "memory_mb", record.MemoryMB, "cpus", record.CPUs)
	pid, err := s.Driver.Launch(ctx, spec)
	if err != nil {
		return 0, fmt.Errorf("start %s: %w", record.Name, err)
	}
	s.logger().Info("vm process launched", "vm", record.Name, "pid", pid)
	return pid, nil
}

// WaitReady polls the management port until it accepts a connection,
// waiting between attempts with linearly increasing backoff up to a cap.
// Exhausting the attempts is not an error: the guest continues booting in
// the background and the caller proceeds regardless.
func (s *Supervisor) WaitReady(ctx context.Context, port int) bool {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	cfg := s.probeConfig()

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		conn, err := s.dialFunc()("tcp", addr, time.Second)
		if err == nil {
			conn.Close()
			return true
		}

		delay := time.Duration(attempt) * cfg.Step
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
	}
	return false
}

// Stop terminates the VM process in two phases: a graceful signal, then
// liveness polling over the grace window, then a forced kill if the
// process is still present. Stopping a VM with no observed process is a
// no-op failing with ErrNotRunning.
func (s *Supervisor) Stop(ctx context.Context, name string) error {
	pid := s.PIDOf(name)
	if pid == 0 || !s.Driver.Alive(pid) {
		if pid != 0 {
			os.Remove(s.pidPath(name))
		}
		return fmt.Errorf("stop %s: %w", name, ErrNotRunning)
	}

	s.logger().Info("stopping vm", "vm", name, "pid", pid)
	if err := s.Driver.Terminate(pid); err != nil {
		if !s.Driver.Alive(pid) {
			// Exited between the liveness check and the signal
			os.Remove(s.pidPath(name))
			return nil
		}
		return fmt.Errorf("stop %s: %w", name, err)
	}

	deadline := time.Now().Add(s.graceWindow())
	for time.Now().Before(deadline) {
		if !s.Driver.Alive(pid) {
			os.Remove(s.pidPath(name))
			s.logger().Info("vm stopped", "vm", name)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	s.logger().Warn("graceful shutdown timed out, killing", "vm", name, "pid", pid)
	if err := s.Driver.Kill(pid); err != nil && s.Driver.Alive(pid) {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	os.Remove(s.pidPath(name))
	return nil
}
