package vm

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *fakeDriver) {
	t.Helper()
	driver := newFakeDriver()
	sup := NewSupervisor(t.TempDir(), driver)
	sup.Grace = 500 * time.Millisecond
	sup.Probe = ProbeConfig{Attempts: 3, Step: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	sup.Logger = quietLogger()
	return sup, driver
}

func startTestVM(t *testing.T, sup *Supervisor, record *VMRecord) int {
	t.Helper()
	plan, err := PlanForwards(record.SSHPort, record.ExtraForwards)
	if err != nil {
		t.Fatal(err)
	}
	pid, err := sup.Start(context.Background(), record, plan)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return pid
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "stopped"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestStateOfWithoutPIDFile(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	if got := sup.StateOf("web1"); got != StateStopped {
		t.Errorf("StateOf() = %v, want stopped", got)
	}
}

func TestStateOfCleansStalePIDFile(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	pidPath := PIDPathFor(sup.RunDir, "web1")
	if err := os.WriteFile(pidPath, []byte("4242\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if got := sup.StateOf("web1"); got != StateStopped {
		t.Errorf("StateOf() = %v, want stopped", got)
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Error("stale PID file was not removed")
	}
}

func TestStartLaunchesDetached(t *testing.T) {
	sup, driver := newTestSupervisor(t)
	record := testRecord(t, "web1")
	record.ExtraForwards = []string{"8080:80"}

	pid := startTestVM(t, sup, record)
	if pid <= 0 {
		t.Fatalf("pid = %d, want positive", pid)
	}
	if got := sup.StateOf("web1"); got != StateRunning {
		t.Errorf("StateOf() after start = %v, want running", got)
	}
	if got := sup.PIDOf("web1"); got != pid {
		t.Errorf("PIDOf() = %d, want %d", got, pid)
	}

	spec := driver.lastLaunched()
	if spec.Name != "web1" || spec.ImagePath != record.ImagePath || spec.SeedPath != record.SeedPath {
		t.Errorf("launch spec = %+v", spec)
	}
	if len(spec.Forwards) != 2 {
		t.Fatalf("forwards = %v, want extra rule plus management", spec.Forwards)
	}
	if last := spec.Forwards[len(spec.Forwards)-1]; last.HostPort != 2222 || last.GuestPort != 22 {
		t.Errorf("last forward = %+v, want management 2222:22", last)
	}
}

func TestStartAlreadyRunning(t *testing.T) {
	sup, driver := newTestSupervisor(t)
	record := testRecord(t, "web1")

	startTestVM(t, sup, record)

	plan, _ := PlanForwards(record.SSHPort, nil)
	_, err := sup.Start(context.Background(), record, plan)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
	if got := driver.launchCount(); got != 1 {
		t.Errorf("launches = %d, want 1 (no second process)", got)
	}
}

func TestStopGraceful(t *testing.T) {
	sup, driver := newTestSupervisor(t)
	record := testRecord(t, "web1")
	pid := startTestVM(t, sup, record)

	if err := sup.Stop(context.Background(), "web1"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if len(driver.terminated) != 1 || driver.terminated[0] != pid {
		t.Errorf("terminated = %v, want [%d]", driver.terminated, pid)
	}
	if len(driver.killed) != 0 {
		t.Errorf("killed = %v, want none after graceful exit", driver.killed)
	}
	if got := sup.StateOf("web1"); got != StateStopped {
		t.Errorf("StateOf() after stop = %v, want stopped", got)
	}
	if _, err := os.Stat(PIDPathFor(sup.RunDir, "web1")); !os.IsNotExist(err) {
		t.Error("PID file not removed after stop")
	}
}

func TestStopForcesKillAfterGrace(t *testing.T) {
	sup, driver := newTestSupervisor(t)
	sup.Grace = 50 * time.Millisecond
	driver.ignoreTerm = true

	record := testRecord(t, "web1")
	pid := startTestVM(t, sup, record)

	if err := sup.Stop(context.Background(), "web1"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if len(driver.terminated) != 1 {
		t.Errorf("terminated = %v, want one graceful attempt", driver.terminated)
	}
	if len(driver.killed) != 1 || driver.killed[0] != pid {
		t.Errorf("killed = %v, want [%d]", driver.killed, pid)
	}
	if got := sup.StateOf("web1"); got != StateStopped {
		t.Errorf("StateOf() after forced stop = %v, want stopped", got)
	}
}

func TestStopNotRunning(t *testing.T) {
	sup, driver := newTestSupervisor(t)

	err := sup.Stop(context.Background(), "web1")
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop() error = %v, want ErrNotRunning", err)
	}
	if len(driver.terminated) != 0 || len(driver.killed) != 0 {
		t.Error("signals were delivered to a stopped VM")
	}
}

func TestStopCleansStalePIDFile(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	pidPath := PIDPathFor(sup.RunDir, "web1")
	if err := os.WriteFile(pidPath, []byte("4242\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := sup.Stop(context.Background(), "web1"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop() error = %v, want ErrNotRunning", err)
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Error("stale PID file was not removed")
	}
}

func TestWaitReadySucceeds(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	sup.Dial = dialSuccess

	if !sup.WaitReady(context.Background(), 2222) {
		t.Error("WaitReady() = false, want true")
	}
}

func TestWaitReadyExhaustsAttempts(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	attempts := 0
	sup.Dial = func(network, addr string, timeout time.Duration) (net.Conn, error) {
		attempts++
		return nil, errors.New("connection refused")
	}

	if sup.WaitReady(context.Background(), 2222) {
		t.Error("WaitReady() = true, want false")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWaitReadyHonorsContext(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	sup.Probe = ProbeConfig{Attempts: 100, Step: 50 * time.Millisecond, MaxDelay: time.Second}
	sup.Dial = func(network, addr string, timeout time.Duration) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sup.WaitReady(ctx, 2222) {
		t.Error("WaitReady() = true after cancellation")
	}
}
