package vm

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/progamer242688/vm/pkg/hypervisor"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDriver mimics the launch contract of the QEMU driver: the launched
// process writes its PID file and stays alive until signaled.
type fakeDriver struct {
	mu         sync.Mutex
	nextPID    int
	alive      map[int]bool
	launched   []*hypervisor.LaunchSpec
	terminated []int
	killed     []int

	launchErr  error
	ignoreTerm bool // process ignores graceful termination
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{nextPID: 1000, alive: make(map[int]bool)}
}

func (d *fakeDriver) Launch(ctx context.Context, spec *hypervisor.LaunchSpec) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.launchErr != nil {
		return 0, d.launchErr
	}
	d.nextPID++
	pid := d.nextPID
	if err := os.WriteFile(spec.PIDFile, []byte(fmt.Sprintf("%d\n", pid)), 0644); err != nil {
		return 0, err
	}
	d.alive[pid] = true
	d.launched = append(d.launched, spec)
	return pid, nil
}

func (d *fakeDriver) Alive(pid int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alive[pid]
}

func (d *fakeDriver) Terminate(pid int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.terminated = append(d.terminated, pid)
	if !d.ignoreTerm {
		d.alive[pid] = false
	}
	return nil
}

func (d *fakeDriver) Kill(pid int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.killed = append(d.killed, pid)
	d.alive[pid] = false
	return nil
}

func (d *fakeDriver) Info() hypervisor.Info {
	return hypervisor.Info{Name: "fake", Binary: "fake-hypervisor"}
}

func (d *fakeDriver) launchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.launched)
}

func (d *fakeDriver) lastLaunched() *hypervisor.LaunchSpec {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.launched) == 0 {
		return nil
	}
	return d.launched[len(d.launched)-1]
}

// countingPackager records seed builds and keeps the staged documents so
// tests can assert on their content.
type countingPackager struct {
	mu           sync.Mutex
	builds       int
	fail         error
	lastUserData string
	lastMetaData string
}

func (p *countingPackager) packager() ISOPackager {
	return func(srcDir, isoPath string) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.fail != nil {
			return p.fail
		}
		userData, err := os.ReadFile(filepath.Join(srcDir, "user-data"))
		if err != nil {
			return err
		}
		metaData, err := os.ReadFile(filepath.Join(srcDir, "meta-data"))
		if err != nil {
			return err
		}
		p.lastUserData = string(userData)
		p.lastMetaData = string(metaData)
		p.builds++
		return os.WriteFile(isoPath, append(userData, metaData...), 0644)
	}
}

func (p *countingPackager) buildCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.builds
}

// dialSuccess satisfies the readiness probe on the first attempt.
func dialSuccess(network, addr string, timeout time.Duration) (net.Conn, error) {
	client, server := net.Pipe()
	server.Close()
	return client, nil
}

// testAuthorizedKey returns a freshly generated public key in
// authorized_keys format.
func testAuthorizedKey(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimRight(string(ssh.MarshalAuthorizedKey(sshPub)), "\n")
}

// testRecord returns a valid record with artifact paths under a temp dir.
func testRecord(t *testing.T, name string) *VMRecord {
	t.Helper()
	dir := t.TempDir()
	return &VMRecord{
		Name:      name,
		Family:    "ubuntu",
		Codename:  "noble",
		SourceURL: "http://images.invalid/base.img",
		Hostname:  name,
		Username:  "ubuntu",
		Secret:    "changeme",
		DiskSize:  "20G",
		MemoryMB:  1024,
		CPUs:      2,
		SSHPort:   2222,
		ImagePath: filepath.Join(dir, name+".img"),
		SeedPath:  filepath.Join(dir, name+"-seed.iso"),
		CreatedAt: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
	}
}
