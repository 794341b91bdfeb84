package hypervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

// QEMU is the production driver. It launches qemu-system with -daemonize
// so the VM process detaches from vmctl and records its PID in a file.
type QEMU struct {
	binary string
}

// NewQEMU resolves the QEMU binary and returns a driver.
// binaryOverride takes precedence over PATH lookup when non-empty.
func NewQEMU(binaryOverride string) (*QEMU, error) {
	binary, err := findBinary(binaryOverride)
	if err != nil {
		return nil, err
	}
	return &QEMU{binary: binary}, nil
}

// findBinary locates the QEMU system emulator for the host architecture.
func findBinary(override string) (string, error) {
	// 1. Explicit override from configuration
	if override != "" {
		if _, err := os.Stat(override); err == nil {
			return override, nil
		}
		return "", fmt.Errorf("%w: configured binary %q not found", ErrBinaryNotFound, override)
	}

	name := binaryName()

	// 2. Search in PATH
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	// 3. Check common installation locations
	commonPaths := []string{
		"/usr/bin/" + name,
		"/usr/local/bin/" + name,
		"/opt/homebrew/bin/" + name,
	}
	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: %s not in PATH or common locations; install QEMU or set qemu_binary", ErrBinaryNotFound, name)
}

func binaryName() string {
	switch runtime.GOARCH {
	case "arm64":
		return "qemu-system-aarch64"
	default:
		return "qemu-system-x86_64"
	}
}

func accelerators() string {
	switch runtime.GOOS {
	case "linux":
		return "kvm:tcg"
	case "darwin":
		return "hvf:tcg"
	default:
		return "tcg"
	}
}

// Args builds the QEMU command line for a launch spec.
func (q *QEMU) Args(spec *LaunchSpec) []string {
	args := []string{
		"-name", spec.Name,
		"-machine", "accel=" + accelerators(),
		"-m", strconv.Itoa(spec.MemoryMB),
		"-smp", strconv.Itoa(spec.CPUs),
		"-drive", fmt.Sprintf("file=%s,format=qcow2,if=virtio", spec.ImagePath),
	}

	if spec.SeedPath != "" {
		args = append(args, "-drive", fmt.Sprintf("file=%s,format=raw,if=virtio,readonly=on", spec.SeedPath))
	}

	var netdev strings.Builder
	netdev.WriteString("user,id=net0")
	for _, fw := range spec.Forwards {
		fmt.Fprintf(&netdev, ",hostfwd=tcp::%d-:%d", fw.HostPort, fw.GuestPort)
	}
	args = append(args,
		"-netdev", netdev.String(),
		"-device", "virtio-net-pci,netdev=net0",
	)

	if !spec.GUI {
		args = append(args, "-display", "none")
	}

	args = append(args,
		"-daemonize",
		"-pidfile", spec.PIDFile,
	)
	return args
}

// Launch starts the VM process. With -daemonize the foreground QEMU exits
// once the VM is initialized, leaving the daemonized child running; the
// child's PID is read back from the PID file.
func (q *QEMU) Launch(ctx context.Context, spec *LaunchSpec) (int, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, q.binary, q.Args(spec)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return 0, fmt.Errorf("qemu launch failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	pid, err := ReadPIDFile(spec.PIDFile)
	if err != nil {
		return 0, fmt.Errorf("qemu did not record a PID: %w", err)
	}
	return pid, nil
}

// ReadPIDFile parses the PID recorded by a daemonized process.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed PID file %s: %w", path, err)
	}
	return pid, nil
}

// Alive reports whether the process exists, using signal 0 which performs
// the existence check without delivering anything.
func (q *QEMU) Alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Terminate sends SIGTERM for a graceful guest shutdown.
func (q *QEMU) Terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}

// Kill sends SIGKILL.
func (q *QEMU) Kill(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGKILL)
}

// Info returns driver metadata.
func (q *QEMU) Info() Info {
	return Info{
		Name:   "qemu",
		Binary: q.binary,
		Arch:   runtime.GOARCH,
	}
}

// Version reports the QEMU version string, best effort.
func (q *QEMU) Version(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, q.binary, "--version").Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}
