package hypervisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestLaunchSpecValidate(t *testing.T) {
	valid := func() *LaunchSpec {
		return &LaunchSpec{
			Name:      "web1",
			ImagePath: "/data/images/web1.img",
			MemoryMB:  2048,
			CPUs:      2,
			PIDFile:   "/data/run/web1.pid",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*LaunchSpec)
		wantErr error
	}{
		{"valid", func(s *LaunchSpec) {}, nil},
		{"zero cpus", func(s *LaunchSpec) { s.CPUs = 0 }, ErrInvalidCPUCount},
		{"low memory", func(s *LaunchSpec) { s.MemoryMB = 64 }, ErrInsufficientMemory},
		{"missing image", func(s *LaunchSpec) { s.ImagePath = "" }, ErrMissingImage},
		{"missing pidfile", func(s *LaunchSpec) { s.PIDFile = "" }, ErrMissingPIDFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid()
			tt.mutate(spec)
			if err := spec.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestArgsHeadless(t *testing.T) {
	q := &QEMU{binary: "/usr/bin/qemu-system-x86_64"}
	spec := &LaunchSpec{
		Name:      "web1",
		ImagePath: "/data/images/web1.img",
		SeedPath:  "/data/seeds/web1-seed.iso",
		MemoryMB:  2048,
		CPUs:      2,
		Forwards: []PortForward{
			{HostPort: 8080, GuestPort: 80},
			{HostPort: 2222, GuestPort: 22},
		},
		PIDFile: "/data/run/web1.pid",
	}

	joined := strings.Join(q.Args(spec), " ")

	for _, want := range []string{
		"-name web1",
		"-m 2048",
		"-smp 2",
		"file=/data/images/web1.img,format=qcow2,if=virtio",
		"file=/data/seeds/web1-seed.iso,format=raw,if=virtio,readonly=on",
		"-display none",
		"-daemonize",
		"-pidfile /data/run/web1.pid",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q:\n%s", want, joined)
		}
	}

	// Forward order must follow the plan order
	netdev := "user,id=net0,hostfwd=tcp::8080-:80,hostfwd=tcp::2222-:22"
	if !strings.Contains(joined, netdev) {
		t.Errorf("netdev should be %q:\n%s", netdev, joined)
	}
}

func TestArgsGUI(t *testing.T) {
	q := &QEMU{binary: "qemu-system-x86_64"}
	spec := &LaunchSpec{
		Name:      "desk1",
		ImagePath: "/data/images/desk1.img",
		MemoryMB:  4096,
		CPUs:      4,
		GUI:       true,
		PIDFile:   "/data/run/desk1.pid",
	}

	joined := strings.Join(q.Args(spec), " ")
	if strings.Contains(joined, "-display none") {
		t.Errorf("GUI launch should not disable the display:\n%s", joined)
	}
}

func TestArgsWithoutSeed(t *testing.T) {
	q := &QEMU{binary: "qemu-system-x86_64"}
	spec := &LaunchSpec{
		Name:      "bare",
		ImagePath: "/data/images/bare.img",
		MemoryMB:  1024,
		CPUs:      1,
		PIDFile:   "/data/run/bare.pid",
	}

	joined := strings.Join(q.Args(spec), " ")
	if strings.Contains(joined, "format=raw") {
		t.Errorf("no seed drive expected:\n%s", joined)
	}
}

func TestFindBinaryOverride(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "qemu-system-x86_64")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("failed to write fake binary: %v", err)
	}

	got, err := findBinary(fake)
	if err != nil {
		t.Fatalf("findBinary with override failed: %v", err)
	}
	if got != fake {
		t.Errorf("findBinary = %q, want %q", got, fake)
	}
}

func TestFindBinaryOverrideMissing(t *testing.T) {
	_, err := findBinary(filepath.Join(t.TempDir(), "no-such-qemu"))
	if err == nil {
		t.Fatal("expected error for missing override")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error should mention the missing binary: %v", err)
	}
}

func TestReadPIDFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "web1.pid")
	if err := os.WriteFile(path, []byte("1234\n"), 0644); err != nil {
		t.Fatalf("failed to write pid file: %v", err)
	}

	pid, err := ReadPIDFile(path)
	if err != nil {
		t.Fatalf("ReadPIDFile failed: %v", err)
	}
	if pid != 1234 {
		t.Errorf("pid = %d, want 1234", pid)
	}

	bad := filepath.Join(dir, "bad.pid")
	if err := os.WriteFile(bad, []byte("not-a-pid"), 0644); err != nil {
		t.Fatalf("failed to write pid file: %v", err)
	}
	if _, err := ReadPIDFile(bad); err == nil {
		t.Error("expected error for malformed pid file")
	}

	if _, err := ReadPIDFile(filepath.Join(dir, "absent.pid")); err == nil {
		t.Error("expected error for missing pid file")
	}
}

func TestAlive(t *testing.T) {
	q := &QEMU{binary: "qemu-system-x86_64"}

	if !q.Alive(os.Getpid()) {
		t.Error("current process should be alive")
	}

	// A reaped child is no longer alive
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot run 'true': %v", err)
	}
	if q.Alive(cmd.Process.Pid) {
		t.Error("reaped process should not be alive")
	}
}
