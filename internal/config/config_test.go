package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig should not return nil")
	}

	// Check memory default
	if cfg.DefaultMemoryMB != 2048 {
		t.Errorf("DefaultMemoryMB should be 2048, got %d", cfg.DefaultMemoryMB)
	}

	// Check vCPU default
	if cfg.DefaultCPUs != 2 {
		t.Errorf("DefaultCPUs should be 2, got %d", cfg.DefaultCPUs)
	}

	// Check disk size default
	if cfg.DefaultDiskSize != "20G" {
		t.Errorf("DefaultDiskSize should be %q, got %q", "20G", cfg.DefaultDiskSize)
	}

	// Check SSH port default
	if cfg.DefaultSSHPort != 2222 {
		t.Errorf("DefaultSSHPort should be 2222, got %d", cfg.DefaultSSHPort)
	}

	// Probe must be bounded
	if cfg.ProbeAttempts <= 0 {
		t.Errorf("ProbeAttempts should be positive, got %d", cfg.ProbeAttempts)
	}
	if cfg.ProbeMaxDelayMS < cfg.ProbeStepMS {
		t.Errorf("ProbeMaxDelayMS (%d) should be >= ProbeStepMS (%d)", cfg.ProbeMaxDelayMS, cfg.ProbeStepMS)
	}

	// Stop grace window
	if cfg.StopGraceSeconds != 10 {
		t.Errorf("StopGraceSeconds should be 10, got %d", cfg.StopGraceSeconds)
	}
}

func TestGetPaths(t *testing.T) {
	paths, err := GetPaths()
	if err != nil {
		t.Fatalf("GetPaths failed: %v", err)
	}

	if paths == nil {
		t.Fatal("GetPaths should not return nil")
	}

	// DataDir should be set
	if paths.DataDir == "" {
		t.Error("DataDir should not be empty")
	}

	// ConfigDir should be set
	if paths.ConfigDir == "" {
		t.Error("ConfigDir should not be empty")
	}

	// ConfigFile should be set
	if paths.ConfigFile == "" {
		t.Error("ConfigFile should not be empty")
	}

	if !filepath.IsAbs(paths.DataDir) {
		t.Error("DataDir should be absolute path")
	}
}

func TestPathsLayout(t *testing.T) {
	p := &Paths{
		ConfigDir: "/cfg",
		DataDir:   "/data",
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"vms", p.VMsDir(), filepath.Join("/data", "vms")},
		{"images", p.ImagesDir(), filepath.Join("/data", "images")},
		{"seeds", p.SeedsDir(), filepath.Join("/data", "seeds")},
		{"run", p.RunDir(), filepath.Join("/data", "run")},
		{"log", p.LogFile(), filepath.Join("/data", "vmctl.log")},
		{"catalog", p.CatalogFile(), filepath.Join("/cfg", "catalog.yaml")},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s path: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	p := &Paths{
		ConfigDir: filepath.Join(tmpDir, "config"),
		DataDir:   filepath.Join(tmpDir, "data"),
	}

	if err := p.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{p.ConfigDir, p.DataDir, p.VMsDir(), p.ImagesDir(), p.SeedsDir(), p.RunDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("directory %s was not created: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s should be a directory", dir)
		}
	}
}

func TestValidateClampsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultMemoryMB = -1
	cfg.ProbeAttempts = 0
	cfg.ProbeMaxDelayMS = 1 // below step

	errs := Validate(cfg)
	if len(errs) != 3 {
		t.Fatalf("expected 3 validation findings, got %d: %v", len(errs), errs)
	}
	for _, e := range errs {
		if e.Fatal {
			t.Errorf("finding for %s should be non-fatal", e.Field)
		}
	}

	defaults := DefaultConfig()
	if cfg.DefaultMemoryMB != defaults.DefaultMemoryMB {
		t.Errorf("DefaultMemoryMB should be clamped to %d, got %d", defaults.DefaultMemoryMB, cfg.DefaultMemoryMB)
	}
	if cfg.ProbeAttempts != defaults.ProbeAttempts {
		t.Errorf("ProbeAttempts should be clamped to %d, got %d", defaults.ProbeAttempts, cfg.ProbeAttempts)
	}
	if cfg.ProbeMaxDelayMS != cfg.ProbeStepMS {
		t.Errorf("ProbeMaxDelayMS should be clamped to step %d, got %d", cfg.ProbeStepMS, cfg.ProbeMaxDelayMS)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultSSHPort = 22 // below the allowed floor of 23

	errs := Validate(cfg)
	if len(errs) != 1 {
		t.Fatalf("expected 1 validation finding, got %d", len(errs))
	}
	if !errs[0].Fatal {
		t.Error("out-of-range default_ssh_port should be fatal")
	}
	if errs[0].Field != "default_ssh_port" {
		t.Errorf("finding field: got %q, want %q", errs[0].Field, "default_ssh_port")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if errs := Validate(DefaultConfig()); len(errs) != 0 {
		t.Errorf("default config should validate cleanly, got %v", errs)
	}
}

func TestFormatValidationErrors(t *testing.T) {
	if got := FormatValidationErrors(nil); got != "" {
		t.Errorf("empty findings should format to empty string, got %q", got)
	}

	out := FormatValidationErrors([]ValidationError{
		{Field: "probe_attempts", Message: "must be positive", Fatal: false},
		{Field: "default_ssh_port", Message: "out of range", Fatal: true},
	})
	for _, want := range []string{"Warning [probe_attempts]", "Error [default_ssh_port]"} {
		if !strings.Contains(out, want) {
			t.Errorf("formatted output missing %q:\n%s", want, out)
		}
	}
}
