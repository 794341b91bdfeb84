// Package config provides configuration management for vmctl.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds platform-specific directory paths for vmctl.
type Paths struct {
	// ConfigDir is the directory for configuration files.
	// macOS: ~/Library/Application Support/vmctl
	// Linux: ~/.config/vmctl (or XDG_CONFIG_HOME)
	ConfigDir string

	// DataDir is the root for VM records, disk images, seed media and
	// runtime files. All platforms: ~/.vmctl
	DataDir string

	// ConfigFile is the path to the main config file.
	ConfigFile string
}

// GetPaths returns platform-aware paths for vmctl.
func GetPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	p := &Paths{}

	// Data directory is always ~/.vmctl
	p.DataDir = filepath.Join(home, ".vmctl")

	// Config directory is platform-specific
	switch runtime.GOOS {
	case "darwin":
		p.ConfigDir = filepath.Join(home, "Library", "Application Support", "vmctl")
	default: // Linux and others
		// Respect XDG_CONFIG_HOME if set
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			p.ConfigDir = filepath.Join(xdgConfig, "vmctl")
		} else {
			p.ConfigDir = filepath.Join(home, ".config", "vmctl")
		}
	}

	// Config file lives in data directory for simplicity
	p.ConfigFile = filepath.Join(p.DataDir, "config.yaml")

	return p, nil
}

// VMsDir is where one record file per VM lives.
func (p *Paths) VMsDir() string { return filepath.Join(p.DataDir, "vms") }

// ImagesDir is where per-VM disk images live.
func (p *Paths) ImagesDir() string { return filepath.Join(p.DataDir, "images") }

// SeedsDir is where per-VM seed ISOs live.
func (p *Paths) SeedsDir() string { return filepath.Join(p.DataDir, "seeds") }

// RunDir is where per-VM PID files live.
func (p *Paths) RunDir() string { return filepath.Join(p.DataDir, "run") }

// LogFile is the append-only action log.
func (p *Paths) LogFile() string { return filepath.Join(p.DataDir, "vmctl.log") }

// CatalogFile is the optional OS image catalog override.
func (p *Paths) CatalogFile() string { return filepath.Join(p.ConfigDir, "catalog.yaml") }

// EnsureDirectories creates every directory vmctl writes into.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.ConfigDir,
		p.DataDir,
		p.VMsDir(),
		p.ImagesDir(),
		p.SeedsDir(),
		p.RunDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
