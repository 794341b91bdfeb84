package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all vmctl tool configuration. Per-VM settings live in the
// VM record files, not here; this covers tool behavior and the defaults
// applied when creating new VMs.
type Config struct {
	// DataDir overrides the root data directory (empty = ~/.vmctl).
	DataDir string `mapstructure:"data_dir"`

	// QEMUBinary is an explicit hypervisor binary path (empty = autodetect).
	QEMUBinary string `mapstructure:"qemu_binary"`

	// DefaultImage is the catalog label used when create is not given one.
	DefaultImage string `mapstructure:"default_image"`

	// DefaultMemoryMB is the RAM in megabytes for new VMs.
	DefaultMemoryMB int `mapstructure:"default_memory_mb"`

	// DefaultCPUs is the number of virtual CPUs for new VMs.
	DefaultCPUs int `mapstructure:"default_cpus"`

	// DefaultDiskSize is the virtual disk size for new VMs (e.g. "20G").
	DefaultDiskSize string `mapstructure:"default_disk_size"`

	// DefaultSSHPort is the host port forwarded to guest SSH for new VMs.
	DefaultSSHPort int `mapstructure:"default_ssh_port"`

	// ProbeAttempts is how many times start polls the SSH port before
	// reporting the VM as booting in the background.
	ProbeAttempts int `mapstructure:"probe_attempts"`

	// ProbeStepMS is the backoff increment between poll attempts, in
	// milliseconds. Attempt n waits n*step, capped at ProbeMaxDelayMS.
	ProbeStepMS int `mapstructure:"probe_step_ms"`

	// ProbeMaxDelayMS caps the per-attempt backoff, in milliseconds.
	ProbeMaxDelayMS int `mapstructure:"probe_max_delay_ms"`

	// StopGraceSeconds is how long stop waits after SIGTERM before
	// escalating to SIGKILL.
	StopGraceSeconds int `mapstructure:"stop_grace_seconds"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:          "",
		QEMUBinary:       "",
		DefaultImage:     "ubuntu-24.04",
		DefaultMemoryMB:  2048,
		DefaultCPUs:      2,
		DefaultDiskSize:  "20G",
		DefaultSSHPort:   2222,
		ProbeAttempts:    30,
		ProbeStepMS:      500,
		ProbeMaxDelayMS:  3000,
		StopGraceSeconds: 10,
	}
}

// Global holds the loaded configuration.
var Global *Config

// Load reads configuration from file, environment, and defaults.
func Load() error {
	paths, err := GetPaths()
	if err != nil {
		return fmt.Errorf("failed to determine paths: %w", err)
	}

	// Set defaults
	defaults := DefaultConfig()
	viper.SetDefault("data_dir", defaults.DataDir)
	viper.SetDefault("qemu_binary", defaults.QEMUBinary)
	viper.SetDefault("default_image", defaults.DefaultImage)
	viper.SetDefault("default_memory_mb", defaults.DefaultMemoryMB)
	viper.SetDefault("default_cpus", defaults.DefaultCPUs)
	viper.SetDefault("default_disk_size", defaults.DefaultDiskSize)
	viper.SetDefault("default_ssh_port", defaults.DefaultSSHPort)
	viper.SetDefault("probe_attempts", defaults.ProbeAttempts)
	viper.SetDefault("probe_step_ms", defaults.ProbeStepMS)
	viper.SetDefault("probe_max_delay_ms", defaults.ProbeMaxDelayMS)
	viper.SetDefault("stop_grace_seconds", defaults.StopGraceSeconds)

	// Config file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(paths.DataDir)
	viper.AddConfigPath(paths.ConfigDir)

	// Environment variable support: VMCTL_DATA_DIR, VMCTL_PROBE_ATTEMPTS, etc.
	viper.SetEnvPrefix("VMCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (optional - not an error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK - we use defaults
	}

	// Unmarshal into struct
	Global = &Config{}
	if err := viper.Unmarshal(Global); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return nil
}

// ActivePaths returns the path layout with the data_dir override from the
// loaded configuration applied. Call after Load.
func ActivePaths() (*Paths, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, err
	}
	if Global != nil && Global.DataDir != "" {
		paths.DataDir = Global.DataDir
	}
	return paths, nil
}

// ConfigFileUsed returns the path of the config file being used, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
