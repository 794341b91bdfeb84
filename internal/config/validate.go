package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration issue.
type ValidationError struct {
	Field   string
	Message string
	Fatal   bool // true = can't proceed, false = will be corrected silently
}

// Validate checks tool configuration for values that would break the
// start/stop workflows. Non-fatal findings are clamped back to defaults
// by the caller; fatal ones abort startup.
func Validate(cfg *Config) []ValidationError {
	var errors []ValidationError
	defaults := DefaultConfig()

	if cfg.DefaultSSHPort < 23 || cfg.DefaultSSHPort > 65535 {
		errors = append(errors, ValidationError{
			Field:   "default_ssh_port",
			Message: fmt.Sprintf("port %d outside allowed range 23-65535", cfg.DefaultSSHPort),
			Fatal:   true,
		})
	}

	if cfg.DefaultMemoryMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "default_memory_mb",
			Message: fmt.Sprintf("must be positive, using %d", defaults.DefaultMemoryMB),
			Fatal:   false,
		})
		cfg.DefaultMemoryMB = defaults.DefaultMemoryMB
	}

	if cfg.DefaultCPUs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "default_cpus",
			Message: fmt.Sprintf("must be positive, using %d", defaults.DefaultCPUs),
			Fatal:   false,
		})
		cfg.DefaultCPUs = defaults.DefaultCPUs
	}

	if cfg.ProbeAttempts <= 0 {
		errors = append(errors, ValidationError{
			Field:   "probe_attempts",
			Message: fmt.Sprintf("must be positive, using %d", defaults.ProbeAttempts),
			Fatal:   false,
		})
		cfg.ProbeAttempts = defaults.ProbeAttempts
	}

	if cfg.ProbeStepMS <= 0 {
		errors = append(errors, ValidationError{
			Field:   "probe_step_ms",
			Message: fmt.Sprintf("must be positive, using %d", defaults.ProbeStepMS),
			Fatal:   false,
		})
		cfg.ProbeStepMS = defaults.ProbeStepMS
	}

	if cfg.ProbeMaxDelayMS < cfg.ProbeStepMS {
		errors = append(errors, ValidationError{
			Field:   "probe_max_delay_ms",
			Message: "cap below step, using step as cap",
			Fatal:   false,
		})
		cfg.ProbeMaxDelayMS = cfg.ProbeStepMS
	}

	if cfg.StopGraceSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "stop_grace_seconds",
			Message: fmt.Sprintf("must be positive, using %d", defaults.StopGraceSeconds),
			Fatal:   false,
		})
		cfg.StopGraceSeconds = defaults.StopGraceSeconds
	}

	return errors
}

// FormatValidationErrors returns human-readable error summary.
func FormatValidationErrors(errors []ValidationError) string {
	if len(errors) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Configuration warnings:\n")
	for _, e := range errors {
		prefix := "Warning"
		if e.Fatal {
			prefix = "Error"
		}
		fmt.Fprintf(&b, "  %s [%s]: %s\n", prefix, e.Field, e.Message)
	}
	return b.String()
}
