package hypervisor

import "errors"

// Configuration errors
var (
	ErrInvalidCPUCount    = errors.New("hypervisor: CPU count must be at least 1")
	ErrInsufficientMemory = errors.New("hypervisor: memory must be at least 128MB")
	ErrMissingImage       = errors.New("hypervisor: disk image path is required")
	ErrMissingPIDFile     = errors.New("hypervisor: PID file path is required")
)

// Platform errors
var (
	ErrBinaryNotFound = errors.New("hypervisor: QEMU binary not found")
)
