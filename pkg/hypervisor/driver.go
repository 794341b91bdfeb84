// Package hypervisor launches and supervises the QEMU process behind a VM.
package hypervisor

import "context"

// Driver is the interface for hypervisor process operations.
// The QEMU implementation is the production driver; tests substitute fakes.
type Driver interface {
	// Launch starts the hypervisor process detached from the caller and
	// returns its PID. The process outlives the calling program.
	Launch(ctx context.Context, spec *LaunchSpec) (int, error)

	// Alive reports whether the process with the given PID still exists.
	Alive(pid int) bool

	// Terminate asks the process to shut down gracefully.
	Terminate(pid int) error

	// Kill forcefully terminates the process.
	Kill(pid int) error

	// Info returns driver metadata.
	Info() Info
}

// Info contains driver metadata.
type Info struct {
	Name   string // "qemu"
	Binary string // resolved binary path
	Arch   string // "amd64" or "arm64"
}
