package hypervisor

// PortForward maps a host port to a guest port for user-mode networking.
type PortForward struct {
	HostPort  int
	GuestPort int
}

// LaunchSpec holds everything needed to launch one VM process.
type LaunchSpec struct {
	// Name identifies the VM; shown in the process list.
	Name string

	// ImagePath is the path to the root disk image.
	ImagePath string

	// SeedPath is the path to the first-boot seed ISO (optional).
	SeedPath string

	// MemoryMB is the amount of memory in megabytes.
	MemoryMB int

	// CPUs is the number of virtual CPUs.
	CPUs int

	// GUI enables the graphical display; headless otherwise.
	GUI bool

	// Forwards lists host-to-guest port mappings, applied in order.
	Forwards []PortForward

	// PIDFile is where the daemonized process records its PID.
	PIDFile string
}

// Validate performs basic validation of the launch spec.
func (s *LaunchSpec) Validate() error {
	if s.CPUs < 1 {
		return ErrInvalidCPUCount
	}
	if s.MemoryMB < 128 {
		return ErrInsufficientMemory
	}
	if s.ImagePath == "" {
		return ErrMissingImage
	}
	if s.PIDFile == "" {
		return ErrMissingPIDFile
	}
	return nil
}
