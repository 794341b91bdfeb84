package vm

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/docker/go-units"
)

// VMRecord is the durable configuration of one virtual machine. The name
// is the storage key; image and seed paths are derived from it at creation
// time and never change afterwards.
//
// The login secret is stored in cleartext and shown by the info view.
// This is a known, deliberate exposure of the record format.
type VMRecord struct {
	Name     string `yaml:"name"`
	Family   string `yaml:"os_family"`
	Codename string `yaml:"os_codename"`

	// SourceURL is where the base disk image is downloaded from.
	SourceURL string `yaml:"source_url"`

	Hostname string `yaml:"hostname"`
	Username string `yaml:"username"`
	Secret   string `yaml:"secret"`

	// DiskSize is the target virtual disk size, magnitude plus unit ("20G").
	DiskSize string `yaml:"disk_size"`
	MemoryMB int    `yaml:"memory_mb"`
	CPUs     int    `yaml:"cpus"`

	// SSHPort is the host port forwarded to guest port 22.
	SSHPort int  `yaml:"ssh_port"`
	GUI     bool `yaml:"gui"`

	// ExtraForwards are operator-supplied "host:guest" rules, kept in the
	// order supplied. They are validated when a forwarding plan is built,
	// not here.
	ExtraForwards []string `yaml:"extra_forwards,omitempty"`

	// SSHAuthorizedKeys are public keys injected at first boot.
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys,omitempty"`

	ImagePath string    `yaml:"image_path"`
	SeedPath  string    `yaml:"seed_path"`
	CreatedAt time.Time `yaml:"created_at"`
}

var (
	nameRe     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	diskSizeRe = regexp.MustCompile(`^[1-9][0-9]*[KMGT]$`)
	usernameRe = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)
)

// ValidName reports whether name is usable as a VM name and storage key.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}

// ValidPort reports whether p is an acceptable forwarding port.
func ValidPort(p int) bool {
	return p >= 23 && p <= 65535
}

// ValidDiskSize reports whether size matches the magnitude+unit pattern.
func ValidDiskSize(size string) bool {
	return diskSizeRe.MatchString(size)
}

// ValidUsername reports whether name is a usable POSIX account name.
func ValidUsername(name string) bool {
	return len(name) <= 32 && usernameRe.MatchString(name)
}

// Validate checks every record invariant, returning the first violation.
func (r *VMRecord) Validate() error {
	if !ValidName(r.Name) {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("%q must match %s", r.Name, nameRe)}
	}
	if !ValidPort(r.SSHPort) {
		return &ValidationError{Field: "ssh_port", Message: fmt.Sprintf("%d outside allowed range 23-65535", r.SSHPort)}
	}
	if !ValidDiskSize(r.DiskSize) {
		return &ValidationError{Field: "disk_size", Message: fmt.Sprintf("%q must be a magnitude plus unit, e.g. 20G", r.DiskSize)}
	}
	if !ValidUsername(r.Username) {
		return &ValidationError{Field: "username", Message: fmt.Sprintf("%q is not a valid account name", r.Username)}
	}
	if r.MemoryMB <= 0 {
		return &ValidationError{Field: "memory_mb", Message: "must be positive"}
	}
	if r.CPUs <= 0 {
		return &ValidationError{Field: "cpus", Message: "must be positive"}
	}
	if r.SourceURL == "" {
		return &ValidationError{Field: "source_url", Message: "must not be empty"}
	}
	return nil
}

// DiskSizeBytes converts the disk size string to bytes.
func (r *VMRecord) DiskSizeBytes() (int64, error) {
	n, err := units.RAMInBytes(r.DiskSize)
	if err != nil {
		return 0, &ValidationError{Field: "disk_size", Message: err.Error()}
	}
	return n, nil
}

// IdentityEquals reports whether the seed-relevant fields of two records
// match. A seed rebuild is needed when they do not.
func (r *VMRecord) IdentityEquals(other *VMRecord) bool {
	return r.Hostname == other.Hostname &&
		r.Username == other.Username &&
		r.Secret == other.Secret
}

// ImagePathFor derives the disk image location for a VM name.
func ImagePathFor(imagesDir, name string) string {
	return filepath.Join(imagesDir, name+".img")
}

// SeedPathFor derives the seed ISO location for a VM name.
func SeedPathFor(seedsDir, name string) string {
	return filepath.Join(seedsDir, name+"-seed.iso")
}

// PIDPathFor derives the PID file location for a VM name.
func PIDPathFor(runDir, name string) string {
	return filepath.Join(runDir, name+".pid")
}
