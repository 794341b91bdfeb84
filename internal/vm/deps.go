package vm

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Dependency is an external tool vmctl shells out to. Any one of the
// listed commands satisfies it.
type Dependency struct {
	Name        string
	Commands    []string
	Description string
	Optional    bool

	// Packages maps a host OS family to the package providing the tool.
	Packages map[string]string
}

// CheckResult reports whether a dependency was found and where.
type CheckResult struct {
	Dependency Dependency
	Found      bool
	Command    string
}

var hostDeps = []Dependency{
	{
		Name:        "QEMU",
		Commands:    []string{"qemu-system-x86_64", "qemu-system-aarch64"},
		Description: "Run virtual machines",
		Packages: map[string]string{
			"arch":     "qemu-full",
			"ubuntu":   "qemu-system",
			"debian":   "qemu-system",
			"fedora":   "qemu-kvm",
			"rhel":     "qemu-kvm",
			"opensuse": "qemu",
			"macos":    "qemu",
		},
	},
	{
		Name:        "qemu-img",
		Commands:    []string{"qemu-img"},
		Description: "Grow disk images",
		Packages: map[string]string{
			"arch":     "qemu-img",
			"ubuntu":   "qemu-utils",
			"debian":   "qemu-utils",
			"fedora":   "qemu-img",
			"rhel":     "qemu-img",
			"opensuse": "qemu-tools",
			"macos":    "qemu",
		},
	},
	{
		Name:        "ISO builder",
		Commands:    []string{"genisoimage", "mkisofs", "xorriso"},
		Description: "Package seed media",
		Packages: map[string]string{
			"arch":     "libisoburn",
			"ubuntu":   "genisoimage",
			"debian":   "genisoimage",
			"fedora":   "genisoimage",
			"rhel":     "genisoimage",
			"opensuse": "mkisofs",
			"macos":    "cdrtools",
		},
	},
	{
		Name:        "ssh",
		Commands:    []string{"ssh"},
		Description: "Connect to guests over the management port",
		Optional:    true,
		Packages: map[string]string{
			"arch":     "openssh",
			"ubuntu":   "openssh-client",
			"debian":   "openssh-client",
			"fedora":   "openssh-clients",
			"rhel":     "openssh-clients",
			"opensuse": "openssh",
		},
	},
}

// HostDependencies lists every external tool vmctl uses.
func HostDependencies() []Dependency {
	return hostDeps
}

// DependencyManager checks and installs external tools for the host OS.
type DependencyManager struct {
	hostOS string
}

// NewDependencyManager creates a dependency manager for the current host.
func NewDependencyManager() *DependencyManager {
	return &DependencyManager{hostOS: detectHostOS()}
}

// HostOS returns the detected host OS family.
func (m *DependencyManager) HostOS() string {
	return m.hostOS
}

// familyAliases collapses distro IDs into the families we carry package
// names for.
var familyAliases = map[string]string{
	"arch":                "arch",
	"manjaro":             "arch",
	"endeavouros":         "arch",
	"ubuntu":              "ubuntu",
	"linuxmint":           "ubuntu",
	"pop":                 "ubuntu",
	"debian":              "debian",
	"fedora":              "fedora",
	"rhel":                "rhel",
	"centos":              "rhel",
	"rocky":               "rhel",
	"almalinux":           "rhel",
	"opensuse":            "opensuse",
	"opensuse-leap":       "opensuse",
	"opensuse-tumbleweed": "opensuse",
	"suse":                "opensuse",
}

// detectHostOS maps the host to a package-name family via /etc/os-release,
// checking ID first and ID_LIKE for derivatives.
func detectHostOS() string {
	if runtime.GOOS == "darwin" {
		return "macos"
	}

	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return "linux"
	}

	for _, key := range []string{"ID", "ID_LIKE"} {
		for _, line := range strings.Split(string(data), "\n") {
			value, ok := strings.CutPrefix(line, key+"=")
			if !ok {
				continue
			}
			for _, id := range strings.Fields(strings.Trim(value, `"`)) {
				if family, ok := familyAliases[id]; ok {
					return family
				}
			}
		}
	}
	return "linux"
}

// Check looks for any of the dependency's commands on PATH.
func (m *DependencyManager) Check(dep Dependency) CheckResult {
	for _, cmd := range dep.Commands {
		if path, err := exec.LookPath(cmd); err == nil {
			return CheckResult{Dependency: dep, Found: true, Command: path}
		}
	}
	return CheckResult{Dependency: dep, Found: false}
}

// CheckAll checks every host dependency.
func (m *DependencyManager) CheckAll() []CheckResult {
	results := make([]CheckResult, 0, len(hostDeps))
	for _, dep := range hostDeps {
		results = append(results, m.Check(dep))
	}
	return results
}

// PackageFor returns the package providing the dependency on this host,
// or "" when we don't know one.
func (m *DependencyManager) PackageFor(dep Dependency) string {
	return dep.Packages[m.hostOS]
}

// InstallDependency installs a dependency with the host's package manager.
func (m *DependencyManager) InstallDependency(dep Dependency) error {
	pkg := m.PackageFor(dep)
	if pkg == "" {
		return fmt.Errorf("%s is not available on %s, install it manually", dep.Name, m.hostOS)
	}

	var cmd *exec.Cmd
	switch m.hostOS {
	case "arch":
		cmd = exec.Command("sudo", "pacman", "-S", "--noconfirm", pkg)
	case "ubuntu", "debian":
		cmd = exec.Command("sudo", "apt-get", "install", "-y", pkg)
	case "fedora":
		cmd = exec.Command("sudo", "dnf", "install", "-y", pkg)
	case "rhel":
		cmd = exec.Command("sudo", "yum", "install", "-y", pkg)
	case "opensuse":
		cmd = exec.Command("sudo", "zypper", "install", "-y", pkg)
	case "macos":
		cmd = exec.Command("brew", "install", pkg)
	default:
		return fmt.Errorf("unsupported host OS: %s (install %s manually)", m.hostOS, pkg)
	}

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("Installing %s (%s)...\n", dep.Name, pkg)
	return cmd.Run()
}

// InstallMissing installs every required dependency that is not found.
// Optional dependencies are skipped.
func (m *DependencyManager) InstallMissing() error {
	for _, result := range m.CheckAll() {
		if result.Found || result.Dependency.Optional {
			continue
		}
		if err := m.InstallDependency(result.Dependency); err != nil {
			return fmt.Errorf("install %s: %w", result.Dependency.Name, err)
		}
	}
	return nil
}
