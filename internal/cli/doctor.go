package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/progamer242688/vm/internal/vm"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check host dependencies",
	Long: `Check that the host tools vmctl relies on are installed: the QEMU
system emulator, qemu-img, and an ISO builder for seed media.

With --install, missing required tools are installed through the host
package manager (may prompt for sudo).`,
	RunE: runDoctor,
}

var doctorInstall bool

func init() {
	doctorCmd.Flags().BoolVar(&doctorInstall, "install", false, "Install missing dependencies with the host package manager")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	dm := vm.NewDependencyManager()
	fmt.Printf("Host OS: %s\n\n", dm.HostOS())

	missing := 0
	for _, result := range dm.CheckAll() {
		status := "ok"
		detail := result.Command
		if !result.Found {
			status = "missing"
			detail = ""
			if pkg := dm.PackageFor(result.Dependency); pkg != "" {
				detail = "install: " + pkg
			}
			if !result.Dependency.Optional {
				missing++
			}
		}
		optional := ""
		if result.Dependency.Optional {
			optional = " (optional)"
		}
		fmt.Printf("  %-12s %-8s %s%s\n", result.Dependency.Name, status, detail, optional)
	}
	fmt.Println()

	if missing == 0 {
		fmt.Println("All required tools are present.")
		return nil
	}
	if doctorInstall {
		if err := dm.InstallMissing(); err != nil {
			return err
		}
		fmt.Println("Installed missing dependencies.")
		return nil
	}
	return fmt.Errorf("%d required tool(s) missing; re-run with --install or install them manually", missing)
}
