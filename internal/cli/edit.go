package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/progamer242688/vm/internal/vm"
)

var editCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Edit a VM's configuration",
	Long: `Edit fields of an existing VM record. Only the given flags change;
everything else is kept. Changing the hostname, username, secret, or
authorized keys rebuilds the first-boot seed so the next start picks up
the new identity. The cached disk image is never touched.

The disk size cannot be edited here; use 'vmctl resize'.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

// Flags for edit
var (
	editHostname string
	editUsername string
	editSecret   string
	editMemory   int
	editCPUs     int
	editSSHPort  int
	editGUI      bool
	editForwards []string
	editKeys     []string
)

func init() {
	editCmd.Flags().StringVar(&editHostname, "hostname", "", "New guest hostname")
	editCmd.Flags().StringVarP(&editUsername, "username", "u", "", "New login account")
	editCmd.Flags().StringVar(&editSecret, "secret", "", "New login secret")
	editCmd.Flags().IntVarP(&editMemory, "memory", "m", 0, "New memory in MB")
	editCmd.Flags().IntVarP(&editCPUs, "cpus", "c", 0, "New number of virtual CPUs")
	editCmd.Flags().IntVarP(&editSSHPort, "ssh-port", "p", 0, "New host port forwarded to guest SSH")
	editCmd.Flags().BoolVar(&editGUI, "gui", false, "Launch with a graphical display")
	editCmd.Flags().StringArrayVarP(&editForwards, "forward", "f", nil, "Replace the extra port forwards (repeatable)")
	editCmd.Flags().StringArrayVar(&editKeys, "authorized-key", nil, "Replace the injected SSH public keys (repeatable)")
}

func runEdit(cmd *cobra.Command, args []string) error {
	name := args[0]

	var changes vm.FieldChanges
	flags := cmd.Flags()
	if flags.Changed("hostname") {
		changes.Hostname = &editHostname
	}
	if flags.Changed("username") {
		changes.Username = &editUsername
	}
	if flags.Changed("secret") {
		changes.Secret = &editSecret
	}
	if flags.Changed("memory") {
		changes.MemoryMB = &editMemory
	}
	if flags.Changed("cpus") {
		changes.CPUs = &editCPUs
	}
	if flags.Changed("ssh-port") {
		changes.SSHPort = &editSSHPort
	}
	if flags.Changed("gui") {
		changes.GUI = &editGUI
	}
	if flags.Changed("forward") {
		changes.ExtraForwards = &editForwards
	}
	if flags.Changed("authorized-key") {
		changes.SSHAuthorizedKeys = &editKeys
	}
	if changes == (vm.FieldChanges{}) {
		return fmt.Errorf("no changes given; see 'vmctl edit --help'")
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.manager.EditVM(cmd.Context(), name, changes); err != nil {
		return err
	}

	fmt.Printf("Updated VM '%s'\n", name)
	if s.manager.RunningState(name) == vm.StateRunning {
		fmt.Println("The VM is running; changes take effect at the next start.")
	}
	s.success("vm updated", "vm", name)
	return nil
}
