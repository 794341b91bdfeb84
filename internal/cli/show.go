package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/progamer242688/vm/internal/vm"
)

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show VM details",
	Long: `Show the full configuration record of a VM and its live run state.

The login secret is stored and displayed in cleartext.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	name := args[0]

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	record, err := s.manager.ShowVM(name)
	if err != nil {
		return err
	}
	state := s.manager.RunningState(name)

	fmt.Printf("VM '%s'\n", record.Name)
	fmt.Printf("  State:      %s", state)
	if state == vm.StateRunning {
		fmt.Printf(" (PID %d)", s.manager.RunningPID(name))
	}
	fmt.Println()
	fmt.Printf("  Image:      %s %s\n", record.Family, record.Codename)
	fmt.Printf("  Source:     %s\n", record.SourceURL)
	fmt.Printf("  Hostname:   %s\n", record.Hostname)
	fmt.Printf("  Username:   %s\n", record.Username)
	fmt.Printf("  Secret:     %s (stored in cleartext)\n", record.Secret)
	fmt.Printf("  Disk:       %s\n", record.DiskSize)
	fmt.Printf("  Memory:     %d MB\n", record.MemoryMB)
	fmt.Printf("  CPUs:       %d\n", record.CPUs)
	fmt.Printf("  GUI:        %v\n", record.GUI)
	fmt.Printf("  Forwards:   %s\n", formatForwards(record))
	if len(record.SSHAuthorizedKeys) > 0 {
		fmt.Printf("  SSH keys:   %d injected at first boot\n", len(record.SSHAuthorizedKeys))
	}
	fmt.Printf("  Image path: %s\n", record.ImagePath)
	fmt.Printf("  Seed path:  %s\n", record.SeedPath)
	fmt.Printf("  Created:    %s\n", record.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

// formatForwards renders the stored extra rules plus the management
// mapping the start workflow always appends.
func formatForwards(record *vm.VMRecord) string {
	rules := make([]string, 0, len(record.ExtraForwards)+1)
	rules = append(rules, record.ExtraForwards...)
	rules = append(rules, fmt.Sprintf("%d:22 (ssh)", record.SSHPort))
	return strings.Join(rules, ", ")
}
