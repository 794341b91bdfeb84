package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all VMs",
	Long:  `List every VM record with its live run state, in name order.`,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	names, err := s.manager.ListVMs()
	if err != nil {
		return fmt.Errorf("list VMs: %w", err)
	}
	if len(names) == 0 {
		fmt.Println("No VMs found. Create one with: vmctl create <name>")
		return nil
	}

	fmt.Printf("%-20s %-9s %8s %5s %9s\n", "NAME", "STATE", "MEMORY", "CPUS", "SSH PORT")
	for _, name := range names {
		record, err := s.manager.ShowVM(name)
		if err != nil {
			fmt.Printf("%-20s %-9s\n", name, "unreadable")
			continue
		}
		state := s.manager.RunningState(name)
		fmt.Printf("%-20s %-9s %5d MB %5d %9d\n",
			record.Name, state, record.MemoryMB, record.CPUs, record.SSHPort)
	}
	return nil
}
