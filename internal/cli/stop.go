package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Stop a running VM",
	Long: `Stop a running VM: ask the hypervisor process to shut down, wait for
the grace window, and force-kill it if it is still alive afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	name := args[0]

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.manager.StopVM(cmd.Context(), name); err != nil {
		return err
	}

	fmt.Printf("Stopped VM '%s'\n", name)
	s.success("vm stopped", "vm", name)
	return nil
}
