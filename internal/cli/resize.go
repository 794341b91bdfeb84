package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resizeCmd = &cobra.Command{
	Use:   "resize <name> <size>",
	Short: "Grow a VM's virtual disk",
	Long: `Grow the virtual disk of a stopped VM to the given size, magnitude plus
unit (e.g. 50G). Shrinking is not supported.

Growing the virtual disk does not grow the guest filesystem; cloud
images typically expand it on the next boot.`,
	Args: cobra.ExactArgs(2),
	RunE: runResize,
}

func runResize(cmd *cobra.Command, args []string) error {
	name, size := args[0], args[1]

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	record, err := s.manager.ResizeVM(cmd.Context(), name, size)
	if err != nil {
		return err
	}

	fmt.Printf("Resized disk of '%s' to %s\n", name, record.DiskSize)
	s.success("vm disk resized", "vm", name, "size", record.DiskSize)
	return nil
}
