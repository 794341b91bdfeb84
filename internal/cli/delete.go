package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a VM",
	Long: `Delete a stopped VM: its record, disk image, and seed. The deletion
must be confirmed by typing the exact VM name, or by passing it with
--confirm for non-interactive use.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var deleteConfirm string

func init() {
	deleteCmd.Flags().StringVar(&deleteConfirm, "confirm", "", "Confirmation token; must equal the VM name")
}

func runDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	confirmation := deleteConfirm
	if !cmd.Flags().Changed("confirm") {
		fmt.Printf("This removes the record, disk image, and seed of '%s'.\n", name)
		fmt.Print("Type the VM name to confirm: ")
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		confirmation = strings.TrimSpace(input)
	}

	if err := s.manager.DeleteVM(name, confirmation); err != nil {
		return err
	}

	fmt.Printf("Deleted VM '%s'\n", name)
	s.success("vm deleted", "vm", name)
	return nil
}
