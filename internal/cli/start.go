package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Start a VM",
	Long: `Start a VM: re-provision any missing artifacts, build the port
forwarding plan, and launch the hypervisor process detached from this
invocation.

By default start waits for the guest SSH port to accept a connection.
With --wait=false it returns as soon as the process is launched.`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

var startWait bool

func init() {
	startCmd.Flags().BoolVar(&startWait, "wait", true, "Wait for the guest SSH port to accept connections")
}

func runStart(cmd *cobra.Command, args []string) error {
	name := args[0]

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, report := workflowContext(cmd.Context())
	defer report()

	result, err := s.manager.StartVM(ctx, name, startWait)
	if err != nil {
		return err
	}
	printWarnings(result.Warnings)

	record := result.Record
	fmt.Printf("Started VM '%s' (PID %d)\n", name, result.PID)
	switch {
	case result.Ready:
		fmt.Printf("SSH is ready: ssh -p %d %s@127.0.0.1\n", record.SSHPort, record.Username)
	case startWait:
		fmt.Printf("VM is still booting; SSH on port %d may take a while.\n", record.SSHPort)
	default:
		fmt.Printf("Launched without waiting; SSH will come up on port %d.\n", record.SSHPort)
	}

	s.success("vm started", "vm", name, "pid", result.PID)
	return nil
}
