package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/progamer242688/vm/internal/vm"
)

var sshCmd = &cobra.Command{
	Use:   "ssh <name> [command...]",
	Short: "SSH into a running VM",
	Long: `Open an SSH session to a running VM through its forwarded management
port. Extra arguments run as a command in the guest instead of an
interactive shell. The generated vmctl key is offered when it exists.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSSH,
}

func runSSH(cmd *cobra.Command, args []string) error {
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
	if s.manager.RunningState(name) != vm.StateRunning {
		return fmt.Errorf("VM '%s' is not running; start it with: vmctl start %s", name, name)
	}

	keyPath := ""
	km := vm.NewSSHKeyManager(s.paths.DataDir)
	if km.KeyPairExists() {
		keyPath, _ = km.PrivateKeyPath()
	}

	sshBin, err := exec.LookPath("ssh")
	if err != nil {
		return fmt.Errorf("ssh not found in PATH: %w", err)
	}

	sshExec := exec.Command(sshBin, sshArgs(record, keyPath, args[1:])...)
	sshExec.Stdin = os.Stdin
	sshExec.Stdout = os.Stdout
	sshExec.Stderr = os.Stderr
	if err := sshExec.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return err
	}
	return nil
}

// sshArgs builds the ssh invocation for a record's management port.
func sshArgs(record *vm.VMRecord, keyPath string, command []string) []string {
	args := []string{
		"-p", strconv.Itoa(record.SSHPort),
		"-o", "StrictHostKeyChecking=accept-new",
	}
	if keyPath != "" {
		args = append(args, "-i", keyPath)
	}
	args = append(args, fmt.Sprintf("%s@127.0.0.1", record.Username))
	return append(args, command...)
}
