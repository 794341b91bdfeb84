package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/progamer242688/vm/internal/vm"
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new VM",
	Long: `Create a new VM: download its base image, build the first-boot seed,
and persist the configuration record. The VM is not started.

Fields not given as flags fall back to the catalog entry of the chosen
image and the configured defaults. When --secret is omitted and stdin is
a terminal, the login secret is prompted for without echo.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

// Flags for create
var (
	createImage     string
	createHostname  string
	createUsername  string
	createSecret    string
	createDiskSize  string
	createMemory    int
	createCPUs      int
	createSSHPort   int
	createGUI       bool
	createForwards  []string
	createKeys      []string
	createInjectKey bool
)

func init() {
	createCmd.Flags().StringVarP(&createImage, "image", "i", "", "Catalog image label (default: configured default image)")
	createCmd.Flags().StringVar(&createHostname, "hostname", "", "Guest hostname (default: VM name)")
	createCmd.Flags().StringVarP(&createUsername, "username", "u", "", "Login account (default: catalog entry)")
	createCmd.Flags().StringVar(&createSecret, "secret", "", "Login secret (default: prompt, then catalog entry)")
	createCmd.Flags().StringVarP(&createDiskSize, "disk-size", "s", "", "Virtual disk size, magnitude plus unit (e.g. 20G)")
	createCmd.Flags().IntVarP(&createMemory, "memory", "m", 0, "Memory in MB")
	createCmd.Flags().IntVarP(&createCPUs, "cpus", "c", 0, "Number of virtual CPUs")
	createCmd.Flags().IntVarP(&createSSHPort, "ssh-port", "p", 0, "Host port forwarded to guest SSH")
	createCmd.Flags().BoolVar(&createGUI, "gui", false, "Launch with a graphical display")
	createCmd.Flags().StringArrayVarP(&createForwards, "forward", "f", nil, "Extra port forward host:guest (repeatable)")
	createCmd.Flags().StringArrayVar(&createKeys, "authorized-key", nil, "SSH public key injected at first boot (repeatable)")
	createCmd.Flags().BoolVar(&createInjectKey, "inject-key", false, "Generate (if needed) and inject the vmctl SSH key")
}

func runCreate(cmd *cobra.Command, args []string) error {
	name := args[0]

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	secret := createSecret
	if !cmd.Flags().Changed("secret") && term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err = promptSecret()
		if err != nil {
			return err
		}
	}

	keys := createKeys
	if createInjectKey {
		km := vm.NewSSHKeyManager(s.paths.DataDir)
		if _, _, err := km.EnsureKeyPair(); err != nil {
			return fmt.Errorf("generate SSH key pair: %w", err)
		}
		pub, err := km.PublicKeyContent()
		if err != nil {
			return err
		}
		keys = append(keys, pub)
	}

	ctx, report := workflowContext(cmd.Context())
	defer report()

	result, err := s.manager.CreateVM(ctx, vm.CreateSpec{
		Name:              name,
		Image:             createImage,
		Hostname:          createHostname,
		Username:          createUsername,
		Secret:            secret,
		DiskSize:          createDiskSize,
		MemoryMB:          createMemory,
		CPUs:              createCPUs,
		SSHPort:           createSSHPort,
		GUI:               createGUI,
		ExtraForwards:     createForwards,
		SSHAuthorizedKeys: keys,
	})
	if err != nil {
		return err
	}
	printWarnings(result.Warnings)

	record := result.Record
	fmt.Printf("Created VM '%s'\n", record.Name)
	fmt.Printf("  Image:    %s %s\n", record.Family, record.Codename)
	fmt.Printf("  Disk:     %s\n", record.DiskSize)
	fmt.Printf("  Memory:   %d MB\n", record.MemoryMB)
	fmt.Printf("  CPUs:     %d\n", record.CPUs)
	fmt.Printf("  SSH port: %d\n", record.SSHPort)
	fmt.Println()
	fmt.Printf("To start it: vmctl start %s\n", record.Name)

	s.success("vm created", "vm", record.Name)
	return nil
}

// promptSecret reads the login secret twice without echo. Empty input
// keeps the catalog default.
func promptSecret() (string, error) {
	for {
		fmt.Print("Login secret (stored in cleartext): ")
		first, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		if len(first) == 0 {
			return "", nil
		}

		fmt.Print("Repeat secret: ")
		second, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		if string(first) == string(second) {
			return string(first), nil
		}
		fmt.Println("Secrets do not match, try again.")
	}
}
