// Package cli implements the vmctl command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/progamer242688/vm/internal/actionlog"
	"github.com/progamer242688/vm/internal/catalog"
	"github.com/progamer242688/vm/internal/config"
	"github.com/progamer242688/vm/internal/timing"
	"github.com/progamer242688/vm/internal/vm"
	"github.com/progamer242688/vm/pkg/hypervisor"
)

var rootCmd = &cobra.Command{
	Use:   "vmctl",
	Short: "vmctl - manage QEMU virtual machines on this host",
	Long: `vmctl manages the full lifecycle of QEMU virtual machines on a single
host: durable per-VM configuration records, cloud image and first-boot
seed provisioning, and supervision of detached hypervisor processes.

All state lives under ~/.vmctl. Every lifecycle operation appends to
the action log at ~/.vmctl/vmctl.log.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		switch cmd.Name() {
		case "version", "completion", "doctor":
			return nil
		}
		if err := config.Load(); err != nil {
			return err
		}
		findings := config.Validate(config.Global)
		if msg := config.FormatValidationErrors(findings); msg != "" {
			fmt.Fprint(os.Stderr, msg)
		}
		for _, f := range findings {
			if f.Fatal {
				return fmt.Errorf("configuration invalid: %s", f.Field)
			}
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(resizeCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(sshCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// session wires the manager stack for one command invocation.
type session struct {
	manager *vm.Manager
	paths   *config.Paths
	log     *actionlog.Log
}

func openSession() (*session, error) {
	cfg := config.Global
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	paths, err := config.ActivePaths()
	if err != nil {
		return nil, fmt.Errorf("determine paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("create data directories: %w", err)
	}

	alog, err := actionlog.Open(actionlog.Options{Path: paths.LogFile()})
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(paths.CatalogFile())
	if err != nil {
		alog.Close()
		return nil, err
	}

	driver, err := hypervisor.NewQEMU(cfg.QEMUBinary)
	if err != nil {
		alog.Close()
		return nil, err
	}

	manager, err := vm.NewManager(vm.ManagerConfig{
		VMsDir:    paths.VMsDir(),
		ImagesDir: paths.ImagesDir(),
		SeedsDir:  paths.SeedsDir(),
		RunDir:    paths.RunDir(),
		Driver:    driver,
		Catalog:   cat,
		Defaults: vm.Defaults{
			Image:    cfg.DefaultImage,
			DiskSize: cfg.DefaultDiskSize,
			MemoryMB: cfg.DefaultMemoryMB,
			CPUs:     cfg.DefaultCPUs,
			SSHPort:  cfg.DefaultSSHPort,
		},
		Grace: time.Duration(cfg.StopGraceSeconds) * time.Second,
		Probe: vm.ProbeConfig{
			Attempts: cfg.ProbeAttempts,
			Step:     time.Duration(cfg.ProbeStepMS) * time.Millisecond,
			MaxDelay: time.Duration(cfg.ProbeMaxDelayMS) * time.Millisecond,
		},
		Logger: alog.Logger(),
	})
	if err != nil {
		alog.Close()
		return nil, err
	}

	return &session{manager: manager, paths: paths, log: alog}, nil
}

// Close releases the action log.
func (s *session) Close() {
	s.log.Close()
}

// success records a completed operation in the action log.
func (s *session) success(msg string, args ...any) {
	actionlog.Success(s.log.Logger(), msg, args...)
}

// printWarnings reports non-fatal findings on stderr.
func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
}

// workflowContext attaches a phase timer to ctx when VMCTL_TIMING=1. The
// returned function prints the report and must be called once the
// workflow finishes.
func workflowContext(ctx context.Context) (context.Context, func()) {
	if os.Getenv("VMCTL_TIMING") != "1" {
		return ctx, func() {}
	}
	timer := timing.New()
	return timing.NewContext(ctx, timer), func() { timer.Report(os.Stdout) }
}
