package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/progamer242688/vm/internal/catalog"
	"github.com/progamer242688/vm/internal/config"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the selectable OS images",
	Long: `List the OS images a VM can be created from. The built-in table can be
replaced by a catalog.yaml in the config directory; the first entry is
the default image.`,
	RunE: runCatalog,
}

func runCatalog(cmd *cobra.Command, args []string) error {
	paths, err := config.ActivePaths()
	if err != nil {
		return err
	}
	cat, err := catalog.Load(paths.CatalogFile())
	if err != nil {
		return err
	}

	fmt.Printf("  %-16s %-10s %-10s %s\n", "LABEL", "FAMILY", "CODENAME", "USERNAME")
	for i, entry := range cat.Entries() {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Printf("%s %-16s %-10s %-10s %s\n", marker, entry.Label, entry.Family, entry.Codename, entry.Username)
	}
	fmt.Println()
	fmt.Println("* default image")
	return nil
}
