package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	modulesTypeFilter string
	modulesJSON       bool
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List compiled modules",
	Long: `Modules lists the metadata of every module in the compiled index,
without loading tensor blobs.

Examples:
  lattice modules
  lattice modules --type rule
  lattice modules --json`,
	RunE: runModules,
}

func init() {
	rootCmd.AddCommand(modulesCmd)
	modulesCmd.Flags().StringVarP(&modulesTypeFilter, "type", "t", "", "Restrict to one module type")
	modulesCmd.Flags().BoolVar(&modulesJSON, "json", false, "Output as JSON")
}

func runModules(_ *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := openRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	idx, err := rt.loadIndex()
	if err != nil {
		return err
	}
	entries := idx.Entries(modulesTypeFilter)

	if modulesJSON {
		type item struct {
			ModuleID    string `json:"module_id"`
			Name        string `json:"name"`
			ModuleType  string `json:"module_type"`
			Description string `json:"description"`
			TokenCount  int    `json:"token_count"`
		}
		items := make([]item, len(entries))
		for i, e := range entries {
			items[i] = item{e.ModuleID, e.Name, e.ModuleType, e.Description, e.TokenCount}
		}
		return json.NewEncoder(os.Stdout).Encode(items)
	}

	for _, e := range entries {
		fmt.Printf("%-40s %-8s %6d tokens  %s\n", e.ModuleID, e.ModuleType, e.TokenCount, e.Description)
	}
	fmt.Printf("\n%d modules\n", len(entries))
	return nil
}
