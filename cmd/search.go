package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	searchTypeFilter string
	searchLimit      int
)

var searchCmd = &cobra.Command{
	Use:   "search <terms>",
	Short: "Full-text search over module content",
	Long: `Search runs a keyword query against the full-text index built at
compile time. Unlike 'lattice query' it matches exact terms without
invoking the model.

Examples:
  lattice search "sql injection"
  lattice search --type rule "error wrapping"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchTypeFilter, "type", "t", "", "Restrict to one module type")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum results")
}

func runSearch(_ *cobra.Command, args []string) error {
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
	service, err := rt.newService(idx)
	if err != nil {
		return err
	}

	matched, err := service.Search(args[0], searchTypeFilter, searchLimit)
	if err != nil {
		return err
	}

	if len(matched) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, m := range matched {
		fmt.Printf("%-40s %-8s %.4f  %s\n", m.ModuleID, m.ModuleType, m.Score, m.Description)
	}
	return nil
}
