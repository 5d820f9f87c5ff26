package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adalundhe/lattice/core/gateway"
)

func gatewayRequest(intent string) gateway.Request {
	return gateway.Request{
		Intent:     intent,
		Code:       queryCode,
		SkillID:    querySkillID,
		ToolName:   queryTool,
		TopK:       queryTopK,
		TypeFilter: queryTypeFilter,
		MinScore:   queryMinScore,
		SessionID:  querySessionID,
	}
}

var (
	queryTool       string
	queryCode       string
	querySkillID    string
	queryTopK       int
	queryTypeFilter string
	queryMinScore   float64
	querySessionID  string
	queryJSON       bool
)

var queryCmd = &cobra.Command{
	Use:   "query [intent]",
	Short: "Query the compiled store",
	Long: `Query retrieves the modules most relevant to an intent, a code
snippet, or a direct skill id, and reconstructs their latent knowledge into
a dense instruction block.

Examples:
  lattice query "how should I structure error handling"
  lattice query --tool compliance_verify --code "$(cat main.go)"
  lattice query --tool skill_injector --skill security-review`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&queryTool, "tool", "architect_consult", "Tool surface: architect_consult, skill_injector, compliance_verify")
	queryCmd.Flags().StringVar(&queryCode, "code", "", "Code snippet for compliance checks")
	queryCmd.Flags().StringVar(&querySkillID, "skill", "", "Skill id for direct injection")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "Number of modules to retrieve (default from config)")
	queryCmd.Flags().StringVarP(&queryTypeFilter, "type", "t", "", "Restrict to one module type")
	queryCmd.Flags().Float64Var(&queryMinScore, "min-score", 0, "Minimum similarity score (default from config)")
	queryCmd.Flags().StringVarP(&querySessionID, "session", "s", "", "Session id for accounting")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Output as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
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

	intent := ""
	if len(args) > 0 {
		intent = args[0]
	}

	resp, err := service.Query(cmd.Context(), gatewayRequest(intent))
	if err != nil {
		return err
	}

	if queryJSON {
		return json.NewEncoder(os.Stdout).Encode(resp)
	}

	fmt.Println(resp.DensePrompt)
	fmt.Println()
	for _, m := range resp.MatchedModules {
		fmt.Printf("  %-40s %-8s %.4f\n", m.ModuleID, m.ModuleType, m.Score)
	}
	fmt.Printf("\n%d modules matched of %d searched, %d tokens saved, %.1fms\n",
		resp.Metrics.ModulesMatched, resp.Metrics.ModulesSearched,
		resp.Metrics.TokensSaved, resp.Metrics.TotalTimeMS)
	return nil
}
