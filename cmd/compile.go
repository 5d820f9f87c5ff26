package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adalundhe/lattice/core/compiler"
)

var (
	compileManifest string
	compileWatch    bool
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile knowledge modules into the latent store",
	Long: `Compile reads the module manifest, encodes new and changed modules
through the latent reasoning loop, and rebuilds the vector and keyword
indexes. Unchanged modules are carried forward without touching the model.

Examples:
  lattice compile                       # One delta compilation
  lattice compile --manifest mods.yaml  # Explicit manifest
  lattice compile --watch               # Recompile on manifest changes`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringVarP(&compileManifest, "manifest", "m", "", "Module manifest path (default from config)")
	compileCmd.Flags().BoolVarP(&compileWatch, "watch", "w", false, "Keep recompiling on manifest changes")
}

func runCompile(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	manifest := compileManifest
	if manifest == "" {
		manifest = cfg.Compiler.Manifest
	}

	rt, err := openRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	source, err := compiler.NewManifestSource(manifest)
	if err != nil {
		return err
	}

	encoder := compiler.NewEncoder(rt.engine, cfg.Model.LatentSteps, logger)
	runner := compiler.NewRunner(source, encoder, rt.store, rt.keyword, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("compiled %d, reused %d, deleted %d (%d total) in %s\n",
		stats.Compiled, stats.Reused, stats.Deleted, stats.Total, stats.Duration.Round(time.Millisecond))

	if compileWatch {
		return compiler.Watch(ctx, runner, manifest, cfg.Compiler.WatchDebounce, logger)
	}
	return nil
}
