package cmd

import (
	"fmt"

	"github.com/conneroisu/iconsprite/internal/services"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Render pages with the icon sprite inlined",
	Long: `Render every page in pages.dir into pages.out_dir with the sprite
injected after <body>. Other files are copied unchanged. With tree-shaking
enabled each page only carries the icons it references.

Examples:
  iconsprite build                      # Build into pages.out_dir
  iconsprite build -o public --clean    # Empty public/ first
  iconsprite build --tree-shake         # Per-page tree-shaking
  iconsprite build --analyze            # Write sprite-analysis.json`,
	RunE: runBuild,
}

var (
	buildOutput  string
	buildClean   bool
	buildAnalyze bool
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Output directory (default pages.out_dir)")
	buildCmd.Flags().BoolVar(&buildClean, "clean", false, "Remove the output directory first")
	buildCmd.Flags().BoolVar(&buildAnalyze, "analyze", false, "Write a per-page symbol report")
	buildCmd.Flags().Bool("tree-shake", false, "Only include referenced icons")
	buildCmd.Flags().Bool("optimize", false, "Run the optimizer on every icon")

	_ = viper.BindPFlag("tree_shaking.enabled", buildCmd.Flags().Lookup("tree-shake"))
	_ = viper.BindPFlag("optimize.enabled", buildCmd.Flags().Lookup("optimize"))
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	result, err := services.NewBuildService(cfg, logger).Build(cmd.Context(), services.BuildOptions{
		ProjectRoot: projectRoot,
		Output:      buildOutput,
		Clean:       buildClean,
		Analyze:     buildAnalyze,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Built %d page(s) and copied %d asset(s) to %s in %s\n",
		len(result.Pages), result.Assets, result.OutputDir, result.Duration.Round(1e6))
	fmt.Fprintf(out, "Sprite: %d icon(s)\n", result.IconCount)
	for _, dup := range result.Duplicates {
		fmt.Fprintf(out, "  duplicate %q: %s ignored, kept %s\n", dup.ID, dup.Path, dup.Kept)
	}
	return nil
}
