package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/conneroisu/iconsprite/internal/services"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List discovered icons and their symbol identifiers",
	Long: `List every icon the sprite would contain, with its symbol identifier,
view box, and source file. Icons dropped because another file already
claimed the identifier are reported as duplicates.

Examples:
  iconsprite list            # Table
  iconsprite list -f json    # JSON
  iconsprite list -f yaml    # YAML`,
	RunE: runList,
}

var listFlags *OutputFlags

func init() {
	rootCmd.AddCommand(listCmd)
	listFlags = AddOutputFlags(listCmd, "table", "json", "yaml")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	report, err := services.NewInspectService(cfg, logger).List(cmd.Context(), projectRoot)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch listFlags.Format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		return yaml.NewEncoder(out).Encode(report)
	default:
		return outputIconTable(out, report)
	}
}

func outputIconTable(out io.Writer, report *services.IconReport) error {
	if len(report.Symbols) == 0 {
		fmt.Fprintf(out, "No icons found in %s\n", report.IconDir)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVIEWBOX\tFILE")
	for _, sym := range report.Symbols {
		fmt.Fprintf(w, "%s\t%s\t%s\n", sym.ID, sym.ViewBox, relTo(report.IconDir, sym.Path))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d icon(s)\n", len(report.Symbols))
	for _, dup := range report.Duplicates {
		fmt.Fprintf(out, "duplicate %q: %s ignored, kept %s\n",
			dup.ID, relTo(report.IconDir, dup.Path), relTo(report.IconDir, dup.Kept))
	}
	return nil
}

func relTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
