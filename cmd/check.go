package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/conneroisu/iconsprite/internal/services"
	"github.com/spf13/cobra"
)

// ErrDanglingReferences is returned by check when a page references a
// symbol that no icon defines.
var ErrDanglingReferences = errors.New("dangling icon references found")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report <use> references with no matching icon",
	Long: `Parse every page in pages.dir and compare its <use href="#id"> references
with the symbols the sprite defines. Exits non-zero when a reference has no
matching icon. Icons no page references are listed as unused.

Examples:
  iconsprite check
  iconsprite check -f json`,
	RunE: runCheck,
}

var checkFlags *OutputFlags

func init() {
	rootCmd.AddCommand(checkCmd)
	checkFlags = AddOutputFlags(checkCmd, "text", "json")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	report, err := services.NewInspectService(cfg, logger).Check(cmd.Context(), projectRoot)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if checkFlags.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Checked %d page(s) against %d symbol(s)\n", report.Pages, report.Symbols)
		for _, ref := range report.Dangling {
			fmt.Fprintf(out, "  %s: #%s has no matching icon\n", ref.Page, ref.ID)
		}
		if len(report.Unused) > 0 {
			fmt.Fprintf(out, "Unused icons: %v\n", report.Unused)
		}
	}

	if !report.OK() {
		return fmt.Errorf("%w: %d", ErrDanglingReferences, len(report.Dangling))
	}
	return nil
}
