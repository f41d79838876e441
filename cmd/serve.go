package cmd

import (
	"fmt"

	"github.com/conneroisu/iconsprite/internal/services"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the development server with live sprite updates",
	Long: `Serve pages.dir with the sprite injected into every page. Icon changes
are picked up by a file watcher, debounced, and pushed to open pages over a
websocket without a full reload.

Examples:
  iconsprite serve                 # Serve on localhost:8080
  iconsprite serve -p 3000 --open  # Other port, open a browser
  iconsprite serve --no-watch      # Static sprite, no live updates`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("open", false, "Open a browser once serving")
	serveCmd.Flags().Bool("no-watch", false, "Disable live sprite updates")
	serveCmd.Flags().Int("debounce", 100, "Milliseconds to wait for more icon changes before rebuilding")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.open", serveCmd.Flags().Lookup("open"))
	_ = viper.BindPFlag("development.debounce_ms", serveCmd.Flags().Lookup("debounce"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		cfg.Development.Watch = false
	}

	out := cmd.OutOrStdout()
	_, err = services.NewServeService(cfg, logger).Serve(cmd.Context(), services.ServeOptions{
		ProjectRoot: projectRoot,
		Ready: func(url string) {
			fmt.Fprintf(out, "Serving %s at %s\n", cfg.Pages.Dir, url)
			if cfg.Development.Watch {
				fmt.Fprintf(out, "Watching %s for icon changes\n", cfg.Sprite.IconDir)
			}
		},
	})
	return err
}
