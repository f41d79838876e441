// Package cmd provides the iconsprite command-line interface.
//
// Configuration is read from, in order of precedence: command-line flags,
// ICONSPRITE_<SECTION>_<KEY> environment variables, and the configuration
// file. The file is --config, else ICONSPRITE_CONFIG_FILE, else
// .iconsprite.yml in the working directory.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/conneroisu/iconsprite/internal/config"
	spriteerrors "github.com/conneroisu/iconsprite/internal/errors"
	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	projectRoot string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "iconsprite",
	Short: "Inline SVG icon sprites for static pages",
	Long: `iconsprite gathers a directory of SVG icons into a single inline sprite
and injects it into every page, so icons referenced with <use href="#id">
render without extra network requests.

Quick Start:
  iconsprite serve     Development server with live sprite updates
  iconsprite build     Render pages with the sprite inlined
  iconsprite list      Show the icons and their symbol identifiers
  iconsprite check     Report <use> references with no matching icon
  iconsprite config    Print the effective configuration`,
	SilenceUsage: true,
}

// Process exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitSecurity = 2
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps an Execute error to the process exit code. An icon
// directory or origin rejected by a security check exits with
// ExitSecurity so scripts can tell it apart from an ordinary failure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case spriteerrors.IsSecurityError(err):
		return ExitSecurity
	default:
		return ExitFailure
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .iconsprite.yml, can also use ICONSPRITE_CONFIG_FILE)")
	flags.StringVar(&projectRoot, "root", ".", "project root that icon and page directories are resolved against")
	flags.BoolP("verbose", "v", false, "log informational messages and warnings")
	flags.String("log-level", "", "log level (debug, info, warn, error); overrides --verbose")
	flags.String("log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log_format", flags.Lookup("log-format"))
}

func initConfig() {
	file := cfgFile
	if file == "" {
		file = os.Getenv(config.EnvPrefix + "_CONFIG_FILE")
	}
	if file == "" && projectRoot != "." {
		candidate := filepath.Join(projectRoot, config.FileName)
		if _, err := os.Stat(candidate); err == nil {
			file = candidate
		}
	}

	config.Configure(viper.GetViper(), file)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Warning: failed to read config:", err)
		}
	}
}

// loadConfig resolves the configuration and a logger for it.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug(cmd.Context(), "Using config file", "path", used)
	}
	return cfg, logger, nil
}

// newLogger maps verbose to debug and otherwise surfaces errors only. An
// explicit log level wins.
func newLogger(cfg *config.Config, out io.Writer) (logging.Logger, error) {
	level := logging.LevelFromVerbose(cfg.Verbose)
	if cfg.LogLevel != "" {
		parsed, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.LogFormat,
		Output: out,
	}), nil
}
