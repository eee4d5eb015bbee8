// Package cmd implements the ricecoder command line interface.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moabualruz/ricecoder-sub010/internal/config"
	"github.com/moabualruz/ricecoder-sub010/internal/errors"
)

var rootCmd = NewRootCmd()

// NewRootCmd builds the command tree. Each call returns an independent tree,
// which keeps flag state from leaking between tests.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ricecoder",
		Short: "Run analysis workers over a project as a dependency-ordered plan",
		Long: `ricecoder runs a plan of analysis tasks against a project. Tasks are
grouped into phases by their dependencies; tasks within a phase run in
parallel with a per-task timeout. Findings are deduplicated and ordered by
severity, and conflicting recommendations are reported with suggested
resolutions.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/ricecoder/config.yaml)")
	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newConfigCmd())
	return root
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// Exit codes returned by ExitCode.
const (
	ExitOK     = 0
	ExitFailed = 1
	// ExitFatal means the run was rejected before any task started, such as
	// a dependency cycle or an invalid executor configuration.
	ExitFatal = 2
)

// ExitCode maps the error returned by Execute to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.IsFatal(err):
		return ExitFatal
	default:
		return ExitFailed
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/ricecoder")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("RICECODER")
	// e.g., RICECODER_EXECUTOR_TIMEOUT_MS for executor.timeout_ms
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
