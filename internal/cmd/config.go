package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/moabualruz/ricecoder-sub010/internal/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View ricecoder configuration",
		Long: `View ricecoder configuration.

Without arguments, displays the current configuration. Every key can be
overridden with an environment variable, e.g. RICECODER_EXECUTOR_TIMEOUT_MS.`,
		RunE: runConfigShow,
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE:  runConfigShow,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the config file path",
		RunE:  runConfigPath,
	})
	return configCmd
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Render through the same keys viper reads, not Go field names.
	settings := map[string]any{
		"executor": map[string]any{
			"max_concurrency": cfg.Executor.MaxConcurrency,
			"timeout_ms":      cfg.Executor.TimeoutMs,
			"verbose":         cfg.Executor.Verbose,
		},
		"conflicts": map[string]any{
			"enabled": cfg.Conflicts.Enabled,
		},
		"logging": map[string]any{
			"level": cfg.Logging.Level,
			"dir":   cfg.Logging.Dir,
		},
		"metrics": map[string]any{
			"enabled": cfg.Metrics.Enabled,
			"addr":    cfg.Metrics.Addr,
		},
		"project": map[string]any{
			"root": cfg.Project.Root,
		},
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintln(out, used)
		return nil
	}
	fmt.Fprintln(out, config.ConfigFile())
	return nil
}
