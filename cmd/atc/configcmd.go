package main

import (
	"github.com/spf13/cobra"

	"github.com/maxonary/ai-trend-clustering/internal/config"
)

func init() {
	configCmd.AddCommand(configShowCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
	Long: `Configuration is read from ~/.config/atc/config.yml (or --config), then
overridden by ATC_* environment variables and a .env file in the working
directory.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !humanOutput {
			return outputJSON(cfg)
		}
		out, err := cfg.YAML()
		if err != nil {
			exitWithError(ExitError, "encoding config: %v", err)
		}
		outputHuman("%s", out)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the global config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.GlobalConfigPath()
		}
		if humanOutput {
			outputHuman("%s\n", path)
			return nil
		}
		return outputJSON(map[string]string{"path": path})
	},
}
