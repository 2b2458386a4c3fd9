package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/revbot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage revbot configuration",
}

func configFilePath() (string, error) {
	if flagConfigPath != "" {
		return flagConfigPath, nil
	}
	return config.ConfigPath()
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFilePath()
		if err != nil {
			return configErr(err)
		}

		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Config file already exists at %s\n", path)
			return nil
		}

		if err := config.Save(path, config.Default()); err != nil {
			return runtimeErr(fmt.Errorf("writing config: %w", err))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Config file created at %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFilePath()
		if err != nil {
			return configErr(err)
		}
		cfg, err := config.LoadFile(path, config.Default())
		if err != nil {
			return configErr(err)
		}

		if err := config.SetField(&cfg, args[0], args[1]); err != nil {
			return usageErr(err)
		}

		if err := config.Save(path, cfg); err != nil {
			return runtimeErr(fmt.Errorf("saving config: %w", err))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return runtimeErr(err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		fmt.Fprintf(cmd.OutOrStdout(), "# credentials: api key %s, github token %s\n",
			presence(cfg.Secrets.APIKey), presence(cfg.Secrets.GitHubToken))
		return nil
	},
}

func presence(s string) string {
	if s == "" {
		return "unset"
	}
	return "set"
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
}
