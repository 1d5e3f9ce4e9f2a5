package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfgpkg "github.com/KaramelBytes/uidpulse/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set uidpulse configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration (secrets masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			loadConfig()
		}
		out, err := yaml.Marshal(cfg.Masked())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long:  "Set a config value and save to disk. Keys: " + strings.Join(cfgpkg.Keys(), ", ") + ", dataset_dirs.<kind>.",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return cfgpkg.Keys(), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Start from the file so flag overrides are not persisted.
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		cfg = c
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved config (%s)\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
