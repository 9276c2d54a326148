package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/lswitch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the switch configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults and LSWITCH_* environment overrides
have been applied.

Examples:
  lswitch config show
  LSWITCH_SWITCH_TABLE_CAPACITY=64 lswitch config show -c lab.yml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig(configFile, cmd.OutOrStdout())
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without starting the switch.

Examples:
  lswitch config validate -c lab.yml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateConfig(configFile, cmd.OutOrStdout())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func showConfig(path string, out io.Writer) error {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func validateConfig(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}
	metricsState := "disabled"
	if cfg.Metrics.Enabled {
		metricsState = "enabled on " + cfg.Metrics.Listen
	}
	fmt.Fprintf(out, "VALID: table capacity %d, %d interface(s) configured, metrics %s\n",
		cfg.Switch.TableCapacity,
		len(cfg.Switch.Interfaces),
		metricsState,
	)
	return nil
}
