package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"

	"github.com/meyer/rwb/internal/bundler"
	"github.com/meyer/rwb/internal/environ"
	"github.com/meyer/rwb/internal/errors"
	"github.com/meyer/rwb/internal/services"
)

var (
	configFormat  string
	bundlerTarget string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect rwb configuration",
	Long: `Inspect the configuration rwb resolves from flags, environment variables,
.rwb.yml and package.json.

Examples:
  rwb config show                      # Show configuration as YAML
  rwb config show --format json        # Show configuration as JSON
  rwb config bundler                   # Dump the client bundler configuration
  rwb config bundler --target server   # Dump the static build configuration`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configBundlerCmd = &cobra.Command{
	Use:   "bundler",
	Short: "Dump the generated bundler configuration",
	Long: `Print the bundler configuration serve (--target client) or static
(--target server) would build with. Nothing is built.`,
	Args: cobra.NoArgs,
	RunE: runConfigBundler,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configBundlerCmd)

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
	configBundlerCmd.Flags().StringVarP(&bundlerTarget, "target", "t", string(bundler.TargetClient), "Build target (client, server)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch configFormat {
	case "yaml", "yml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		raw, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		return writeJSON(out, raw)
	default:
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unsupported format: %s (supported: yaml, json)", configFormat))
	}
}

func runConfigBundler(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	bcfg, err := services.BundlerConfig(cfg, bundler.Target(bundlerTarget))
	if err != nil {
		return err
	}

	raw, err := json.Marshal(bcfg)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), raw)
}

// writeJSON pretty prints raw, colourised when w is a terminal.
func writeJSON(w io.Writer, raw []byte) error {
	out := pretty.Pretty(raw)
	if environ.IsTerminal(w) {
		out = pretty.Color(out, nil)
	}
	_, err := w.Write(out)
	return err
}
