package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/text2med/internal/config"
	"github.com/ppiankov/text2med/internal/score"
)

var initPath string

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage text2med configuration",
	Long: `Manage text2med configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (TEXT2MED_*, e.g. TEXT2MED_LOG_LEVEL)
3. Config file (./text2med.yaml or ~/.text2med/text2med.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after defaults, config file, environment and flags are merged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if used := v.ConfigFileUsed(); used != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", used)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return eris.Wrap(err, "cli: marshal config")
		}

		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println("  Current Configuration")
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()
		fmt.Println(string(yamlData))

		// Unusable weight values fall back to defaults when scoring
		weights, err := yaml.Marshal(score.WeightsFromMap(cfg.Confidence.Weights).AsMap())
		if err != nil {
			return eris.Wrap(err, "cli: marshal weights")
		}
		fmt.Println("  Effective confidence weights")
		fmt.Println()
		fmt.Println(string(weights))
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a configuration file holding every option at its default value.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if _, statErr := os.Stat(initPath); statErr == nil {
			return eris.Errorf("config file already exists: %s\nUse 'text2med config show' to view it, or delete it first to recreate", initPath)
		}
		if err := os.MkdirAll(filepath.Dir(initPath), 0o755); err != nil {
			return eris.Wrap(err, "cli: create config directory")
		}

		yamlData, err := yaml.Marshal(config.DefaultConfig())
		if err != nil {
			return eris.Wrap(err, "cli: marshal config")
		}

		f, err := os.Create(initPath)
		if err != nil {
			return eris.Wrap(err, "cli: create config file")
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = eris.Wrap(closeErr, "cli: close config file")
			}
		}()

		header := "# text2med configuration\n" +
			"#\n" +
			"# Configuration hierarchy (highest to lowest priority):\n" +
			"#   1. CLI flags\n" +
			"#   2. Environment variables (TEXT2MED_*)\n" +
			"#   3. This config file\n" +
			"#   4. Built-in defaults\n\n"
		if _, err := f.WriteString(header); err != nil {
			return eris.Wrap(err, "cli: write config")
		}
		if _, err := f.Write(yamlData); err != nil {
			return eris.Wrap(err, "cli: write config")
		}

		fmt.Printf("✓ Created default configuration: %s\n", initPath)
		fmt.Printf("\nTo view the configuration:\n")
		fmt.Printf("  text2med config show --config %s\n", initPath)
		fmt.Printf("\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().StringVar(&initPath, "path", "text2med.yaml", "where to write the configuration file")
}
