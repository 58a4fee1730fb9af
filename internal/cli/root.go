package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/text2med/internal/config"
)

// Version is overridden at build time via -ldflags
var Version = "v0.1.0"

var (
	cfgFile   string
	verbose   bool
	weightArg []string

	// cfg is loaded once per invocation before any command runs
	cfg *config.Config
	v   = viper.New()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "text2med",
	Short: "text2med - capability inference from healthcare facility text",
	Long: `text2med reads free-text descriptions of healthcare facilities and decides,
per facility and per medical capability, whether the capability is present,
uncertain or absent.

Every claim carries the evidence chunks it was derived from, verification
flags (missing prerequisites, contradictory evidence) and a transparent
confidence score.

text2med is a keyword engine: it reports what the text says, not what a
facility can actually do.`,
	SilenceErrors:      true,
	SilenceUsage:       true,
	PersistentPreRunE:  initConfig,
	PersistentPostRunE: syncLogger,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of text2med.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("text2med %s\n", Version)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()

	// Global flags
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./text2med.yaml or $HOME/.text2med/text2med.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")

	// Tunables
	flags.Int("max-evidence", 5, "maximum citations kept per claim")
	flags.Bool("prerequisite-strict", true, "downgrade present claims with missing prerequisites to uncertain")
	flags.StringArrayVar(&weightArg, "weight", nil, "confidence weight override key=value (repeatable)")

	// Bind flags to viper
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = v.BindPFlag("extraction.max_evidence_per_claim", flags.Lookup("max-evidence"))
	_ = v.BindPFlag("verification.prerequisite_strict", flags.Lookup("prerequisite-strict"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig loads configuration and installs the logger
func initConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if verbose {
		loaded.Log.Level = "debug"
	}

	for _, kv := range weightArg {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return eris.Errorf("cli: invalid --weight %q, expected key=value", kv)
		}
		if loaded.Confidence.Weights == nil {
			loaded.Confidence.Weights = make(map[string]any)
		}
		loaded.Confidence.Weights[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if err := config.InitLogger(loaded.Log); err != nil {
		return err
	}
	cfg = loaded

	if used := v.ConfigFileUsed(); used != "" && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", used)
	}
	zap.L().Debug("cli: configuration loaded", zap.String("command", cmd.Name()))
	return nil
}

func syncLogger(cmd *cobra.Command, args []string) error {
	// stderr sync fails with EINVAL on terminals
	_ = zap.L().Sync()
	return nil
}
