package cli

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/text2med/internal/store"
)

var (
	exportFormat string
	exportOutput string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump stored claims as YAML or JSON",
	Long: `Export writes every claim in the SQLite store (latest value per facility
and capability) to stdout or a file.

Example:
  text2med export --format yaml
  text2med export --format json --output claims.json`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", "yaml", "output format (yaml, json)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, statErr := os.Stat(cfg.Store.Path); statErr != nil {
		return eris.Wrapf(statErr, "cli: store %s", cfg.Store.Path)
	}
	s, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	var w io.Writer = os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return eris.Wrapf(err, "cli: create %s", exportOutput)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = eris.Wrap(closeErr, "cli: close export file")
			}
		}()
		w = f
	}

	return s.Export(ctx, w, exportFormat)
}
