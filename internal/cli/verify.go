package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/text2med/internal/pipeline"
	"github.com/ppiankov/text2med/internal/tabular"
)

var (
	verifyInput  string
	verifyOutput string
	verifyDryRun bool
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-run verification and scoring over a claims table",
	Long: `Verify reloads a final claims table, recomputes match counts from the raw
explanations, re-applies prerequisite and contradiction checks, rescores every
claim and writes the updated claims together with an anomaly table.

Example:
  text2med verify
  text2med verify --input data/processed/text2med_claims.csv --prerequisite-strict=false`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyInput, "input", "", "claims table (default: <output_dir>/text2med_claims.json)")
	verifyCmd.Flags().StringVar(&verifyOutput, "output", "", "verified claims path (default: <output_dir>/text2med_claims_verified.json)")
	verifyCmd.Flags().BoolVar(&verifyDryRun, "dry-run", false, "run without writing any output")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	input := verifyInput
	if input == "" {
		input = outputPath(pipeline.ClaimsJSONFile)
	}
	fmt.Fprintf(os.Stderr, "⚙️  Loading claims from %s...\n", input)
	claims, err := tabular.ReadClaims(input)
	if err != nil {
		return err
	}

	p, cleanup, err := newPipeline(ctx, !verifyDryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := p.Reverify(ctx, claims)
	if err != nil {
		return err
	}

	if !verifyDryRun {
		paths, err := p.WriteVerification(ctx, res, verifyOutput, cfg.Paths.OutputDir)
		if err != nil {
			return err
		}
		printWritten(paths)
	} else {
		fmt.Fprintf(os.Stderr, "Dry run: no files written\n")
	}

	p.Renderer().RenderVerify(os.Stderr, res)
	return nil
}
