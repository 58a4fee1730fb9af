package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/text2med/internal/worker"
)

var (
	concurrency  int
	batchOutDir  string
	batchTimeout time.Duration
	batchDryRun  bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Build claims for multiple chunk tables in parallel",
	Long: `Batch processes multiple chunk tables concurrently:
- Read table paths from input file (one per line, # comments allowed)
- Build each table with a bounded worker pool
- Write each table's artifacts into its own output subdirectory

Example:
  text2med batch tables.txt
  text2med batch tables.txt --concurrency 8 --output-dir ./batch-out
  text2med batch tables.txt --timeout 5m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&batchOutDir, "output-dir", "", "output directory (default: <output_dir>/batch)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "build without writing any output")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, batchTimeout)
	defer cancel()

	workers := concurrency
	if workers <= 0 {
		workers = cfg.Concurrency.Workers
	}
	outDir := batchOutDir
	if outDir == "" {
		outDir = filepath.Join(cfg.Paths.OutputDir, "batch")
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  text2med Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	p, cleanup, err := newPipeline(ctx, !batchDryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Fprintf(os.Stderr, "⚙️  Processing tables with %d workers...\n", workers)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(p, workers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return err
	}

	successCount := 0
	failureCount := 0
	for _, result := range results {
		if result.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			failureCount++
			continue
		}

		if !batchDryRun {
			if p.Store() != nil {
				if _, err := p.Persist(ctx, result.Build); err != nil {
					fmt.Fprintf(os.Stderr, "✗ %s: failed to store run: %v\n", result.Path, err)
					failureCount++
					continue
				}
			}
			dir := filepath.Join(outDir, tableName(result.Path))
			if _, err := p.WriteArtifacts(ctx, result.Build, dir); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write artifacts: %v\n", result.Path, err)
				failureCount++
				continue
			}
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (%d claims, %v)\n", result.Path, len(result.Build.Claims), result.Duration.Round(time.Millisecond))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d tables\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// tableName derives an output subdirectory from a table path
func tableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
