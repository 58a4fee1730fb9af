package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/text2med/internal/pipeline"
	"github.com/ppiankov/text2med/internal/tabular"
)

var (
	documentsPath string
	chunksPath    string
	buildOutDir   string
	buildDryRun   bool
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Extract, verify and score capability claims",
	Long: `Build runs the full capability pipeline:
- Chunk raw facility documents (when --documents is given)
- Retrieve strong, weak and negative phrase matches per capability
- Decide status, attach citations, verify prerequisites and contradictions
- Score confidence and write chunks, raw claims and final claims

Example:
  text2med build --documents data/raw/facility_docs.csv
  text2med build --chunks data/processed/text_chunks.csv --dry-run`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&documentsPath, "documents", "", "raw documents table (csv, jsonl)")
	buildCmd.Flags().StringVar(&chunksPath, "chunks", "", "pre-chunked text table (csv, jsonl)")
	buildCmd.Flags().StringVar(&buildOutDir, "output-dir", "", "output directory (default: paths.output_dir)")
	buildCmd.Flags().BoolVar(&buildDryRun, "dry-run", false, "run without writing any output")
	buildCmd.MarkFlagsMutuallyExclusive("documents", "chunks")
	buildCmd.MarkFlagsOneRequired("documents", "chunks")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, cleanup, err := newPipeline(ctx, !buildDryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	var res *pipeline.BuildResult
	if documentsPath != "" {
		fmt.Fprintf(os.Stderr, "⚙️  Reading documents from %s...\n", documentsPath)
		docs, err := tabular.ReadDocuments(documentsPath)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return eris.Wrapf(pipeline.ErrNoChunks, "cli: no documents in %s", documentsPath)
		}
		res, err = p.BuildFromDocuments(ctx, docs)
		if err != nil {
			return err
		}
	} else {
		fmt.Fprintf(os.Stderr, "⚙️  Reading chunks from %s...\n", chunksPath)
		res, err = p.BuildTable(ctx, chunksPath)
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "✓ Built %d claims from %d chunks\n", len(res.Claims), len(res.Chunks))

	if buildDryRun {
		fmt.Fprintf(os.Stderr, "Dry run: no files written\n")
		p.Renderer().RenderBuild(os.Stderr, res)
		return nil
	}

	if p.Store() != nil {
		runID, err := p.Persist(ctx, res)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Stored run %s in %s\n", runID, cfg.Store.Path)
	}

	dir := buildOutDir
	if dir == "" {
		dir = cfg.Paths.OutputDir
	}
	paths, err := p.WriteArtifacts(ctx, res, dir)
	if err != nil {
		return err
	}
	printWritten(paths)

	p.Renderer().RenderBuild(os.Stderr, res)
	return nil
}
