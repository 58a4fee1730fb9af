package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/text2med/internal/model"
	"github.com/ppiankov/text2med/internal/tabular"
)

// Artifact file names written under the output directory
const (
	ChunksFile        = "text2med_chunks.csv"
	RawClaimsFile     = "text2med_claims_raw.json"
	ClaimsJSONFile    = "text2med_claims.json"
	ClaimsCSVFile     = "text2med_claims.csv"
	MatchesFile       = "text2med_retrieval_matches.jsonl"
	RunSummaryFile    = "text2med_run.json"
	ReportFile        = "text2med_report.md"
	VerifiedFile      = "text2med_claims_verified.json"
	AnomaliesFile     = "text2med_anomalies.json"
	VerifySummaryFile = "text2med_verify_summary.json"
)

// WriteArtifacts writes every table of a build into dir and returns the paths written
func (p *Pipeline) WriteArtifacts(ctx context.Context, res *BuildResult, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "pipeline: create output dir %s", dir)
	}

	writers := map[string]func(string) error{
		ChunksFile:     func(path string) error { return tabular.WriteChunksCSV(path, res.Chunks) },
		RawClaimsFile:  func(path string) error { return tabular.WriteClaimsJSON(path, res.RawClaims) },
		ClaimsJSONFile: func(path string) error { return tabular.WriteClaimsJSON(path, res.Claims) },
		ClaimsCSVFile:  func(path string) error { return tabular.WriteClaimsCSV(path, res.Claims) },
		RunSummaryFile: func(path string) error { return tabular.WriteJSON(path, res.Summary) },
		ReportFile:     func(path string) error { return p.renderer.WriteMarkdown(path, res) },
	}
	if p.cfg.Tracing.ExportTraces {
		writers[MatchesFile] = func(path string) error { return tabular.WriteJSONL(path, res.Matches) }
	}

	return writeAll(ctx, dir, writers)
}

// WriteVerification writes the verified claims, anomalies and summary of a reverify run
func (p *Pipeline) WriteVerification(ctx context.Context, res *VerifyResult, output, dir string) ([]string, error) {
	if output == "" {
		output = filepath.Join(dir, VerifiedFile)
	}
	anomalies := filepath.Join(dir, AnomaliesFile)
	res.Summary.OutputPath = output
	res.Summary.AnomalyPath = anomalies

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { return tabular.WriteClaimsJSON(output, res.Claims) })
	g.Go(func() error { return tabular.WriteClaimsJSON(anomalies, res.Anomalies) })
	g.Go(func() error { return tabular.WriteJSON(filepath.Join(dir, VerifySummaryFile), res.Summary) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return []string{output, anomalies, filepath.Join(dir, VerifySummaryFile)}, nil
}

func writeAll(ctx context.Context, dir string, writers map[string]func(string) error) ([]string, error) {
	names := make([]string, 0, len(writers))
	for name := range writers {
		names = append(names, name)
	}
	sort.Strings(names)

	g, gctx := errgroup.WithContext(ctx)
	paths := make([]string, len(names))
	for i, name := range names {
		path := filepath.Join(dir, name)
		paths[i] = path
		write := writers[name]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return write(path)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// claimsByStatus counts claims per status
func claimsByStatus(claims []model.Claim) map[model.Status]int {
	out := make(map[model.Status]int, 3)
	for _, c := range claims {
		out[c.Status]++
	}
	return out
}
