package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/text2med/internal/model"
)

const rule = "═══════════════════════════════════════════════════════════"

// Renderer formats run results for terminals and markdown reports
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Banner prints a boxed section title
func (r *Renderer) Banner(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n  %s\n%s\n\n", rule, title, rule)
}

// RenderBuild prints a human summary of a build
func (r *Renderer) RenderBuild(w io.Writer, res *BuildResult) {
	r.Banner(w, "text2med Build Complete")

	byStatus := claimsByStatus(res.Claims)
	flagged := 0
	for _, c := range res.Claims {
		if len(c.Flags) > 0 {
			flagged++
		}
	}

	if res.Summary.RunID != "" {
		fmt.Fprintf(w, "  Run:        %s\n", res.Summary.RunID)
	}
	if res.Summary.RawDocuments > 0 {
		fmt.Fprintf(w, "  Documents:  %d\n", res.Summary.RawDocuments)
	}
	fmt.Fprintf(w, "  Chunks:     %d\n", res.Summary.TextChunks)
	fmt.Fprintf(w, "  Claims:     %d\n", res.Summary.FinalClaims)
	fmt.Fprintf(w, "  Present:    %d\n", byStatus[model.StatusPresent])
	fmt.Fprintf(w, "  Uncertain:  %d\n", byStatus[model.StatusUncertain])
	fmt.Fprintf(w, "  Absent:     %d\n", byStatus[model.StatusAbsent])
	fmt.Fprintf(w, "  Flagged:    %d\n", flagged)
	fmt.Fprintf(w, "  Matches:    %d\n", res.Summary.Matches)
	fmt.Fprintln(w)
}

// RenderVerify prints a human summary of a re-verification pass
func (r *Renderer) RenderVerify(w io.Writer, res *VerifyResult) {
	r.Banner(w, "text2med Verification Complete")

	s := res.Summary
	fmt.Fprintf(w, "  Rows:                  %d\n", s.RowsEvaluated)
	fmt.Fprintf(w, "  Facilities:            %d\n", s.FacilitiesEvaluated)
	fmt.Fprintf(w, "  Anomalies:             %d\n", s.AnomalyRows)
	fmt.Fprintf(w, "  Missing prerequisites: %d\n", s.MissingPrerequisiteRows)
	fmt.Fprintf(w, "  Inconsistent claims:   %d\n", s.InconsistentClaimRows)
	if s.OutputPath != "" {
		fmt.Fprintf(w, "  Output:                %s\n", s.OutputPath)
	}
	if s.AnomalyPath != "" {
		fmt.Fprintf(w, "  Anomaly file:          %s\n", s.AnomalyPath)
	}
	fmt.Fprintln(w)
}

// RenderMarkdown writes a markdown report of a build
func (r *Renderer) RenderMarkdown(w io.Writer, res *BuildResult) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# text2med capability report\n\n")
	if !res.Summary.StartedAt.IsZero() {
		fmt.Fprintf(bw, "Generated: %s\n\n", res.Summary.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}

	fmt.Fprintf(bw, "## Summary\n\n")
	fmt.Fprintf(bw, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(bw, "| Text chunks | %d |\n", res.Summary.TextChunks)
	fmt.Fprintf(bw, "| Claims | %d |\n", res.Summary.FinalClaims)
	byStatus := claimsByStatus(res.Claims)
	for _, st := range []model.Status{model.StatusPresent, model.StatusUncertain, model.StatusAbsent} {
		fmt.Fprintf(bw, "| %s | %d |\n", st, byStatus[st])
	}
	fmt.Fprintln(bw)

	fmt.Fprintf(bw, "## Claims\n\n")
	fmt.Fprintf(bw, "| Facility | Capability | Status | Confidence | Label | Flags |\n")
	fmt.Fprintf(bw, "|---|---|---|---|---|---|\n")
	for _, c := range res.Claims {
		if c.Status == model.StatusAbsent && len(c.Flags) == 0 {
			continue
		}
		fmt.Fprintf(bw, "| %s | %s | %s | %.2f | %s | %s |\n",
			escapeCell(c.FacilityName), c.Capability, c.Status, c.Confidence, c.ConfidenceLabel, joinFlags(c.Flags))
	}
	fmt.Fprintln(bw)

	var flagged []model.Claim
	for _, c := range res.Claims {
		if len(c.Flags) > 0 {
			flagged = append(flagged, c)
		}
	}
	if len(flagged) > 0 {
		fmt.Fprintf(bw, "## Verification findings\n\n")
		for _, c := range flagged {
			fmt.Fprintf(bw, "- **%s / %s**: %s\n", escapeCell(c.FacilityName), c.Capability, c.VerificationNotes)
		}
		fmt.Fprintln(bw)
	}

	if err := bw.Flush(); err != nil {
		return eris.Wrap(err, "pipeline: render markdown")
	}
	return nil
}

// WriteMarkdown renders the markdown report into path
func (r *Renderer) WriteMarkdown(path string, res *BuildResult) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create %s", path)
	}
	if err := r.RenderMarkdown(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func joinFlags(flags []model.Flag) string {
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
