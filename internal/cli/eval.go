package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/text2med/internal/eval"
	"github.com/ppiankov/text2med/internal/model"
	"github.com/ppiankov/text2med/internal/pipeline"
	"github.com/ppiankov/text2med/internal/tabular"
)

// EvalSummaryFile is the eval report written under the output directory
const EvalSummaryFile = "text2med_eval_summary.json"

// errEvalFailed is returned under --fail-on-check when a critical check or required question fails
var errEvalFailed = eris.New("eval: critical checks or required questions failed")

var (
	evalInput       string
	evalQuestions   string
	evalSummaryPath string
	evalFailOnCheck bool
	evalDryRun      bool
)

// evalCmd represents the eval command
var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run regression checks and acceptance questions",
	Long: `Eval checks a final claims table for structural problems (missing columns,
duplicates, out-of-range confidence, unflagged prerequisite gaps or
contradictions) and answers acceptance questions such as
"Which hospitals claim ICUs but lack oxygen?".

Question files (YAML or JSON) hold a list, a {questions: [...]} document or a
single question. Without matching files two built-in questions are used.

Example:
  text2med eval
  text2med eval --questions 'configs/eval/*.yaml' --fail-on-check`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVar(&evalInput, "input", "", "claims table (default: <output_dir>/text2med_claims.json)")
	evalCmd.Flags().StringVar(&evalQuestions, "questions", "", "glob of question files (default: eval.questions)")
	evalCmd.Flags().StringVar(&evalSummaryPath, "summary-path", "", "summary output (default: <output_dir>/text2med_eval_summary.json)")
	evalCmd.Flags().BoolVar(&evalFailOnCheck, "fail-on-check", false, "exit non-zero when critical checks or required questions fail")
	evalCmd.Flags().BoolVar(&evalDryRun, "dry-run", false, "run checks without writing the summary")
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	input := evalInput
	if input == "" {
		input = outputPath(pipeline.ClaimsJSONFile)
	}
	claims, err := tabular.ReadClaims(input)
	if err != nil {
		return err
	}

	pattern := evalQuestions
	if pattern == "" {
		pattern = cfg.Eval.Questions
	}
	questions, err := eval.LoadQuestions(ctx, pattern)
	if err != nil {
		return err
	}

	summary := eval.NewSuite(questions).Run(input, claims)
	renderEval(summary)

	if !evalDryRun {
		path := evalSummaryPath
		if path == "" {
			path = outputPath(EvalSummaryFile)
		}
		if err := tabular.WriteJSON(path, summary); err != nil {
			return err
		}
		printWritten([]string{path})
	}

	if (evalFailOnCheck || cfg.Eval.FailOnCheck) && summary.Failed() {
		return errEvalFailed
	}
	return nil
}

func renderEval(summary model.EvalSummary) {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  text2med Evaluation (%d rows)\n", summary.RowCount)
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")

	for _, c := range summary.Checks {
		mark := "✓"
		if !c.Passed {
			mark = "✗"
		}
		fmt.Fprintf(os.Stderr, "%s [%s] %s\n", mark, c.Severity, c.ID)
	}
	fmt.Fprintf(os.Stderr, "\n")

	for _, q := range summary.Questions {
		mark := "✓"
		if !q.Passed {
			mark = "✗"
		}
		fmt.Fprintf(os.Stderr, "%s %s: %d matches", mark, q.Prompt, q.MatchCount)
		if q.Error != "" {
			fmt.Fprintf(os.Stderr, " (%s)", q.Error)
		}
		fmt.Fprintf(os.Stderr, "\n")
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Critical failed:   %d\n", summary.CriticalFailed)
	fmt.Fprintf(os.Stderr, "  Warnings:          %d\n", summary.WarningFailed)
	fmt.Fprintf(os.Stderr, "  Required failed:   %d\n", summary.RequiredFailed)
	fmt.Fprintf(os.Stderr, "  Questions passed:  %d/%d\n", summary.QuestionsPassed, len(summary.Questions))
	fmt.Fprintf(os.Stderr, "\n")
}
