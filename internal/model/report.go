package model

import "time"

// RunSummary records the counts of one build run
type RunSummary struct {
	RunID        string    `json:"run_id" yaml:"run_id"`
	Kind         string    `json:"kind" yaml:"kind"` // build, verify
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	RawDocuments int       `json:"raw_documents" yaml:"raw_documents"`
	TextChunks   int       `json:"text_chunks" yaml:"text_chunks"`
	RawClaims    int       `json:"raw_claims" yaml:"raw_claims"`
	FinalClaims  int       `json:"final_claims" yaml:"final_claims"`
	Matches      int       `json:"retrieval_matches" yaml:"retrieval_matches"`
}

// VerifySummary records the outcome of a re-verification pass
type VerifySummary struct {
	RowsEvaluated           int    `json:"rows_evaluated" yaml:"rows_evaluated"`
	FacilitiesEvaluated     int    `json:"facilities_evaluated" yaml:"facilities_evaluated"`
	AnomalyRows             int    `json:"anomaly_rows" yaml:"anomaly_rows"`
	MissingPrerequisiteRows int    `json:"missing_prerequisite_rows" yaml:"missing_prerequisite_rows"`
	InconsistentClaimRows   int    `json:"inconsistent_claim_rows" yaml:"inconsistent_claim_rows"`
	OutputPath              string `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	AnomalyPath             string `json:"anomaly_path,omitempty" yaml:"anomaly_path,omitempty"`
}

// CheckSeverity indicates how a failed check affects an evaluation run
type CheckSeverity string

const (
	SeverityWarning  CheckSeverity = "warning"
	SeverityCritical CheckSeverity = "critical"
)

// Check is the outcome of one regression check over a claims table
type Check struct {
	ID          string                 `json:"id" yaml:"id"`
	Description string                 `json:"description" yaml:"description"`
	Passed      bool                   `json:"passed" yaml:"passed"`
	Severity    CheckSeverity          `json:"severity" yaml:"severity"`
	Details     map[string]interface{} `json:"details" yaml:"details"`
}

// QuestionResult is the outcome of one acceptance question
type QuestionResult struct {
	ID               string                 `json:"id" yaml:"id"`
	Prompt           string                 `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Type             string                 `json:"type" yaml:"type"`
	Required         bool                   `json:"required" yaml:"required"`
	Passed           bool                   `json:"passed" yaml:"passed"`
	MatchCount       int                    `json:"match_count" yaml:"match_count"`
	SampleFacilities []string               `json:"sample_facilities,omitempty" yaml:"sample_facilities,omitempty"`
	Filters          map[string]interface{} `json:"filters,omitempty" yaml:"filters,omitempty"`
	Error            string                 `json:"error,omitempty" yaml:"error,omitempty"`
	SourceFile       string                 `json:"source_file,omitempty" yaml:"source_file,omitempty"`
}

// EvalSummary is the full report of an evaluation run
type EvalSummary struct {
	GeneratedAt     time.Time        `json:"generated_at" yaml:"generated_at"`
	InputPath       string           `json:"input_path" yaml:"input_path"`
	RowCount        int              `json:"row_count" yaml:"row_count"`
	Checks          []Check          `json:"checks" yaml:"checks"`
	Questions       []QuestionResult `json:"questions" yaml:"questions"`
	CriticalFailed  int              `json:"critical_failed" yaml:"critical_failed"`
	WarningFailed   int              `json:"warning_failed" yaml:"warning_failed"`
	RequiredFailed  int              `json:"required_questions_failed" yaml:"required_questions_failed"`
	QuestionsPassed int              `json:"questions_passed" yaml:"questions_passed"`
}

// Failed reports whether the run should fail under --fail-on-check
func (s EvalSummary) Failed() bool {
	return s.CriticalFailed > 0 || s.RequiredFailed > 0
}
