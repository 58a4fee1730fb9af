package eval

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/text2med/internal/model"
)

const maxSampleFacilities = 5

// Suite runs regression checks and acceptance questions over a claims table
type Suite struct {
	questions []Question
	now       func() time.Time
}

// NewSuite creates a suite for questions; nil questions use DefaultQuestions
func NewSuite(questions []Question) *Suite {
	if questions == nil {
		questions = DefaultQuestions()
	}
	return &Suite{questions: questions, now: func() time.Time { return time.Now().UTC() }}
}

// Run evaluates claims read from inputPath
func (s *Suite) Run(inputPath string, claims []model.Claim) model.EvalSummary {
	prepared := prepare(claims)

	summary := model.EvalSummary{
		GeneratedAt: s.now(),
		InputPath:   inputPath,
		RowCount:    len(prepared),
		Checks:      RunChecks(prepared),
		Questions:   make([]model.QuestionResult, 0, len(s.questions)),
	}
	for _, q := range s.questions {
		summary.Questions = append(summary.Questions, Evaluate(prepared, q))
	}

	for _, c := range summary.Checks {
		if c.Passed {
			continue
		}
		if c.Severity == model.SeverityCritical {
			summary.CriticalFailed++
		} else {
			summary.WarningFailed++
		}
	}
	for _, q := range summary.Questions {
		switch {
		case q.Passed:
			summary.QuestionsPassed++
		case q.Required:
			summary.RequiredFailed++
		}
	}

	zap.L().Info("eval: suite complete",
		zap.Int("rows", summary.RowCount),
		zap.Int("critical_failed", summary.CriticalFailed),
		zap.Int("warning_failed", summary.WarningFailed),
		zap.Int("required_failed", summary.RequiredFailed),
	)
	return summary
}

// Evaluate answers one question against prepared claims
func Evaluate(claims []model.Claim, q Question) model.QuestionResult {
	res := model.QuestionResult{
		ID:         q.ID,
		Prompt:     q.Prompt,
		Type:       strings.TrimSpace(q.Type),
		Required:   q.Required,
		SourceFile: q.SourceFile,
	}
	if res.ID == "" {
		res.ID = "unnamed_question"
	}
	if res.Prompt == "" {
		res.Prompt = q.Question
	}
	if res.Prompt == "" {
		res.Prompt = res.ID
	}

	var matches []string
	switch res.Type {
	case TypeCapabilityStatusCount:
		matches, res.Filters, res.Error = statusCount(claims, q)
	case TypeMissingPrerequisite:
		matches, res.Filters, res.Error = missingPrerequisite(claims, q)
	default:
		res.Error = fmt.Sprintf("Unsupported question type: %s", res.Type)
	}
	if res.Error != "" {
		return res
	}

	res.MatchCount = len(matches)
	res.SampleFacilities = sample(matches)
	res.Passed = within(res.MatchCount, q.ExpectMin, q.ExpectMax)
	return res
}

// statusCount returns one entry per matching row
func statusCount(claims []model.Claim, q Question) ([]string, map[string]interface{}, string) {
	capability := strings.TrimSpace(q.Capability)
	if capability == "" {
		return nil, nil, "Missing required field: capability"
	}
	statuses := firstNonEmpty(q.Statuses, q.StatusIn, []string{string(model.StatusPresent)})
	allowed := set(statuses)

	var matches []string
	for _, c := range claims {
		if c.Capability == capability && allowed[string(c.Status)] {
			matches = append(matches, c.FacilityID)
		}
	}
	return matches, map[string]interface{}{"capability": capability, "statuses": statuses}, ""
}

// missingPrerequisite returns facilities claiming capability while the prerequisite is lacking
func missingPrerequisite(claims []model.Claim, q Question) ([]string, map[string]interface{}, string) {
	capability := strings.TrimSpace(q.Capability)
	prerequisite := strings.TrimSpace(q.Prerequisite)
	if prerequisite == "" {
		prerequisite = strings.TrimSpace(q.RequiredCapability)
	}
	if capability == "" || prerequisite == "" {
		return nil, nil, "Missing required field(s): capability and prerequisite."
	}
	capStatuses := firstNonEmpty(q.CapabilityStatuses, []string{string(model.StatusPresent), string(model.StatusUncertain)})
	lacking := firstNonEmpty(q.LackingStatuses, []string{string(model.StatusAbsent), "missing"})

	// first row per facility wins for both sides
	var order []string
	capStatus := make(map[string]string)
	prereqStatus := make(map[string]string)
	for _, c := range claims {
		switch c.Capability {
		case capability:
			if _, ok := capStatus[c.FacilityID]; !ok {
				capStatus[c.FacilityID] = string(c.Status)
				order = append(order, c.FacilityID)
			}
		case prerequisite:
			if _, ok := prereqStatus[c.FacilityID]; !ok {
				prereqStatus[c.FacilityID] = string(c.Status)
			}
		}
	}

	claimed, lack := set(capStatuses), set(lacking)
	var matches []string
	for _, facility := range order {
		if !claimed[capStatus[facility]] {
			continue
		}
		status, ok := prereqStatus[facility]
		if !ok {
			status = "missing"
		}
		if lack[status] {
			matches = append(matches, facility)
		}
	}

	return matches, map[string]interface{}{
		"capability":          capability,
		"prerequisite":        prerequisite,
		"capability_statuses": capStatuses,
		"lacking_statuses":    lacking,
	}, ""
}

// sample returns up to five distinct facility ids in first-seen order
func sample(facilities []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range facilities {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == maxSampleFacilities {
			break
		}
	}
	return out
}

func within(n int, lo, hi *int) bool {
	if lo != nil && n < *lo {
		return false
	}
	if hi != nil && n > *hi {
		return false
	}
	return true
}

func firstNonEmpty(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			out := make([]string, len(l))
			for i, v := range l {
				out[i] = strings.TrimSpace(v)
			}
			return out
		}
	}
	return nil
}

func set(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}
