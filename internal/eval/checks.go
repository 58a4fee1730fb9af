package eval

import (
	"math"

	"github.com/ppiankov/text2med/internal/model"
	"github.com/ppiankov/text2med/internal/score"
)

// prepare fills the defaults the checks and questions rely on
func prepare(claims []model.Claim) []model.Claim {
	out := make([]model.Claim, len(claims))
	for i := range claims {
		c := claims[i]
		if c.Status == "" {
			c.Status = model.StatusAbsent
		}
		if c.EvidenceCount < 0 {
			c.EvidenceCount = len(c.EvidenceIDs)
		}
		if c.ContradictionCount < 0 {
			c.ContradictionCount = 0
		}
		out[i] = c
	}
	return out
}

func check(id, description string, severity model.CheckSeverity, passed bool, details map[string]interface{}) model.Check {
	return model.Check{
		ID:          id,
		Description: description,
		Passed:      passed,
		Severity:    severity,
		Details:     details,
	}
}

// RunChecks runs the regression checks over a prepared claims table
func RunChecks(claims []model.Claim) []model.Check {
	missing := make(map[string]bool)
	seen := make(map[model.Key]bool, len(claims))
	var duplicates, badRange, badLabel, noCitation, prereqFlag, conflictFlag int

	for i := range claims {
		c := &claims[i]

		if c.FacilityID == "" {
			missing["facility_id"] = true
		}
		if c.Capability == "" {
			missing["capability"] = true
		}
		if c.Status == "" {
			missing["status"] = true
		}

		if seen[c.Key()] {
			duplicates++
		}
		seen[c.Key()] = true

		if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
			badRange++
		}
		if c.ConfidenceLabel != score.Label(c.Confidence) {
			badLabel++
		}
		if (c.Status == model.StatusPresent || c.Status == model.StatusUncertain) &&
			c.EvidenceCount <= 0 && len(c.EvidenceIDs) == 0 {
			noCitation++
		}
		if len(c.MissingPrerequisites) > 0 && !c.HasFlag(model.FlagMissingPrerequisite) {
			prereqFlag++
		}
		if c.ContradictionCount > 0 && !c.HasFlag(model.FlagInconsistentClaim) {
			conflictFlag++
		}
	}

	missingColumns := make([]string, 0, len(missing))
	for _, col := range []string{"facility_id", "capability", "status"} {
		if missing[col] {
			missingColumns = append(missingColumns, col)
		}
	}

	return []model.Check{
		check("required_columns", "Processed table contains mandatory columns.", model.SeverityCritical,
			len(missingColumns) == 0, map[string]interface{}{"missing_columns": missingColumns}),
		check("non_empty_dataset", "Processed table has at least one row.", model.SeverityCritical,
			len(claims) > 0, map[string]interface{}{"row_count": len(claims)}),
		check("duplicate_facility_capability", "No duplicate facility/capability rows.", model.SeverityWarning,
			duplicates == 0, map[string]interface{}{"duplicate_rows": duplicates}),
		check("confidence_range", "Confidence values are between 0 and 1.", model.SeverityCritical,
			badRange == 0, map[string]interface{}{"invalid_rows": badRange}),
		check("confidence_label_consistency", "confidence_label aligns with confidence thresholds.", model.SeverityWarning,
			badLabel == 0, map[string]interface{}{"mismatched_rows": badLabel}),
		check("citation_required_non_absent", "Non-absent claims include evidence support.", model.SeverityCritical,
			noCitation == 0, map[string]interface{}{"rows_missing_evidence": noCitation}),
		check("missing_prerequisite_flag_consistency", "Rows with missing prerequisites carry missing_prerequisite flag.", model.SeverityWarning,
			prereqFlag == 0, map[string]interface{}{"mismatched_rows": prereqFlag}),
		check("contradiction_flag_consistency", "Rows with contradictions carry inconsistent_claim flag.", model.SeverityWarning,
			conflictFlag == 0, map[string]interface{}{"mismatched_rows": conflictFlag}),
	}
}
