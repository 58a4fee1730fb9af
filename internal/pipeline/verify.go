package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ppiankov/text2med/internal/extract"
	"github.com/ppiankov/text2med/internal/model"
)

// VerifyResult holds the outcome of a re-verification pass
type VerifyResult struct {
	RunID     string
	Claims    []model.Claim
	Anomalies []model.Claim
	Summary   model.VerifySummary
}

// PrepareForVerification normalizes a loaded claims table so the verifier
// and scorer can run on it: match counts come from the raw explanation,
// evidence and source counts are filled when missing (negative) and
// descriptive columns get placeholders.
func PrepareForVerification(claims []model.Claim) []model.Claim {
	out := make([]model.Claim, len(claims))
	for i := range claims {
		c := claims[i].Clone()

		counts, _ := extract.ParseRawExplanation(c.RawExplanation)
		c.StrongMatchCount = counts.Strong
		c.WeakMatchCount = counts.Weak
		c.NegativeMatchCount = counts.Negative

		if c.EvidenceCount < 0 {
			c.EvidenceCount = len(c.EvidenceIDs)
		}
		if c.SourceSupportCount < 0 {
			refs := make(map[string]bool, len(c.EvidenceSourceRefs))
			for _, r := range c.EvidenceSourceRefs {
				refs[r] = true
			}
			c.SourceSupportCount = len(refs)
		}

		if c.FacilityName == "" {
			c.FacilityName = model.UnknownFacility
		}
		if c.Country == "" {
			c.Country = model.UnknownCountry
		}
		if c.Category == "" {
			c.Category = model.UnknownCategory
		}
		if c.Status == "" {
			c.Status = model.StatusAbsent
		}
		out[i] = c
	}
	return out
}

// IsAnomaly reports whether a verified claim needs review
func IsAnomaly(c model.Claim) bool {
	return len(c.Flags) > 0 || c.ConfidenceLabel == model.LabelUncertain
}

// Reverify runs verification and scoring again over stored claims
func (p *Pipeline) Reverify(ctx context.Context, claims []model.Claim) (*VerifyResult, error) {
	if len(claims) == 0 {
		return nil, ErrNoClaims
	}

	prepared := PrepareForVerification(claims)
	scored := p.scorer.Score(p.verifier.Verify(prepared))
	now := p.now()
	for i := range scored {
		scored[i].UpdatedAt = now
	}

	res := &VerifyResult{Claims: scored, Anomalies: make([]model.Claim, 0)}
	facilities := make(map[string]bool)
	for _, c := range scored {
		facilities[c.FacilityID] = true
		if IsAnomaly(c) {
			res.Anomalies = append(res.Anomalies, c)
		}
		if c.HasFlag(model.FlagMissingPrerequisite) {
			res.Summary.MissingPrerequisiteRows++
		}
		if c.HasFlag(model.FlagInconsistentClaim) {
			res.Summary.InconsistentClaimRows++
		}
	}
	res.Summary.RowsEvaluated = len(scored)
	res.Summary.FacilitiesEvaluated = len(facilities)
	res.Summary.AnomalyRows = len(res.Anomalies)

	if p.store != nil {
		runID, err := p.store.SaveRun(ctx, model.RunSummary{
			Kind:        "verify",
			StartedAt:   now,
			RawClaims:   len(claims),
			FinalClaims: len(scored),
		})
		if err != nil {
			return nil, err
		}
		res.RunID = runID
		if err := p.store.SaveClaims(ctx, runID, scored); err != nil {
			return nil, err
		}
		if err := p.store.SaveAnomalies(ctx, runID, res.Anomalies); err != nil {
			return nil, err
		}
	}

	zap.L().Info("pipeline: verification complete",
		zap.Int("rows", res.Summary.RowsEvaluated),
		zap.Int("anomalies", res.Summary.AnomalyRows),
	)
	return res, nil
}
