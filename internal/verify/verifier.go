package verify

import (
	"strings"

	"github.com/ppiankov/text2med/internal/model"
	"github.com/ppiankov/text2med/internal/ontology"
)

const passedNote = "Verification checks passed."

// Options tunes verification
type Options struct {
	// PrerequisiteStrict downgrades present claims with missing prerequisites
	PrerequisiteStrict bool
}

// DefaultOptions returns strict prerequisite checking
func DefaultOptions() Options {
	return Options{PrerequisiteStrict: true}
}

// Verifier applies prerequisite and contradiction checks to claim batches
type Verifier struct {
	ontology *ontology.Ontology
	opts     Options
}

// NewVerifier creates a new verifier
func NewVerifier(ont *ontology.Ontology, opts Options) *Verifier {
	return &Verifier{ontology: ont, opts: opts}
}

// Apply verifies claims against ont and returns a new slice
func Apply(claims []model.Claim, ont *ontology.Ontology, opts Options) []model.Claim {
	return NewVerifier(ont, opts).Verify(claims)
}

// statusIndex maps (facility, capability) to the first status seen in a batch
type statusIndex map[model.Key]model.Status

func buildIndex(claims []model.Claim) statusIndex {
	idx := make(statusIndex, len(claims))
	for i := range claims {
		key := claims[i].Key()
		if _, ok := idx[key]; !ok {
			idx[key] = claims[i].Status
		}
	}
	return idx
}

// missing reports whether capability is unsupported for facility in the batch
func (idx statusIndex) missing(facilityID, capability string) bool {
	status, ok := idx[model.Key{FacilityID: facilityID, Capability: capability}]
	return !ok || status == model.StatusAbsent
}

// Verify runs every check on a copy of claims. Prerequisite lookups read
// the statuses the batch had on entry.
func (v *Verifier) Verify(claims []model.Claim) []model.Claim {
	if len(claims) == 0 {
		return []model.Claim{}
	}

	idx := buildIndex(claims)
	out := make([]model.Claim, len(claims))
	for i := range claims {
		out[i] = v.verifyClaim(claims[i].Clone(), idx)
	}
	return out
}

func (v *Verifier) verifyClaim(c model.Claim, idx statusIndex) model.Claim {
	if c.OriginalStatus == "" {
		c.OriginalStatus = c.Status
	}

	status := c.Status
	flags := make([]model.Flag, 0)
	missing := make([]string, 0)
	contradictions := 0

	// 1. Prerequisites
	if def, ok := v.ontology.Get(c.Capability); ok && status.Affirmative() && len(def.Prerequisites) > 0 {
		for _, prereq := range def.Prerequisites {
			if idx.missing(c.FacilityID, prereq) {
				missing = append(missing, prereq)
			}
		}
		if len(missing) > 0 {
			flags = append(flags, model.FlagMissingPrerequisite)
			if v.opts.PrerequisiteStrict && status == model.StatusPresent {
				status = model.StatusUncertain
			}
		}
	}

	// 2. Contradictions
	if status.Affirmative() && c.StrongMatchCount > 0 && c.NegativeMatchCount > 0 {
		flags = append(flags, model.FlagInconsistentClaim)
		contradictions++
		if status == model.StatusPresent {
			status = model.StatusUncertain
		}
	}

	// 3. Evidence floor
	if status == model.StatusAbsent && c.EvidenceCount == 0 {
		flags = append(flags, model.FlagLowEvidence)
	}

	c.Status = status
	c.Flags = flags
	c.MissingPrerequisites = missing
	c.ContradictionCount = contradictions
	c.VerificationNotes = notes(flags, missing)
	return c
}

func notes(flags []model.Flag, missing []string) string {
	if len(flags) == 0 {
		return passedNote
	}
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = string(f)
	}
	note := strings.Join(parts, "; ")
	if len(missing) > 0 {
		note += " (" + strings.Join(missing, ", ") + ")"
	}
	return note
}
