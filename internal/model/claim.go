package model

import "time"

// Status is the decided presence of a capability at a facility
type Status string

const (
	StatusPresent   Status = "present"
	StatusUncertain Status = "uncertain"
	StatusAbsent    Status = "absent"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusUncertain, StatusAbsent:
		return true
	}
	return false
}

// Affirmative reports whether the status still asserts the capability
func (s Status) Affirmative() bool {
	return s == StatusPresent || s == StatusUncertain
}

// MatchType classifies a lexical hit by evidence strength
type MatchType string

const (
	MatchStrong   MatchType = "strong"
	MatchWeak     MatchType = "weak"
	MatchNegative MatchType = "negative"
)

// Fixed retrieval weights per match type
const (
	StrongMatchScore   = 1.0
	WeakMatchScore     = 0.45
	NegativeMatchScore = 0.8
)

// Flag marks a verification finding on a claim
type Flag string

const (
	FlagMissingPrerequisite Flag = "missing_prerequisite"
	FlagInconsistentClaim   Flag = "inconsistent_claim"
	FlagLowEvidence         Flag = "low_evidence"
)

// ConfidenceLabel is the categorical reading of a confidence score
type ConfidenceLabel string

const (
	LabelConfirmed ConfidenceLabel = "confirmed"
	LabelProbable  ConfidenceLabel = "probable"
	LabelUncertain ConfidenceLabel = "uncertain"
)

// ChunkMatch is one (capability, chunk) phrase hit
type ChunkMatch struct {
	FacilityID string    `json:"facility_id"`
	Capability string    `json:"capability"`
	ChunkID    string    `json:"chunk_id"`
	DocID      string    `json:"doc_id"`
	SourceType string    `json:"source_type"`
	SourceRef  string    `json:"source_ref"`
	Text       string    `json:"chunk_text"`
	MatchType  MatchType `json:"match_type"`
	Keyword    string    `json:"keyword"`
	Score      float64   `json:"score"`
}

// Citation links a claim to the chunk that supports it
type Citation struct {
	EvidenceID string `json:"evidence_id" yaml:"evidence_id"`
	ChunkID    string `json:"chunk_id" yaml:"chunk_id"`
	DocID      string `json:"doc_id" yaml:"doc_id"`
	SourceType string `json:"source_type" yaml:"source_type"`
	SourceRef  string `json:"source_ref" yaml:"source_ref"`
	Snippet    string `json:"snippet" yaml:"snippet"`
}

// Claim is one facility's inferred status for one capability.
// It is created by extraction, adjusted by verification and finalized by scoring.
type Claim struct {
	FacilityID   string `json:"facility_id" yaml:"facility_id"`
	FacilityName string `json:"facility_name" yaml:"facility_name"`
	Country      string `json:"country" yaml:"country"`
	Capability   string `json:"capability" yaml:"capability"`
	Category     string `json:"category" yaml:"category"`

	Status         Status `json:"status" yaml:"status"`
	OriginalStatus Status `json:"original_status,omitempty" yaml:"original_status,omitempty"`

	StrongMatchCount   int     `json:"strong_match_count" yaml:"strong_match_count"`
	WeakMatchCount     int     `json:"weak_match_count" yaml:"weak_match_count"`
	NegativeMatchCount int     `json:"negative_match_count" yaml:"negative_match_count"`
	RetrievalScore     float64 `json:"retrieval_score" yaml:"retrieval_score"`

	EvidenceCount      int        `json:"evidence_count" yaml:"evidence_count"`
	SourceSupportCount int        `json:"source_support_count" yaml:"source_support_count"`
	EvidenceIDs        []string   `json:"evidence_ids" yaml:"evidence_ids"`
	EvidenceChunkIDs   []string   `json:"evidence_chunk_ids" yaml:"evidence_chunk_ids"`
	EvidenceDocIDs     []string   `json:"evidence_doc_ids" yaml:"evidence_doc_ids"`
	EvidenceSourceRefs []string   `json:"evidence_source_refs" yaml:"evidence_source_refs"`
	Citations          []Citation `json:"citations" yaml:"citations"`

	RawExplanation    string `json:"raw_explanation" yaml:"raw_explanation"`
	VerificationNotes string `json:"verification_notes" yaml:"verification_notes"`

	Flags                []Flag   `json:"flags" yaml:"flags"`
	MissingPrerequisites []string `json:"missing_prerequisites" yaml:"missing_prerequisites"`
	ContradictionCount   int      `json:"contradiction_count" yaml:"contradiction_count"`

	Confidence            float64         `json:"confidence" yaml:"confidence"`
	ConfidenceLabel       ConfidenceLabel `json:"confidence_label" yaml:"confidence_label"`
	ConfidenceExplanation string          `json:"confidence_explanation" yaml:"confidence_explanation"`

	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Key identifies the (facility, capability) pair a claim belongs to
type Key struct {
	FacilityID string
	Capability string
}

// Key returns the uniqueness key of the claim
func (c *Claim) Key() Key {
	return Key{FacilityID: c.FacilityID, Capability: c.Capability}
}

// HasFlag reports whether the claim carries flag f
func (c *Claim) HasFlag(f Flag) bool {
	for _, existing := range c.Flags {
		if existing == f {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so later stages never alias earlier slices
func (c Claim) Clone() Claim {
	c.EvidenceIDs = cloneStrings(c.EvidenceIDs)
	c.EvidenceChunkIDs = cloneStrings(c.EvidenceChunkIDs)
	c.EvidenceDocIDs = cloneStrings(c.EvidenceDocIDs)
	c.EvidenceSourceRefs = cloneStrings(c.EvidenceSourceRefs)
	c.MissingPrerequisites = cloneStrings(c.MissingPrerequisites)
	if c.Citations != nil {
		c.Citations = append(make([]Citation, 0, len(c.Citations)), c.Citations...)
	}
	if c.Flags != nil {
		c.Flags = append(make([]Flag, 0, len(c.Flags)), c.Flags...)
	}
	return c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}
