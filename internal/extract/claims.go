package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ppiankov/text2med/internal/model"
	"github.com/ppiankov/text2med/internal/ontology"
)

// DefaultMaxEvidencePerClaim caps citations attached to one claim
const DefaultMaxEvidencePerClaim = 5

var rawExplanationRe = regexp.MustCompile(`strong=(\d+),\s*weak=(\d+),\s*negative=(\d+)`)

// Options tunes claim extraction
type Options struct {
	MaxEvidencePerClaim int
	Now                 func() time.Time
}

func (o Options) maxEvidence() int {
	if o.MaxEvidencePerClaim <= 0 {
		return DefaultMaxEvidencePerClaim
	}
	return o.MaxEvidencePerClaim
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// MatchCounts holds per-type match totals for one claim
type MatchCounts struct {
	Strong   int
	Weak     int
	Negative int
}

// FacilityGroup is the chunk subset of one facility, in input order
type FacilityGroup struct {
	FacilityID   string
	FacilityName string
	Country      string
	Chunks       []model.TextChunk
}

// GroupByFacility splits chunks per facility in first-appearance order.
// Name and country come from the facility's first chunk.
func GroupByFacility(chunks []model.TextChunk) []FacilityGroup {
	var groups []FacilityGroup
	index := make(map[string]int)
	for _, c := range chunks {
		i, ok := index[c.FacilityID]
		if !ok {
			c = c.WithDefaults()
			index[c.FacilityID] = len(groups)
			groups = append(groups, FacilityGroup{
				FacilityID:   c.FacilityID,
				FacilityName: c.FacilityName,
				Country:      c.Country,
			})
			i = len(groups) - 1
		}
		groups[i].Chunks = append(groups[i].Chunks, c)
	}
	return groups
}

// ExtractClaims produces one raw claim per (facility, capability) pair
// plus every retrieval match as a trace.
func ExtractClaims(chunks []model.TextChunk, ont *ontology.Ontology, opts Options) ([]model.Claim, []model.ChunkMatch) {
	var claims []model.Claim
	var trace []model.ChunkMatch
	for _, group := range GroupByFacility(chunks) {
		c, m := ExtractFacility(group, ont, opts)
		claims = append(claims, c...)
		trace = append(trace, m...)
	}
	return claims, trace
}

// ExtractFacility builds the claims of a single facility group
func ExtractFacility(group FacilityGroup, ont *ontology.Ontology, opts Options) ([]model.Claim, []model.ChunkMatch) {
	retriever := NewKeywordRetriever()
	now := opts.now()

	defs := ont.Ordered()
	claims := make([]model.Claim, 0, len(defs))
	var trace []model.ChunkMatch

	for _, def := range defs {
		matches := retriever.RetrieveForCapability(group.Chunks, def)
		trace = append(trace, matches...)

		counts := countMatches(matches)
		status := DecideStatus(counts)

		var score float64
		for _, m := range matches {
			score += m.Score
		}

		citations := selectEvidence(group.FacilityID, def.ID, status, matches, opts.maxEvidence())

		claim := model.Claim{
			FacilityID:         group.FacilityID,
			FacilityName:       group.FacilityName,
			Country:            group.Country,
			Capability:         def.ID,
			Category:           def.Category,
			Status:             status,
			StrongMatchCount:   counts.Strong,
			WeakMatchCount:     counts.Weak,
			NegativeMatchCount: counts.Negative,
			RetrievalScore:     score,
			Citations:          citations,
			RawExplanation:     RawExplanation(def.ID, status, counts),
			UpdatedAt:          now,
		}
		attachEvidence(&claim)
		claims = append(claims, claim)
	}

	return claims, trace
}

// DecideStatus applies the status rule to match counts
func DecideStatus(c MatchCounts) model.Status {
	switch {
	case c.Strong > 0 && c.Negative == 0:
		return model.StatusPresent
	case c.Strong > 0 && c.Negative > 0:
		return model.StatusUncertain
	case c.Weak > 0 && c.Negative == 0:
		return model.StatusUncertain
	default:
		return model.StatusAbsent
	}
}

// RawExplanation renders the human-readable match summary of a claim
func RawExplanation(capability string, status model.Status, c MatchCounts) string {
	return fmt.Sprintf("%s: status=%s; strong=%d, weak=%d, negative=%d",
		capability, status, c.Strong, c.Weak, c.Negative)
}

// ParseRawExplanation recovers match counts from a raw explanation
func ParseRawExplanation(text string) (MatchCounts, bool) {
	m := rawExplanationRe.FindStringSubmatch(text)
	if m == nil {
		return MatchCounts{}, false
	}
	strong, _ := strconv.Atoi(m[1])
	weak, _ := strconv.Atoi(m[2])
	negative, _ := strconv.Atoi(m[3])
	return MatchCounts{Strong: strong, Weak: weak, Negative: negative}, true
}

func countMatches(matches []model.ChunkMatch) MatchCounts {
	var c MatchCounts
	for _, m := range matches {
		switch m.MatchType {
		case model.MatchStrong:
			c.Strong++
		case model.MatchWeak:
			c.Weak++
		case model.MatchNegative:
			c.Negative++
		}
	}
	return c
}

// selectEvidence picks supporting matches (refuting ones for absent claims),
// one per chunk, in match order, up to limit.
func selectEvidence(facilityID, capability string, status model.Status, matches []model.ChunkMatch, limit int) []model.Citation {
	citations := make([]model.Citation, 0)
	seen := make(map[string]bool)
	for _, m := range matches {
		if len(citations) >= limit {
			break
		}
		negative := m.MatchType == model.MatchNegative
		if (status == model.StatusAbsent) != negative {
			continue
		}
		if seen[m.ChunkID] {
			continue
		}
		seen[m.ChunkID] = true
		citations = append(citations, BuildCitation(facilityID, capability, m))
	}
	return citations
}

// attachEvidence fills the evidence list columns from the claim's citations
func attachEvidence(c *model.Claim) {
	c.EvidenceIDs = make([]string, 0, len(c.Citations))
	c.EvidenceChunkIDs = make([]string, 0, len(c.Citations))
	c.EvidenceDocIDs = make([]string, 0, len(c.Citations))
	c.EvidenceSourceRefs = make([]string, 0, len(c.Citations))

	refs := make(map[string]bool)
	for _, cit := range c.Citations {
		c.EvidenceIDs = append(c.EvidenceIDs, cit.EvidenceID)
		c.EvidenceChunkIDs = append(c.EvidenceChunkIDs, cit.ChunkID)
		c.EvidenceDocIDs = append(c.EvidenceDocIDs, cit.DocID)
		c.EvidenceSourceRefs = append(c.EvidenceSourceRefs, cit.SourceRef)
		refs[cit.SourceRef] = true
	}
	c.EvidenceCount = len(c.Citations)
	c.SourceSupportCount = len(refs)
}
