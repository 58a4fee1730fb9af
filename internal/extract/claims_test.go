package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/text2med/internal/model"
	"github.com/ppiankov/text2med/internal/ontology"
)

var fixedNow = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func chunk(facility, id, text string) model.TextChunk {
	return model.TextChunk{
		FacilityID: facility,
		DocID:      "doc_" + facility,
		ChunkID:    id,
		SourceType: "web",
		SourceRef:  "https://example.org/" + facility,
		Text:       text,
	}
}

func claimFor(t *testing.T, claims []model.Claim, facility, capability string) model.Claim {
	t.Helper()
	for _, c := range claims {
		if c.FacilityID == facility && c.Capability == capability {
			return c
		}
	}
	t.Fatalf("no claim for %s/%s", facility, capability)
	return model.Claim{}
}

func TestExtractClaims_PresentWithStrongMatch(t *testing.T) {
	ont := ontology.Parse(nil, nil)
	chunks := []model.TextChunk{chunk("f1", "c1", "ICU available with oxygen supply and ventilators")}

	claims, trace := ExtractClaims(chunks, ont, Options{Now: fixedNow})

	require.Len(t, claims, ont.Len())
	assert.NotEmpty(t, trace)

	icu := claimFor(t, claims, "f1", "icu")
	assert.Equal(t, model.StatusPresent, icu.Status)
	assert.Equal(t, 1, icu.StrongMatchCount)
	assert.Equal(t, 1, icu.WeakMatchCount)
	assert.Equal(t, 0, icu.NegativeMatchCount)
	assert.InDelta(t, 1.45, icu.RetrievalScore, 1e-9)
	assert.Equal(t, 1, icu.EvidenceCount)
	assert.Equal(t, 1, icu.SourceSupportCount)
	assert.Equal(t, []string{"c1"}, icu.EvidenceChunkIDs)
	assert.Equal(t, "Unknown Facility", icu.FacilityName)
	assert.Equal(t, "Unknown", icu.Country)
	assert.Equal(t, "critical_care", icu.Category)
	assert.Equal(t, "icu: status=present; strong=1, weak=1, negative=0", icu.RawExplanation)
	assert.Equal(t, fixedNow(), icu.UpdatedAt)

	oxygen := claimFor(t, claims, "f1", "oxygen_supply")
	assert.Equal(t, model.StatusUncertain, oxygen.Status)
	assert.Equal(t, 0, oxygen.StrongMatchCount)

	dialysis := claimFor(t, claims, "f1", "dialysis")
	assert.Equal(t, model.StatusAbsent, dialysis.Status)
	assert.Equal(t, 0, dialysis.EvidenceCount)
	assert.Empty(t, dialysis.Citations)
}

func TestExtractClaims_AbsentUsesNegativeEvidence(t *testing.T) {
	ont := ontology.Parse(nil, nil)
	chunks := []model.TextChunk{chunk("f2", "c1", "No ICU and no ventilator support available")}

	claims, _ := ExtractClaims(chunks, ont, Options{})

	icu := claimFor(t, claims, "f2", "icu")
	assert.Equal(t, model.StatusAbsent, icu.Status)
	assert.Equal(t, 1, icu.NegativeMatchCount)
	assert.Equal(t, 1, icu.EvidenceCount)
	require.Len(t, icu.Citations, 1)
	assert.Equal(t, EvidenceID("f2", "icu", "c1"), icu.Citations[0].EvidenceID)
}

func TestExtractClaims_StrongAndNegativeIsUncertain(t *testing.T) {
	ont := ontology.Parse(nil, nil)
	chunks := []model.TextChunk{
		chunk("f4", "c1", "The hospital provides icu beds."),
		chunk("f4", "c2", "Currently there is no icu on site."),
	}

	claims, _ := ExtractClaims(chunks, ont, Options{})

	icu := claimFor(t, claims, "f4", "icu")
	assert.Equal(t, model.StatusUncertain, icu.Status)
	assert.Equal(t, 1, icu.StrongMatchCount)
	assert.Equal(t, 1, icu.NegativeMatchCount)
	// Non-absent claims cite only supporting chunks
	assert.Equal(t, []string{"c1", "c2"}, icu.EvidenceChunkIDs)
}

func TestExtractClaims_EvidenceCapAndDedupe(t *testing.T) {
	ont := ontology.Parse(nil, nil)
	var chunks []model.TextChunk
	for i := 0; i < 8; i++ {
		c := chunk("f5", "c"+string(rune('a'+i)), "We offer lab tests and laboratory testing.")
		c.SourceRef = "ref" + string(rune('a'+i%3))
		chunks = append(chunks, c)
	}

	claims, _ := ExtractClaims(chunks, ont, Options{MaxEvidencePerClaim: 4})

	lab := claimFor(t, claims, "f5", "lab_tests")
	assert.Equal(t, 4, lab.EvidenceCount)
	assert.Equal(t, []string{"ca", "cb", "cc", "cd"}, lab.EvidenceChunkIDs)
	assert.Equal(t, 3, lab.SourceSupportCount)
}

func TestExtractClaims_FacilityOrderAndMetadata(t *testing.T) {
	ont := ontology.Parse([]byte("categories:\n  critical_care: [icu]\n"), nil)
	a := chunk("b", "1", "icu")
	a.FacilityName = "Bravo Clinic"
	a.Country = "Ghana"
	b := chunk("a", "2", "icu")
	c := chunk("b", "3", "icu")
	c.FacilityName = "Ignored"

	claims, _ := ExtractClaims([]model.TextChunk{a, b, c}, ont, Options{})

	require.Len(t, claims, 2)
	assert.Equal(t, "b", claims[0].FacilityID)
	assert.Equal(t, "Bravo Clinic", claims[0].FacilityName)
	assert.Equal(t, "Ghana", claims[0].Country)
	assert.Equal(t, "a", claims[1].FacilityID)
}

func TestExtractClaims_Empty(t *testing.T) {
	claims, trace := ExtractClaims(nil, ontology.Parse(nil, nil), Options{})
	assert.Empty(t, claims)
	assert.Empty(t, trace)
}

func TestDecideStatus(t *testing.T) {
	tests := []struct {
		counts MatchCounts
		want   model.Status
	}{
		{MatchCounts{Strong: 1}, model.StatusPresent},
		{MatchCounts{Strong: 3, Negative: 1}, model.StatusUncertain},
		{MatchCounts{Weak: 2}, model.StatusUncertain},
		{MatchCounts{Weak: 2, Negative: 1}, model.StatusAbsent},
		{MatchCounts{Negative: 1}, model.StatusAbsent},
		{MatchCounts{}, model.StatusAbsent},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DecideStatus(tt.counts), "%+v", tt.counts)
	}
}

func TestParseRawExplanation(t *testing.T) {
	counts, ok := ParseRawExplanation("icu: status=uncertain; strong=3, weak=0, negative=1")
	require.True(t, ok)
	assert.Equal(t, MatchCounts{Strong: 3, Weak: 0, Negative: 1}, counts)

	_, ok = ParseRawExplanation("garbage")
	assert.False(t, ok)
}

func TestEvidenceID_Deterministic(t *testing.T) {
	id := EvidenceID("f1", "icu", "c1")
	assert.Equal(t, id, EvidenceID("f1", "icu", "c1"))
	assert.True(t, strings.HasPrefix(id, "ev_"))
	assert.Len(t, id, 19)
	assert.NotEqual(t, id, EvidenceID("f1", "icu", "c2"))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short text", Snippet("  short text \n"))

	long := strings.Repeat("a", 216) + "    " + strings.Repeat("b", 50)
	got := Snippet(long)
	assert.Equal(t, strings.Repeat("a", 216)+"...", got)
	assert.LessOrEqual(t, len([]rune(got)), 220)

	exact := strings.Repeat("x", 220)
	assert.Equal(t, exact, Snippet(exact))
}
