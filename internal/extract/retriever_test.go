package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/text2med/internal/model"
	"github.com/ppiankov/text2med/internal/ontology"
)

func TestRetrieveForCapability_OrderAndScores(t *testing.T) {
	def := ontology.Definition{
		ID:              "icu",
		StrongPhrases:   []string{"icu available"},
		WeakPhrases:     []string{"icu"},
		NegativePhrases: []string{"no icu"},
	}
	chunks := []model.TextChunk{
		chunk("f", "c1", "There is NO ICU here"),
		chunk("f", "c2", ""),
		chunk("f", "c3", "ICU available 24/7"),
	}

	matches := NewKeywordRetriever().RetrieveForCapability(chunks, def)

	require.Len(t, matches, 4)
	assert.Equal(t, model.MatchStrong, matches[0].MatchType)
	assert.Equal(t, "c3", matches[0].ChunkID)
	assert.Equal(t, 1.0, matches[0].Score)
	assert.Equal(t, model.MatchNegative, matches[1].MatchType)
	assert.Equal(t, 0.8, matches[1].Score)
	// weak matches keep chunk order among equal scores
	assert.Equal(t, "c1", matches[2].ChunkID)
	assert.Equal(t, "c3", matches[3].ChunkID)
	assert.Equal(t, 0.45, matches[3].Score)
	assert.Equal(t, "There is NO ICU here", matches[1].Text)
}

func TestRetrieveForCapability_NoHits(t *testing.T) {
	def := ontology.Definition{ID: "dialysis", WeakPhrases: []string{"dialysis"}}
	matches := NewKeywordRetriever().RetrieveForCapability([]model.TextChunk{chunk("f", "c", "maternity ward")}, def)
	assert.Empty(t, matches)
}
