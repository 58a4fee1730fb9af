package extract

import (
	"sort"
	"strings"

	"github.com/ppiankov/text2med/internal/model"
	"github.com/ppiankov/text2med/internal/ontology"
)

// KeywordRetriever scores chunks by lexical phrase matches
type KeywordRetriever struct{}

// NewKeywordRetriever creates a new keyword retriever
func NewKeywordRetriever() *KeywordRetriever {
	return &KeywordRetriever{}
}

// RetrieveForCapability returns every phrase hit of def across chunks,
// strongest first. Matching is case-insensitive substring containment.
func (r *KeywordRetriever) RetrieveForCapability(chunks []model.TextChunk, def ontology.Definition) []model.ChunkMatch {
	var matches []model.ChunkMatch

	sets := []struct {
		kind    model.MatchType
		phrases []string
		score   float64
	}{
		{model.MatchStrong, def.StrongPhrases, model.StrongMatchScore},
		{model.MatchWeak, def.WeakPhrases, model.WeakMatchScore},
		{model.MatchNegative, def.NegativePhrases, model.NegativeMatchScore},
	}

	for _, chunk := range chunks {
		lower := strings.ToLower(chunk.Text)
		if lower == "" {
			continue
		}

		for _, set := range sets {
			for _, keyword := range hits(lower, set.phrases) {
				matches = append(matches, model.ChunkMatch{
					FacilityID: chunk.FacilityID,
					Capability: def.ID,
					ChunkID:    chunk.ChunkID,
					DocID:      chunk.DocID,
					SourceType: chunk.SourceType,
					SourceRef:  chunk.SourceRef,
					Text:       chunk.Text,
					MatchType:  set.kind,
					Keyword:    keyword,
					Score:      set.score,
				})
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// hits returns the phrases contained in text
func hits(text string, phrases []string) []string {
	var out []string
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" && strings.Contains(text, phrase) {
			out = append(out, phrase)
		}
	}
	return out
}
