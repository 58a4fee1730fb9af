package extract

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/ppiankov/text2med/internal/model"
)

const (
	maxSnippetChars = 220
	snippetEllipsis = "..."
)

// EvidenceID derives the stable citation id for a (facility, capability, chunk) triple
func EvidenceID(facilityID, capability, chunkID string) string {
	return "ev_" + StableID(facilityID+"|"+capability+"|"+chunkID)
}

// StableID returns the first 16 hex characters of the SHA-1 of seed
func StableID(seed string) string {
	sum := sha1.Sum([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}

// Snippet trims text and shortens it to the citation limit
func Snippet(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxSnippetChars {
		return text
	}
	cut := maxSnippetChars - len(snippetEllipsis)
	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + snippetEllipsis
}

// BuildCitation creates the citation linking a claim to one matched chunk
func BuildCitation(facilityID, capability string, m model.ChunkMatch) model.Citation {
	return model.Citation{
		EvidenceID: EvidenceID(facilityID, capability, m.ChunkID),
		ChunkID:    m.ChunkID,
		DocID:      m.DocID,
		SourceType: m.SourceType,
		SourceRef:  m.SourceRef,
		Snippet:    Snippet(m.Text),
	}
}
