package chunk

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/text2med/internal/extract"
	"github.com/ppiankov/text2med/internal/model"
)

// ErrMissingFacility is returned for documents without a facility id
var ErrMissingFacility = eris.New("chunk: document has no facility_id")

// Options tunes document chunking
type Options struct {
	Strategy Strategy
	MaxChars int
}

// DefaultOptions returns sentence splitting at DefaultMaxChars
func DefaultOptions() Options {
	return Options{Strategy: StrategySentence, MaxChars: DefaultMaxChars}
}

// Normalize turns raw documents into text chunks.
// Documents that reduce to empty text produce no chunks.
func Normalize(docs []model.RawDocument, opts Options) ([]model.TextChunk, error) {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}

	var chunks []model.TextChunk
	for idx, doc := range docs {
		if strings.TrimSpace(doc.FacilityID) == "" {
			return nil, eris.Wrapf(ErrMissingFacility, "document %d", idx)
		}

		docID := doc.DocID
		if docID == "" {
			docID = "doc_" + extract.StableID(fmt.Sprintf("%s_%d", doc.FacilityID, idx))
		}
		baseChunkID := doc.ChunkID
		if baseChunkID == "" {
			baseChunkID = "chunk_" + extract.StableID(fmt.Sprintf("%s_%d", docID, idx))
		}

		pieces := Split(CleanText(doc.Text, doc.SourceType), opts.Strategy, opts.MaxChars)
		if len(pieces) == 0 {
			zap.L().Debug("chunk: empty document skipped", zap.String("doc_id", docID))
			continue
		}

		origin := OriginField(doc.Metadata)
		for i, text := range pieces {
			chunkID := baseChunkID
			if i > 0 {
				chunkID = fmt.Sprintf("%s_%d_%s", baseChunkID, i,
					extract.StableID(fmt.Sprintf("%s:%d:%s", docID, i, text))[:8])
			}
			chunks = append(chunks, model.TextChunk{
				FacilityID:   doc.FacilityID,
				FacilityName: doc.FacilityName,
				Country:      doc.Country,
				DocID:        docID,
				ChunkID:      chunkID,
				ChunkIndex:   i,
				SourceType:   doc.SourceType,
				SourceRef:    doc.SourceRef,
				OriginField:  origin,
				Text:         text,
			}.WithDefaults())
		}
	}
	return chunks, nil
}

// CleanText strips markup from HTML sources and applies NFKC normalization
func CleanText(text, sourceType string) string {
	if htmlSourceTypes[strings.ToLower(sourceType)] || looksLikeMarkup(text) {
		text = visibleText(text)
	}
	return norm.NFKC.String(text)
}

// OriginField derives the source field name from a metadata JSON object:
// source_field if set, otherwise the comma-joined fields list.
func OriginField(metadata string) string {
	if strings.TrimSpace(metadata) == "" {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(metadata), &payload); err != nil {
		return ""
	}
	if field, ok := payload["source_field"]; ok && truthy(field) {
		return fmt.Sprint(field)
	}
	list, ok := payload["fields"].([]any)
	if !ok {
		return ""
	}
	fields := make([]string, 0, len(list))
	for _, f := range list {
		if s := fmt.Sprint(f); strings.TrimSpace(s) != "" {
			fields = append(fields, s)
		}
	}
	return strings.Join(fields, ",")
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	default:
		return true
	}
}
