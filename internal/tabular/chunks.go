package tabular

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/text2med/internal/model"
)

// Column sets of the chunk and raw document tables
var (
	RequiredChunkColumns    = []string{"facility_id", "chunk_id", "chunk_text"}
	RequiredDocumentColumns = []string{"facility_id", "source_type", "source_ref", "text"}

	ChunkColumns = []string{
		"facility_id", "facility_name", "country", "doc_id", "chunk_id",
		"chunk_index", "source_type", "source_ref", "origin_field", "chunk_text",
	}
)

// ReadChunks loads a chunk table, validating required columns
func ReadChunks(path string) ([]model.TextChunk, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require(RequiredChunkColumns...); err != nil {
		return nil, eris.Wrapf(err, "tabular: chunk table %s", path)
	}

	chunks := make([]model.TextChunk, 0, len(t.rows))
	for _, r := range t.rows {
		index, _ := strconv.Atoi(r.get("chunk_index"))
		chunks = append(chunks, model.TextChunk{
			FacilityID:   r.get("facility_id"),
			FacilityName: r.get("facility_name"),
			Country:      r.get("country"),
			DocID:        r.get("doc_id"),
			ChunkID:      r.get("chunk_id"),
			ChunkIndex:   index,
			SourceType:   r.get("source_type"),
			SourceRef:    r.get("source_ref"),
			OriginField:  r.get("origin_field"),
			Text:         r["chunk_text"],
		}.WithDefaults())
	}
	return chunks, nil
}

// ReadDocuments loads a raw document table, validating required columns
func ReadDocuments(path string) ([]model.RawDocument, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require(RequiredDocumentColumns...); err != nil {
		return nil, eris.Wrapf(err, "tabular: document table %s", path)
	}

	docs := make([]model.RawDocument, 0, len(t.rows))
	for _, r := range t.rows {
		docs = append(docs, model.RawDocument{
			FacilityID:   r.get("facility_id"),
			FacilityName: r.get("facility_name"),
			Country:      r.get("country"),
			DocID:        r.get("doc_id"),
			ChunkID:      r.get("chunk_id"),
			SourceType:   r.get("source_type"),
			SourceRef:    r.get("source_ref"),
			Text:         r["text"],
			Metadata:     r.get("metadata"),
		})
	}
	return docs, nil
}

// WriteChunksCSV writes chunks in the input chunk schema
func WriteChunksCSV(path string, chunks []model.TextChunk) error {
	return writeCSV(path, ChunkColumns, len(chunks), func(i int) []string {
		c := chunks[i]
		return []string{
			c.FacilityID, c.FacilityName, c.Country, c.DocID, c.ChunkID,
			strconv.Itoa(c.ChunkIndex), c.SourceType, c.SourceRef, c.OriginField, c.Text,
		}
	})
}

func writeCSV(path string, header []string, n int, row func(int) []string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "tabular: create %s", path)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "tabular: write header")
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return eris.Wrapf(err, "tabular: write row %d", i)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "tabular: flush csv")
	}
	return f.Close()
}
