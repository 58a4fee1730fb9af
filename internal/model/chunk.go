package model

// Placeholders used when upstream rows omit descriptive columns
const (
	UnknownFacility = "Unknown Facility"
	UnknownCountry  = "Unknown"
	UnknownCategory = "unknown"
)

// RawDocument is one ingested facility document before chunking
type RawDocument struct {
	FacilityID   string `json:"facility_id"`
	FacilityName string `json:"facility_name,omitempty"`
	Country      string `json:"country,omitempty"`
	DocID        string `json:"doc_id,omitempty"`
	ChunkID      string `json:"chunk_id,omitempty"`
	SourceType   string `json:"source_type"`
	SourceRef    string `json:"source_ref"`
	Text         string `json:"text"`
	Metadata     string `json:"metadata,omitempty"` // JSON object with source_field or fields
}

// TextChunk is the unit of text the extraction core reads
type TextChunk struct {
	FacilityID   string `json:"facility_id"`
	FacilityName string `json:"facility_name"`
	Country      string `json:"country"`
	DocID        string `json:"doc_id"`
	ChunkID      string `json:"chunk_id"`
	ChunkIndex   int    `json:"chunk_index"`
	SourceType   string `json:"source_type"`
	SourceRef    string `json:"source_ref"`
	OriginField  string `json:"origin_field,omitempty"`
	Text         string `json:"chunk_text"`
}

// WithDefaults fills descriptive placeholders for missing facility metadata
func (c TextChunk) WithDefaults() TextChunk {
	if c.FacilityName == "" {
		c.FacilityName = UnknownFacility
	}
	if c.Country == "" {
		c.Country = UnknownCountry
	}
	return c
}
