package tabular

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/text2med/internal/model"
)

// ClaimColumns is the output schema of the final claims table
var ClaimColumns = []string{
	"facility_id", "facility_name", "country", "capability", "category", "status",
	"confidence", "confidence_label", "evidence_count", "source_support_count",
	"evidence_ids", "evidence_chunk_ids", "evidence_doc_ids", "evidence_source_refs",
	"flags", "missing_prerequisites", "contradiction_count", "raw_explanation",
	"verification_notes", "confidence_explanation", "citations", "updated_at",
}

// RequiredClaimColumns must be present to re-verify or evaluate a claims table
var RequiredClaimColumns = []string{"facility_id", "capability", "status"}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "tabular: create dir for %s", path)
	}
	return nil
}

// WriteJSON writes v as indented JSON
func WriteJSON(path string, v any) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "tabular: marshal %s", path)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "tabular: write %s", path)
	}
	return nil
}

// WriteJSONL writes one JSON document per element of items
func WriteJSONL[T any](path string, items []T) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "tabular: create %s", path)
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return eris.Wrapf(err, "tabular: encode line %d", i)
		}
	}
	return f.Close()
}

// WriteClaimsJSON writes claims as a JSON array
func WriteClaimsJSON(path string, claims []model.Claim) error {
	if claims == nil {
		claims = []model.Claim{}
	}
	return WriteJSON(path, claims)
}

// WriteClaimsCSV writes claims in the output schema; list columns are JSON-encoded
func WriteClaimsCSV(path string, claims []model.Claim) error {
	return writeCSV(path, ClaimColumns, len(claims), func(i int) []string {
		c := claims[i]
		return []string{
			c.FacilityID, c.FacilityName, c.Country, c.Capability, c.Category, string(c.Status),
			strconv.FormatFloat(c.Confidence, 'f', -1, 64), string(c.ConfidenceLabel),
			strconv.Itoa(c.EvidenceCount), strconv.Itoa(c.SourceSupportCount),
			jsonList(c.EvidenceIDs), jsonList(c.EvidenceChunkIDs), jsonList(c.EvidenceDocIDs), jsonList(c.EvidenceSourceRefs),
			jsonList(c.Flags), jsonList(c.MissingPrerequisites), strconv.Itoa(c.ContradictionCount),
			c.RawExplanation, c.VerificationNotes, c.ConfidenceExplanation,
			jsonList(c.Citations), c.UpdatedAt.UTC().Format(time.RFC3339),
		}
	})
}

func jsonList[T any](items []T) string {
	if items == nil {
		items = []T{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}

// ReadClaims loads a claims table from JSON, JSON lines or CSV
func ReadClaims(path string) ([]model.Claim, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if format == FormatJSON {
		return ReadClaimsJSON(path)
	}

	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require(RequiredClaimColumns...); err != nil {
		return nil, eris.Wrapf(err, "tabular: claims table %s", path)
	}

	claims := make([]model.Claim, 0, len(t.rows))
	for i, r := range t.rows {
		c, err := claimFromRecord(r)
		if err != nil {
			return nil, eris.Wrapf(err, "tabular: claims row %d", i)
		}
		claims = append(claims, c)
	}
	return claims, nil
}

// ReadClaimsJSON loads claims written by WriteClaimsJSON
func ReadClaimsJSON(path string) ([]model.Claim, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: read %s", path)
	}
	// An empty array carries no schema to check
	t, err := readJSONArray(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: decode %s", path)
	}
	if len(t.rows) > 0 {
		if err := t.require(RequiredClaimColumns...); err != nil {
			return nil, eris.Wrapf(err, "tabular: claims table %s", path)
		}
	}

	var claims []model.Claim
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, eris.Wrapf(err, "tabular: decode %s", path)
	}
	return claims, nil
}

func claimFromRecord(r record) (model.Claim, error) {
	c := model.Claim{
		FacilityID:            r.get("facility_id"),
		FacilityName:          r.get("facility_name"),
		Country:               r.get("country"),
		Capability:            r.get("capability"),
		Category:              r.get("category"),
		Status:                model.Status(r.get("status")),
		OriginalStatus:        model.Status(r.get("original_status")),
		ConfidenceLabel:       model.ConfidenceLabel(r.get("confidence_label")),
		RawExplanation:        r["raw_explanation"],
		VerificationNotes:     r["verification_notes"],
		ConfidenceExplanation: r["confidence_explanation"],
	}

	// Absent count columns stay -1 so callers can tell them from zero
	c.EvidenceCount = intOr(r.get("evidence_count"), -1)
	c.SourceSupportCount = intOr(r.get("source_support_count"), -1)
	c.ContradictionCount = intOr(r.get("contradiction_count"), 0)
	c.StrongMatchCount = intOr(r.get("strong_match_count"), 0)
	c.WeakMatchCount = intOr(r.get("weak_match_count"), 0)
	c.NegativeMatchCount = intOr(r.get("negative_match_count"), 0)

	if v := r.get("confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c, eris.Wrapf(err, "confidence %q", v)
		}
		c.Confidence = f
	}
	if v := r.get("updated_at"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			c.UpdatedAt = ts
		}
	}

	lists := []struct {
		column string
		target any
	}{
		{"evidence_ids", &c.EvidenceIDs},
		{"evidence_chunk_ids", &c.EvidenceChunkIDs},
		{"evidence_doc_ids", &c.EvidenceDocIDs},
		{"evidence_source_refs", &c.EvidenceSourceRefs},
		{"flags", &c.Flags},
		{"missing_prerequisites", &c.MissingPrerequisites},
		{"citations", &c.Citations},
	}
	for _, l := range lists {
		if err := decodeList(r.get(l.column), l.target); err != nil {
			return c, eris.Wrapf(err, "column %s", l.column)
		}
	}
	return c, nil
}

func intOr(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if f, ferr := strconv.ParseFloat(v, 64); ferr == nil {
			return int(f)
		}
		return fallback
	}
	return n
}

// decodeList accepts a JSON array or a comma/semicolon separated string
func decodeList(v string, target any) error {
	if v == "" {
		return nil
	}
	if strings.HasPrefix(v, "[") {
		return json.Unmarshal([]byte(v), target)
	}
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' })
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	raw, _ := json.Marshal(items)
	return json.Unmarshal(raw, target)
}
