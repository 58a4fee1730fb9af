package store

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/text2med/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "text2med.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testClaim(facility, capability string, status model.Status, confidence float64) model.Claim {
	return model.Claim{
		FacilityID:      facility,
		Capability:      capability,
		Status:          status,
		Confidence:      confidence,
		ConfidenceLabel: model.LabelUncertain,
		Flags:           []model.Flag{},
		UpdatedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSaveRun_AssignsID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.SaveRun(ctx, model.RunSummary{Kind: "build", TextChunks: 3})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].RunID)
	assert.Equal(t, 3, runs[0].TextChunks)
}

func TestSaveClaims_UpsertsPerFacilityCapability(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run1, err := s.SaveRun(ctx, model.RunSummary{Kind: "build"})
	require.NoError(t, err)
	run2, err := s.SaveRun(ctx, model.RunSummary{Kind: "verify"})
	require.NoError(t, err)

	require.NoError(t, s.SaveClaims(ctx, run1, []model.Claim{
		testClaim("f1", "icu", model.StatusPresent, 0.7),
		testClaim("f1", "x_ray", model.StatusAbsent, 0.05),
	}))
	require.NoError(t, s.SaveClaims(ctx, run2, []model.Claim{
		testClaim("f1", "icu", model.StatusUncertain, 0.3),
	}))

	claims, err := s.LoadClaims(ctx)
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, "icu", claims[0].Capability)
	assert.Equal(t, model.StatusUncertain, claims[0].Status)
	assert.InDelta(t, 0.3, claims[0].Confidence, 1e-12)
	assert.Equal(t, "x_ray", claims[1].Capability)
}

func TestSaveTraceTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.SaveRun(ctx, model.RunSummary{Kind: "build"})
	require.NoError(t, err)

	require.NoError(t, s.SaveChunks(ctx, runID, []model.TextChunk{{FacilityID: "f1", ChunkID: "c1", Text: "ICU"}}))
	require.NoError(t, s.SaveRawClaims(ctx, runID, []model.Claim{testClaim("f1", "icu", model.StatusPresent, 0)}))
	require.NoError(t, s.SaveMatches(ctx, runID, []model.ChunkMatch{
		{FacilityID: "f1", Capability: "icu", ChunkID: "c1", MatchType: model.MatchWeak, Keyword: "icu", Score: 0.45},
		{FacilityID: "f1", Capability: "icu", ChunkID: "c1", MatchType: model.MatchStrong, Keyword: "icu available", Score: 1},
	}))
	require.NoError(t, s.SaveAnomalies(ctx, runID, []model.Claim{testClaim("f1", "icu", model.StatusUncertain, 0.3)}))

	n, err := s.CountMatches(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSaveClaims_UnknownRunRejected(t *testing.T) {
	s := openTestStore(t)
	err := s.SaveClaims(context.Background(), "missing-run", []model.Claim{testClaim("f1", "icu", model.StatusPresent, 0.7)})
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.SaveRun(ctx, model.RunSummary{Kind: "build"})
	require.NoError(t, err)
	require.NoError(t, s.SaveClaims(ctx, runID, []model.Claim{testClaim("f1", "icu", model.StatusPresent, 0.7)}))

	var jsonBuf bytes.Buffer
	require.NoError(t, s.Export(ctx, &jsonBuf, "json"))
	var fromJSON []model.Claim
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))
	require.Len(t, fromJSON, 1)
	assert.Equal(t, "icu", fromJSON[0].Capability)

	var yamlBuf bytes.Buffer
	require.NoError(t, s.Export(ctx, &yamlBuf, "YAML"))
	var fromYAML []map[string]any
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	require.Len(t, fromYAML, 1)
	assert.Equal(t, "present", fromYAML[0]["status"])

	assert.ErrorIs(t, s.Export(ctx, &bytes.Buffer{}, "xml"), ErrUnknownFormat)
}
