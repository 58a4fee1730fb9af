package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/text2med/internal/cache"
	"github.com/ppiankov/text2med/internal/config"
	"github.com/ppiankov/text2med/internal/model"
	"github.com/ppiankov/text2med/internal/ontology"
	"github.com/ppiankov/text2med/internal/store"
	"github.com/ppiankov/text2med/internal/tabular"
)

func testClock() func() time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func sampleChunks() []model.TextChunk {
	return []model.TextChunk{
		{FacilityID: "f1", FacilityName: "Mercy Hospital", Country: "Ghana", DocID: "d1", ChunkID: "c1",
			SourceType: "web", SourceRef: "https://example.org/f1", Text: "ICU available with oxygen supply and ventilators"},
		{FacilityID: "f2", FacilityName: "Hill Clinic", Country: "Ghana", DocID: "d2", ChunkID: "c2",
			SourceType: "web", SourceRef: "https://example.org/f2", Text: "No ICU and no ventilator support available"},
		{FacilityID: "f3", DocID: "d3", ChunkID: "c3",
			SourceType: "report", SourceRef: "report-3", Text: "Provides ICU. No oxygen."},
	}
}

func find(t *testing.T, claims []model.Claim, facility, capability string) model.Claim {
	t.Helper()
	for _, c := range claims {
		if c.FacilityID == facility && c.Capability == capability {
			return c
		}
	}
	t.Fatalf("no claim for %s/%s", facility, capability)
	return model.Claim{}
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Paths.OutputDir = t.TempDir()
	return NewPipeline(cfg, ontology.Parse(nil, nil), append([]Option{WithClock(testClock())}, opts...)...)
}

func TestBuild_Scenarios(t *testing.T) {
	p := newTestPipeline(t)

	res, err := p.Build(context.Background(), sampleChunks())
	require.NoError(t, err)

	ont := p.Ontology()
	assert.Len(t, res.RawClaims, 3*ont.Len())
	assert.Len(t, res.Claims, 3*ont.Len())
	assert.Equal(t, 3, res.Summary.TextChunks)
	assert.Equal(t, len(res.Matches), res.Summary.Matches)

	icu := find(t, res.Claims, "f1", "icu")
	assert.Equal(t, model.StatusPresent, icu.Status)
	assert.Equal(t, model.LabelConfirmed, icu.ConfidenceLabel)
	assert.Empty(t, icu.Flags)

	absent := find(t, res.Claims, "f2", "icu")
	assert.Equal(t, model.StatusAbsent, absent.Status)
	assert.Equal(t, model.LabelUncertain, absent.ConfidenceLabel)

	strict := find(t, res.Claims, "f3", "icu")
	assert.Equal(t, model.StatusUncertain, strict.Status)
	assert.Equal(t, model.StatusPresent, strict.OriginalStatus)
	assert.True(t, strict.HasFlag(model.FlagMissingPrerequisite))
	assert.Contains(t, strict.MissingPrerequisites, "oxygen_supply")
	assert.Equal(t, model.UnknownFacility, strict.FacilityName)
}

func TestBuild_LenientKeepsPresent(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Verification.PrerequisiteStrict = false
	p := NewPipeline(cfg, ontology.Parse(nil, nil))

	res, err := p.Build(context.Background(), sampleChunks())
	require.NoError(t, err)

	icu := find(t, res.Claims, "f3", "icu")
	assert.Equal(t, model.StatusPresent, icu.Status)
	assert.True(t, icu.HasFlag(model.FlagMissingPrerequisite))
}

func TestBuild_Empty(t *testing.T) {
	p := newTestPipeline(t)

	res, err := p.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Claims)
	assert.Empty(t, res.Matches)
}

func TestBuild_Cancelled(t *testing.T) {
	p := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Build(ctx, sampleChunks())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBuild_ExtractionCache(t *testing.T) {
	mem := cache.NewMemoryCache(time.Hour, time.Hour)
	p := newTestPipeline(t, WithExtractionCache(mem))

	first, err := p.Build(context.Background(), sampleChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, mem.Len())

	second, err := p.Build(context.Background(), sampleChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, mem.Len())

	require.Len(t, second.Claims, len(first.Claims))
	for i := range first.Claims {
		assert.Equal(t, first.Claims[i].Status, second.Claims[i].Status)
		assert.Equal(t, first.Claims[i].EvidenceIDs, second.Claims[i].EvidenceIDs)
		assert.True(t, second.Claims[i].UpdatedAt.After(first.Claims[i].UpdatedAt))
	}
	assert.Equal(t, len(first.Matches), len(second.Matches))
}

func TestBuild_SharedScoreCache(t *testing.T) {
	mem := cache.NewMemoryCache(time.Hour, time.Hour)
	first := newTestPipeline(t, WithScoreCache(mem))
	second := newTestPipeline(t, WithScoreCache(mem))

	a, err := first.Build(context.Background(), sampleChunks())
	require.NoError(t, err)
	filled := mem.Len()
	assert.Positive(t, filled)

	b, err := second.Build(context.Background(), sampleChunks())
	require.NoError(t, err)
	assert.Equal(t, filled, mem.Len())

	require.Len(t, b.Claims, len(a.Claims))
	for i := range a.Claims {
		assert.Equal(t, a.Claims[i].Confidence, b.Claims[i].Confidence)
		assert.Equal(t, a.Claims[i].ConfidenceExplanation, b.Claims[i].ConfidenceExplanation)
	}
}

func TestBuildFromDocuments(t *testing.T) {
	p := newTestPipeline(t)
	docs := []model.RawDocument{
		{FacilityID: "f1", SourceType: "html", SourceRef: "https://example.org",
			Text: "<html><body><p>We provide dialysis.</p><script>no dialysis</script></body></html>"},
	}

	res, err := p.BuildFromDocuments(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.RawDocuments)
	require.Len(t, res.Chunks, 1)

	dialysis := find(t, res.Claims, "f1", "dialysis")
	assert.Equal(t, 0, dialysis.NegativeMatchCount)
	assert.Equal(t, model.StatusUncertain, dialysis.Status)
}

func TestBuildFromDocuments_NoChunks(t *testing.T) {
	p := newTestPipeline(t)
	docs := []model.RawDocument{{FacilityID: "f1", SourceType: "web", SourceRef: "https://example.org", Text: "   \n\t "}}

	_, err := p.BuildFromDocuments(context.Background(), docs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoChunks))
}

func TestPrepareForVerification(t *testing.T) {
	in := []model.Claim{{
		FacilityID:         "f1",
		Capability:         "icu",
		RawExplanation:     "icu: status=present; strong=2, weak=1, negative=0",
		EvidenceCount:      -1,
		SourceSupportCount: -1,
		EvidenceIDs:        []string{"ev_a", "ev_b"},
		EvidenceSourceRefs: []string{"s1", "s1"},
	}}

	out := PrepareForVerification(in)

	require.Len(t, out, 1)
	c := out[0]
	assert.Equal(t, 2, c.StrongMatchCount)
	assert.Equal(t, 1, c.WeakMatchCount)
	assert.Equal(t, 2, c.EvidenceCount)
	assert.Equal(t, 1, c.SourceSupportCount)
	assert.Equal(t, model.UnknownFacility, c.FacilityName)
	assert.Equal(t, model.UnknownCountry, c.Country)
	assert.Equal(t, model.UnknownCategory, c.Category)
	assert.Equal(t, model.StatusAbsent, c.Status)
	assert.Equal(t, -1, in[0].EvidenceCount)
}

func TestPrepareForVerification_UnparseableExplanation(t *testing.T) {
	out := PrepareForVerification([]model.Claim{{
		FacilityID:       "f1",
		Capability:       "icu",
		Status:           model.StatusPresent,
		StrongMatchCount: 4,
		RawExplanation:   "free text",
	}})

	assert.Zero(t, out[0].StrongMatchCount)
	assert.Equal(t, model.StatusPresent, out[0].Status)
}

func TestReverify(t *testing.T) {
	p := newTestPipeline(t)
	res, err := p.Build(context.Background(), sampleChunks())
	require.NoError(t, err)

	ver, err := p.Reverify(context.Background(), res.Claims)
	require.NoError(t, err)

	assert.Equal(t, len(res.Claims), ver.Summary.RowsEvaluated)
	assert.Equal(t, 3, ver.Summary.FacilitiesEvaluated)
	assert.Equal(t, len(ver.Anomalies), ver.Summary.AnomalyRows)
	assert.Positive(t, ver.Summary.MissingPrerequisiteRows)

	for _, c := range ver.Anomalies {
		assert.True(t, IsAnomaly(c))
	}
	for i := range res.Claims {
		assert.Equal(t, res.Claims[i].Status, ver.Claims[i].Status, res.Claims[i].Capability)
	}
}

func TestReverify_StableAcrossTables(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t)
	res, err := p.Build(ctx, sampleChunks())
	require.NoError(t, err)

	tests := []struct {
		name  string
		file  string
		write func(string, []model.Claim) error
	}{
		{"csv", "claims.csv", tabular.WriteClaimsCSV},
		{"json", "claims.json", tabular.WriteClaimsJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			prev := res.Claims
			for pass := 1; pass <= 2; pass++ {
				path := filepath.Join(dir, strconv.Itoa(pass)+"_"+tt.file)
				require.NoError(t, tt.write(path, prev))
				loaded, err := tabular.ReadClaims(path)
				require.NoError(t, err)

				ver, err := p.Reverify(ctx, loaded)
				require.NoError(t, err)
				require.Len(t, ver.Claims, len(prev))

				for i := range prev {
					want, got := prev[i], ver.Claims[i]
					key := want.FacilityID + "/" + want.Capability
					assert.Equal(t, want.Status, got.Status, key)
					assert.InDelta(t, want.Confidence, got.Confidence, 1e-9, key)
					assert.Equal(t, want.ConfidenceLabel, got.ConfidenceLabel, key)
					assert.ElementsMatch(t, want.Flags, got.Flags, key)
					assert.ElementsMatch(t, want.MissingPrerequisites, got.MissingPrerequisites, key)
				}
				prev = ver.Claims
			}
		})
	}
}

func TestReverify_NoClaims(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.Reverify(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrNoClaims))
}

func TestPersist(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "text2med.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	p := newTestPipeline(t, WithStore(s))
	res, err := p.Build(ctx, sampleChunks())
	require.NoError(t, err)

	runID, err := p.Persist(ctx, res)
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	assert.Equal(t, runID, res.Summary.RunID)

	stored, err := s.LoadClaims(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, len(res.Claims))

	matches, err := s.CountMatches(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, len(res.Matches), matches)
}

func TestPersist_NoStore(t *testing.T) {
	p := newTestPipeline(t)

	runID, err := p.Persist(context.Background(), &BuildResult{})
	require.NoError(t, err)
	assert.Empty(t, runID)
}

func TestWriteArtifacts(t *testing.T) {
	p := newTestPipeline(t)
	res, err := p.Build(context.Background(), sampleChunks())
	require.NoError(t, err)

	dir := t.TempDir()
	paths, err := p.WriteArtifacts(context.Background(), res, dir)
	require.NoError(t, err)
	assert.Len(t, paths, 7)

	for _, name := range []string{ChunksFile, RawClaimsFile, ClaimsJSONFile, ClaimsCSVFile, MatchesFile, RunSummaryFile, ReportFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestWriteArtifacts_TracingOff(t *testing.T) {
	p := newTestPipeline(t)
	p.cfg.Tracing.ExportTraces = false
	res, err := p.Build(context.Background(), sampleChunks())
	require.NoError(t, err)

	dir := t.TempDir()
	paths, err := p.WriteArtifacts(context.Background(), res, dir)
	require.NoError(t, err)
	assert.NotContains(t, paths, filepath.Join(dir, MatchesFile))
}

func TestWriteVerification(t *testing.T) {
	p := newTestPipeline(t)
	res, err := p.Build(context.Background(), sampleChunks())
	require.NoError(t, err)
	ver, err := p.Reverify(context.Background(), res.Claims)
	require.NoError(t, err)

	dir := t.TempDir()
	paths, err := p.WriteVerification(context.Background(), ver, "", dir)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, VerifiedFile), ver.Summary.OutputPath)
	for _, path := range paths {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}
}

func TestRenderer(t *testing.T) {
	p := newTestPipeline(t)
	res, err := p.Build(context.Background(), sampleChunks())
	require.NoError(t, err)

	var md bytes.Buffer
	require.NoError(t, p.Renderer().RenderMarkdown(&md, res))
	assert.Contains(t, md.String(), "# text2med capability report")
	assert.Contains(t, md.String(), "| Mercy Hospital | icu | present |")
	assert.Contains(t, md.String(), "## Verification findings")

	var out bytes.Buffer
	p.Renderer().RenderBuild(&out, res)
	assert.Contains(t, out.String(), "text2med Build Complete")
	assert.Contains(t, out.String(), "Claims:     48")
}
