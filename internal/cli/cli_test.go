package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/text2med/internal/model"
	"github.com/ppiankov/text2med/internal/pipeline"
	"github.com/ppiankov/text2med/internal/score"
	"github.com/ppiankov/text2med/internal/tabular"
)

const chunkTable = `facility_id,facility_name,country,doc_id,chunk_id,chunk_index,source_type,source_ref,origin_field,chunk_text
f1,Mercy Hospital,Ghana,d1,c1,0,web,https://example.org/f1,description,ICU available with oxygen supply and ventilators
f2,Hill Clinic,Ghana,d2,c2,0,web,https://example.org/f2,description,No ICU and no ventilator support available
f3,,,d3,c3,0,report,report-3,,Provides ICU. No oxygen.
`

func writeFixture(t *testing.T) (dir, configPath, chunks string) {
	t.Helper()
	dir = t.TempDir()
	out := filepath.Join(dir, "out")

	chunks = filepath.Join(dir, "chunks.csv")
	require.NoError(t, os.WriteFile(chunks, []byte(chunkTable), 0o644))

	configPath = filepath.Join(dir, "text2med.yaml")
	yaml := fmt.Sprintf(`paths:
  capabilities: %[1]s/missing.yaml
  prerequisites: %[1]s/missing.yaml
  output_dir: %[2]s
store:
  enabled: true
  path: %[2]s/text2med.db
eval:
  questions: %[1]s/questions/*.yaml
log:
  level: error
`, dir, out)
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o644))
	return dir, configPath, chunks
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestBuildVerifyEvalExport(t *testing.T) {
	dir, configPath, chunks := writeFixture(t)
	out := filepath.Join(dir, "out")

	require.NoError(t, run(t, "build", "--config", configPath, "--chunks", chunks))
	for _, name := range []string{pipeline.ClaimsJSONFile, pipeline.ClaimsCSVFile, pipeline.ChunksFile, pipeline.MatchesFile} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	assert.FileExists(t, filepath.Join(out, "text2med.db"))

	claims, err := tabular.ReadClaims(filepath.Join(out, pipeline.ClaimsCSVFile))
	require.NoError(t, err)
	assert.NotEmpty(t, claims)

	require.NoError(t, run(t, "verify", "--config", configPath, "--input", filepath.Join(out, pipeline.ClaimsCSVFile)))
	verified, err := tabular.ReadClaimsJSON(filepath.Join(out, pipeline.VerifiedFile))
	require.NoError(t, err)
	assert.Len(t, verified, len(claims))

	require.NoError(t, run(t, "eval", "--config", configPath, "--fail-on-check"))
	var summary model.EvalSummary
	raw, err := os.ReadFile(filepath.Join(out, EvalSummaryFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Zero(t, summary.CriticalFailed)
	assert.Len(t, summary.Questions, 2)

	exported := filepath.Join(dir, "export.json")
	require.NoError(t, run(t, "export", "--config", configPath, "--format", "json", "--output", exported))
	assert.FileExists(t, exported)
}

func TestEvalFailOnCheck(t *testing.T) {
	dir, configPath, _ := writeFixture(t)
	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("[]"), 0o644))

	err := run(t, "eval", "--config", configPath, "--input", empty, "--fail-on-check", "--dry-run")
	assert.ErrorIs(t, err, errEvalFailed)
}

func TestBuildRequiresInput(t *testing.T) {
	_, configPath, _ := writeFixture(t)
	documentsPath, chunksPath = "", ""

	err := run(t, "build", "--config", configPath)
	assert.Error(t, err)
}

func TestInvalidWeight(t *testing.T) {
	_, configPath, _ := writeFixture(t)
	defer func() { weightArg = nil }()

	err := run(t, "version", "--config", configPath, "--weight", "specificity")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	_, configPath, _ := writeFixture(t)
	target := filepath.Join(t.TempDir(), "nested", "text2med.yaml")

	require.NoError(t, run(t, "config", "init", "--config", configPath, "--path", target))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(data, []byte("max_evidence_per_claim: 5")))

	assert.Error(t, run(t, "config", "init", "--config", configPath, "--path", target))
}

func TestBuildDocumentsWithoutChunks(t *testing.T) {
	dir, configPath, _ := writeFixture(t)
	docs := filepath.Join(dir, "docs.csv")
	require.NoError(t, os.WriteFile(docs, []byte("facility_id,source_type,source_ref,text\nf1,web,https://example.org,\"   \"\n"), 0o644))
	defer func() { documentsPath = "" }()
	buildCmd.Flags().Lookup("chunks").Changed = false
	chunksPath = ""

	err := run(t, "build", "--config", configPath, "--documents", docs, "--dry-run")
	assert.ErrorIs(t, err, pipeline.ErrNoChunks)
	assert.NoFileExists(t, filepath.Join(dir, "out", pipeline.ClaimsJSONFile))
}

func TestConfigShow(t *testing.T) {
	_, configPath, _ := writeFixture(t)
	defer func() { weightArg = nil }()

	assert.NoError(t, run(t, "config", "show", "--config", configPath, "--weight", "specificity=0.4"))
	assert.Equal(t, 0.4, score.WeightsFromMap(cfg.Confidence.Weights).AsMap()[score.KeySpecificity])
}
