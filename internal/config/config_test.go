package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "sentence", cfg.Chunking.Strategy)
	assert.Equal(t, 512, cfg.Chunking.MaxChars)
	assert.Equal(t, 5, cfg.Extraction.MaxEvidencePerClaim)
	assert.True(t, cfg.Verification.PrerequisiteStrict)
	assert.Equal(t, 4, cfg.Concurrency.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Tracing.ExportTraces)
	assert.Len(t, cfg.Confidence.Weights, 4)
	assert.InDelta(t, -0.3, cfg.Confidence.Weights["contradiction_penalty"], 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := `
extraction:
  max_evidence_per_claim: 3
verification:
  prerequisite_strict: false
confidence:
  weights:
    specificity: 0.5
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "text2med.yaml"), []byte(content), 0o644))

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Extraction.MaxEvidencePerClaim)
	assert.False(t, cfg.Verification.PrerequisiteStrict)
	assert.InDelta(t, 0.5, cfg.Confidence.Weights["specificity"], 0.001)
	assert.InDelta(t, 0.2, cfg.Confidence.Weights["multi_evidence"], 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TEXT2MED_CHUNKING_MAX_CHARS", "128")
	t.Setenv("TEXT2MED_STORE_ENABLED", "false")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.Chunking.MaxChars)
	assert.False(t, cfg.Store.Enabled)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	orig := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(orig) })

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
}
