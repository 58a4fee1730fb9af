package config

import (
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. TEXT2MED_LOG_LEVEL
const EnvPrefix = "TEXT2MED"

// Config is the top-level text2med configuration
type Config struct {
	Paths        PathsConfig        `yaml:"paths" mapstructure:"paths"`
	Chunking     ChunkingConfig     `yaml:"chunking" mapstructure:"chunking"`
	Extraction   ExtractionConfig   `yaml:"extraction" mapstructure:"extraction"`
	Verification VerificationConfig `yaml:"verification" mapstructure:"verification"`
	Confidence   ConfidenceConfig   `yaml:"confidence" mapstructure:"confidence"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Tracing      TracingConfig      `yaml:"tracing" mapstructure:"tracing"`
	Eval         EvalConfig         `yaml:"eval" mapstructure:"eval"`
}

// PathsConfig locates ontology files and output artifacts
type PathsConfig struct {
	Capabilities  string `yaml:"capabilities" mapstructure:"capabilities"`
	Prerequisites string `yaml:"prerequisites" mapstructure:"prerequisites"`
	OutputDir     string `yaml:"output_dir" mapstructure:"output_dir"`
}

// ChunkingConfig controls document splitting
type ChunkingConfig struct {
	Strategy string `yaml:"strategy" mapstructure:"strategy"`
	MaxChars int    `yaml:"max_chars" mapstructure:"max_chars"`
}

// ExtractionConfig controls claim building
type ExtractionConfig struct {
	MaxEvidencePerClaim int `yaml:"max_evidence_per_claim" mapstructure:"max_evidence_per_claim"`
}

// VerificationConfig controls the verifier
type VerificationConfig struct {
	PrerequisiteStrict bool `yaml:"prerequisite_strict" mapstructure:"prerequisite_strict"`
}

// ConfidenceConfig holds the scorer weights; any subset may be overridden
type ConfidenceConfig struct {
	Weights map[string]any `yaml:"weights" mapstructure:"weights"`
}

// CacheConfig configures the layered extraction cache
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir      string `yaml:"dir" mapstructure:"dir"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// StoreConfig configures the SQLite store
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// ConcurrencyConfig bounds the batch worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig controls retrieval trace export
type TracingConfig struct {
	ExportTraces bool `yaml:"export_traces" mapstructure:"export_traces"`
}

// EvalConfig configures the evaluation suite
type EvalConfig struct {
	Questions   string `yaml:"questions" mapstructure:"questions"`
	FailOnCheck bool   `yaml:"fail_on_check" mapstructure:"fail_on_check"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Capabilities:  "configs/ontology/capabilities.yaml",
			Prerequisites: "configs/ontology/prerequisites.yaml",
			OutputDir:     "data/processed",
		},
		Chunking: ChunkingConfig{
			Strategy: "sentence",
			MaxChars: 512,
		},
		Extraction: ExtractionConfig{
			MaxEvidencePerClaim: 5,
		},
		Verification: VerificationConfig{
			PrerequisiteStrict: true,
		},
		Confidence: ConfidenceConfig{
			Weights: map[string]any{
				"specificity":           0.3,
				"multi_evidence":        0.2,
				"prerequisite_penalty":  -0.2,
				"contradiction_penalty": -0.3,
			},
		},
		Cache: CacheConfig{
			Enabled:  false,
			Dir:      ".cache/text2med",
			TTLHours: 24,
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    "data/processed/text2med.db",
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Tracing: TracingConfig{
			ExportTraces: true,
		},
		Eval: EvalConfig{
			Questions:   "configs/eval/*.yaml",
			FailOnCheck: false,
		},
	}
}

// SetDefaults registers every DefaultConfig value on v
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("paths.capabilities", d.Paths.Capabilities)
	v.SetDefault("paths.prerequisites", d.Paths.Prerequisites)
	v.SetDefault("paths.output_dir", d.Paths.OutputDir)
	v.SetDefault("chunking.strategy", d.Chunking.Strategy)
	v.SetDefault("chunking.max_chars", d.Chunking.MaxChars)
	v.SetDefault("extraction.max_evidence_per_claim", d.Extraction.MaxEvidencePerClaim)
	v.SetDefault("verification.prerequisite_strict", d.Verification.PrerequisiteStrict)
	for key, weight := range d.Confidence.Weights {
		v.SetDefault("confidence.weights."+key, weight)
	}
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.ttl_hours", d.Cache.TTLHours)
	v.SetDefault("store.enabled", d.Store.Enabled)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("concurrency.workers", d.Concurrency.Workers)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("tracing.export_traces", d.Tracing.ExportTraces)
	v.SetDefault("eval.questions", d.Eval.Questions)
	v.SetDefault("eval.fail_on_check", d.Eval.FailOnCheck)
}

// Load reads configuration into v from defaults, an optional YAML file
// and TEXT2MED_* environment variables. An explicit path must exist;
// otherwise text2med.yaml is searched in . and $HOME/.text2med.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("text2med")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.text2med")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}
