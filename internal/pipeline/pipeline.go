package pipeline

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/text2med/internal/cache"
	"github.com/ppiankov/text2med/internal/chunk"
	"github.com/ppiankov/text2med/internal/config"
	"github.com/ppiankov/text2med/internal/extract"
	"github.com/ppiankov/text2med/internal/model"
	"github.com/ppiankov/text2med/internal/ontology"
	"github.com/ppiankov/text2med/internal/score"
	"github.com/ppiankov/text2med/internal/store"
	"github.com/ppiankov/text2med/internal/tabular"
	"github.com/ppiankov/text2med/internal/verify"
)

// ErrNoChunks is reported when a build has nothing to extract from
var ErrNoChunks = eris.New("pipeline: no text chunks")

// ErrNoClaims is reported when a verification input has no claims
var ErrNoClaims = eris.New("pipeline: no claims")

// Pipeline orchestrates extraction, verification and scoring
type Pipeline struct {
	cfg      *config.Config
	ontology *ontology.Ontology
	verifier *verify.Verifier
	scorer   *score.Scorer
	cache    cache.Cache
	store    *store.Store
	renderer *Renderer
	now      func() time.Time
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithStore persists every run into s
func WithStore(s *store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithExtractionCache caches per-facility extraction output in c
func WithExtractionCache(c cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithScoreCache shares a score memo across pipelines
func WithScoreCache(c cache.Cache) Option {
	return func(p *Pipeline) { p.scorer.WithCache(c) }
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a new pipeline for cfg and ont
func NewPipeline(cfg *config.Config, ont *ontology.Ontology, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		ontology: ont,
		verifier: verify.NewVerifier(ont, verify.Options{PrerequisiteStrict: cfg.Verification.PrerequisiteStrict}),
		scorer:   score.NewScorer(score.WeightsFromMap(cfg.Confidence.Weights)),
		cache:    cache.Nop{},
		renderer: NewRenderer(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ontology returns the pipeline's ontology
func (p *Pipeline) Ontology() *ontology.Ontology {
	return p.ontology
}

// Renderer returns the pipeline's renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// Store returns the attached store, or nil
func (p *Pipeline) Store() *store.Store {
	return p.store
}

// BuildResult holds every table produced by one build
type BuildResult struct {
	Summary   model.RunSummary
	Chunks    []model.TextChunk
	RawClaims []model.Claim
	Claims    []model.Claim
	Matches   []model.ChunkMatch
}

// BuildFromDocuments chunks raw documents and builds claims from them
func (p *Pipeline) BuildFromDocuments(ctx context.Context, docs []model.RawDocument) (*BuildResult, error) {
	strategy, err := chunk.ParseStrategy(p.cfg.Chunking.Strategy)
	if err != nil {
		return nil, err
	}
	opts := chunk.DefaultOptions()
	opts.Strategy = strategy
	if p.cfg.Chunking.MaxChars > 0 {
		opts.MaxChars = p.cfg.Chunking.MaxChars
	}
	chunks, err := chunk.Normalize(docs, opts)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: normalize documents")
	}
	if len(chunks) == 0 {
		return nil, eris.Wrap(ErrNoChunks, "pipeline: documents produced no chunks")
	}

	res, err := p.Build(ctx, chunks)
	if err != nil {
		return nil, err
	}
	res.Summary.RawDocuments = len(docs)
	return res, nil
}

// BuildTable reads a chunk table and builds claims from it
func (p *Pipeline) BuildTable(ctx context.Context, path string) (*BuildResult, error) {
	chunks, err := tabular.ReadChunks(path)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, eris.Wrapf(ErrNoChunks, "pipeline: %s", path)
	}
	return p.Build(ctx, chunks)
}

// Build runs extraction, verification and scoring over chunks
func (p *Pipeline) Build(ctx context.Context, chunks []model.TextChunk) (*BuildResult, error) {
	started := p.now()
	opts := extract.Options{MaxEvidencePerClaim: p.cfg.Extraction.MaxEvidencePerClaim, Now: p.now}

	res := &BuildResult{
		Summary: model.RunSummary{Kind: "build", StartedAt: started},
		Chunks:  chunks,
	}

	for _, group := range extract.GroupByFacility(chunks) {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: build cancelled")
		}
		claims, matches := p.extractFacility(group, opts)
		res.RawClaims = append(res.RawClaims, claims...)
		res.Matches = append(res.Matches, matches...)
	}

	verified := p.verifier.Verify(res.RawClaims)
	res.Claims = p.scorer.Score(verified)

	res.Summary.TextChunks = len(res.Chunks)
	res.Summary.RawClaims = len(res.RawClaims)
	res.Summary.FinalClaims = len(res.Claims)
	res.Summary.Matches = len(res.Matches)

	zap.L().Info("pipeline: build complete",
		zap.Int("chunks", res.Summary.TextChunks),
		zap.Int("claims", res.Summary.FinalClaims),
		zap.Int("matches", res.Summary.Matches),
		zap.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

type cachedExtraction struct {
	Claims  []model.Claim      `json:"claims"`
	Matches []model.ChunkMatch `json:"matches"`
}

// extractFacility consults the extraction cache before running the extractor
func (p *Pipeline) extractFacility(group extract.FacilityGroup, opts extract.Options) ([]model.Claim, []model.ChunkMatch) {
	key := p.extractionKey(group, opts)

	if data, ok := p.cache.Get(key); ok {
		var hit cachedExtraction
		if err := json.Unmarshal(data, &hit); err == nil {
			zap.L().Debug("pipeline: extraction cache hit", zap.String("facility_id", group.FacilityID))
			now := p.now()
			for i := range hit.Claims {
				hit.Claims[i].UpdatedAt = now
			}
			return hit.Claims, hit.Matches
		}
	}

	claims, matches := extract.ExtractFacility(group, p.ontology, opts)

	if data, err := json.Marshal(cachedExtraction{Claims: claims, Matches: matches}); err == nil {
		ttl := time.Duration(p.cfg.Cache.TTLHours) * time.Hour
		if err := p.cache.Set(key, data, ttl); err != nil {
			zap.L().Warn("pipeline: extraction cache set", zap.String("facility_id", group.FacilityID), zap.Error(err))
		}
	}
	return claims, matches
}

func (p *Pipeline) extractionKey(group extract.FacilityGroup, opts extract.Options) string {
	parts := []string{
		p.ontology.Fingerprint(),
		strconv.Itoa(opts.MaxEvidencePerClaim),
		group.FacilityID,
		group.FacilityName,
		group.Country,
	}
	for _, c := range group.Chunks {
		parts = append(parts, c.ChunkID, c.DocID, c.SourceType, c.SourceRef, c.Text)
	}
	return cache.Key(parts...)
}

// Persist writes a build result into the attached store and returns the run id
func (p *Pipeline) Persist(ctx context.Context, res *BuildResult) (string, error) {
	if p.store == nil {
		return "", nil
	}

	runID, err := p.store.SaveRun(ctx, res.Summary)
	if err != nil {
		return "", err
	}
	res.Summary.RunID = runID

	if err := p.store.SaveChunks(ctx, runID, res.Chunks); err != nil {
		return runID, err
	}
	if err := p.store.SaveRawClaims(ctx, runID, res.RawClaims); err != nil {
		return runID, err
	}
	if err := p.store.SaveClaims(ctx, runID, res.Claims); err != nil {
		return runID, err
	}
	if p.cfg.Tracing.ExportTraces {
		if err := p.store.SaveMatches(ctx, runID, res.Matches); err != nil {
			return runID, err
		}
	}
	return runID, nil
}
