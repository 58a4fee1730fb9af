package score

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/text2med/internal/cache"
	"github.com/ppiankov/text2med/internal/model"
)

// Label thresholds
const (
	ConfirmedThreshold = 0.7
	ProbableThreshold  = 0.45
)

var baseScores = map[model.Status]float64{
	model.StatusPresent:   0.55,
	model.StatusUncertain: 0.35,
	model.StatusAbsent:    0.05,
}

const unknownStatusBase = 0.1

// Signal is one weighted input of the confidence model
type Signal struct {
	Name   string                 `json:"name"`
	Value  float64                `json:"value"`
	Weight float64                `json:"weight"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// Contribution returns weight times value
func (s Signal) Contribution() float64 {
	return s.Weight * s.Value
}

// Result is the scored outcome of one claim
type Result struct {
	Base        float64               `json:"base"`
	Confidence  float64               `json:"confidence"`
	Label       model.ConfidenceLabel `json:"label"`
	Explanation string                `json:"explanation"`
	Signals     []Signal              `json:"signals"`
}

// Scorer turns verified claims into bounded confidence scores
type Scorer struct {
	weights Weights
	cache   cache.Cache
}

// NewScorer creates a new scorer with a private in-memory result cache
func NewScorer(weights Weights) *Scorer {
	return &Scorer{
		weights: weights,
		cache:   cache.NewMemoryCache(30*time.Minute, 10*time.Minute),
	}
}

// WithCache replaces the result cache, e.g. to share one across batch workers
func (s *Scorer) WithCache(c cache.Cache) *Scorer {
	s.cache = c
	return s
}

// Score returns a scored copy of claims
func (s *Scorer) Score(claims []model.Claim) []model.Claim {
	out := make([]model.Claim, len(claims))
	for i := range claims {
		c := claims[i].Clone()
		r := s.Evaluate(c)
		c.Confidence = r.Confidence
		c.ConfidenceLabel = r.Label
		c.ConfidenceExplanation = r.Explanation
		out[i] = c
	}
	return out
}

// Evaluate scores a single claim, consulting the cache first
func (s *Scorer) Evaluate(c model.Claim) Result {
	key := s.cacheKey(c)
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			var r Result
			if err := json.Unmarshal(data, &r); err == nil {
				return r
			}
		}
	}

	r := s.compute(c)

	if s.cache != nil {
		if data, err := json.Marshal(r); err == nil {
			if err := s.cache.Set(key, data, 0); err != nil {
				zap.L().Debug("score: cache set", zap.Error(err))
			}
		}
	}
	return r
}

func (s *Scorer) compute(c model.Claim) Result {
	base, ok := baseScores[c.Status]
	if !ok {
		base = unknownStatusBase
	}

	signals := s.signals(c)
	total := base
	for _, sig := range signals {
		total += sig.Contribution()
	}
	confidence := clamp(total)

	return Result{
		Base:       base,
		Confidence: confidence,
		Label:      Label(confidence),
		Explanation: fmt.Sprintf("base=%.2f, strong=%d, evidence=%d, sources=%d, missing_prereq=%d, contradictions=%d",
			base, c.StrongMatchCount, c.EvidenceCount, c.SourceSupportCount,
			len(c.MissingPrerequisites), c.ContradictionCount),
		Signals: signals,
	}
}

// signals derives the four bounded model inputs of a claim
func (s *Scorer) signals(c model.Claim) []Signal {
	prereq := 0.0
	if len(c.MissingPrerequisites) > 0 {
		prereq = 1
	}

	return []Signal{
		{
			Name:   KeySpecificity,
			Value:  clamp(float64(c.StrongMatchCount) / 2),
			Weight: s.weights.Specificity,
			Data: map[string]interface{}{
				"strong_matches": c.StrongMatchCount,
				"formula":        "min(1, strong_matches / 2)",
			},
		},
		{
			Name:   KeyMultiEvidence,
			Value:  clamp(math.Max(0, float64(c.SourceSupportCount)-1) / 2),
			Weight: s.weights.MultiEvidence,
			Data: map[string]interface{}{
				"sources": c.SourceSupportCount,
				"formula": "min(1, max(0, sources - 1) / 2)",
			},
		},
		{
			Name:   KeyPrerequisitePenalty,
			Value:  prereq,
			Weight: s.weights.PrerequisitePenalty,
			Data: map[string]interface{}{
				"missing": len(c.MissingPrerequisites),
				"formula": "1 if any prerequisite missing else 0",
			},
		},
		{
			Name:   KeyContradictionPenalty,
			Value:  clamp(float64(c.ContradictionCount)),
			Weight: s.weights.ContradictionPenalty,
			Data: map[string]interface{}{
				"contradictions": c.ContradictionCount,
				"formula":        "min(1, contradictions)",
			},
		},
	}
}

func (s *Scorer) cacheKey(c model.Claim) string {
	w := s.weights
	return fmt.Sprintf("text2med:score:v1:%g:%g:%g:%g|%s|%d|%d|%d|%d|%d",
		w.Specificity, w.MultiEvidence, w.PrerequisitePenalty, w.ContradictionPenalty,
		c.Status, c.StrongMatchCount, c.EvidenceCount, c.SourceSupportCount,
		len(c.MissingPrerequisites), c.ContradictionCount)
}

// Label maps a confidence score to its categorical label
func Label(confidence float64) model.ConfidenceLabel {
	switch {
	case confidence >= ConfirmedThreshold:
		return model.LabelConfirmed
	case confidence >= ProbableThreshold:
		return model.LabelProbable
	default:
		return model.LabelUncertain
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
