package score

import (
	"math"
	"strconv"
	"strings"
)

// Weight keys accepted in configuration
const (
	KeySpecificity          = "specificity"
	KeyMultiEvidence        = "multi_evidence"
	KeyPrerequisitePenalty  = "prerequisite_penalty"
	KeyContradictionPenalty = "contradiction_penalty"
)

// Weights are the coefficients of the linear confidence model
type Weights struct {
	Specificity          float64 `json:"specificity" yaml:"specificity"`
	MultiEvidence        float64 `json:"multi_evidence" yaml:"multi_evidence"`
	PrerequisitePenalty  float64 `json:"prerequisite_penalty" yaml:"prerequisite_penalty"`
	ContradictionPenalty float64 `json:"contradiction_penalty" yaml:"contradiction_penalty"`
}

// DefaultWeights returns the built-in coefficients
func DefaultWeights() Weights {
	return Weights{
		Specificity:          0.3,
		MultiEvidence:        0.2,
		PrerequisitePenalty:  -0.2,
		ContradictionPenalty: -0.3,
	}
}

// AsMap returns the weights keyed by configuration name
func (w Weights) AsMap() map[string]float64 {
	return map[string]float64{
		KeySpecificity:          w.Specificity,
		KeyMultiEvidence:        w.MultiEvidence,
		KeyPrerequisitePenalty:  w.PrerequisitePenalty,
		KeyContradictionPenalty: w.ContradictionPenalty,
	}
}

// WeightsFromMap overrides defaults with any numeric entries of m.
// Unknown keys are ignored; unusable values keep the default.
func WeightsFromMap(m map[string]any) Weights {
	w := DefaultWeights()
	for key, raw := range m {
		switch strings.ToLower(strings.TrimSpace(key)) {
		case KeySpecificity:
			w.Specificity = numeric(raw, w.Specificity)
		case KeyMultiEvidence:
			w.MultiEvidence = numeric(raw, w.MultiEvidence)
		case KeyPrerequisitePenalty:
			w.PrerequisitePenalty = numeric(raw, w.PrerequisitePenalty)
		case KeyContradictionPenalty:
			w.ContradictionPenalty = numeric(raw, w.ContradictionPenalty)
		}
	}
	return w
}

func numeric(raw any, fallback float64) float64 {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case int32:
		v = float64(x)
	case uint64:
		v = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return fallback
		}
		v = parsed
	default:
		return fallback
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
