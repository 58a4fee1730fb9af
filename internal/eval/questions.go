package eval

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Question types understood by the suite
const (
	TypeCapabilityStatusCount = "capability_status_count"
	TypeMissingPrerequisite   = "missing_prerequisite"
)

// Question is one acceptance question over a final claims table
type Question struct {
	ID       string `yaml:"id" json:"id"`
	Prompt   string `yaml:"prompt" json:"prompt"`
	Question string `yaml:"question" json:"question"`
	Type     string `yaml:"type" json:"type"`
	Required bool   `yaml:"required" json:"required"`

	Capability string   `yaml:"capability" json:"capability"`
	Statuses   []string `yaml:"statuses" json:"statuses"`
	StatusIn   []string `yaml:"status_in" json:"status_in"`

	Prerequisite       string   `yaml:"prerequisite" json:"prerequisite"`
	RequiredCapability string   `yaml:"required_capability" json:"required_capability"`
	CapabilityStatuses []string `yaml:"capability_statuses" json:"capability_statuses"`
	LackingStatuses    []string `yaml:"lacking_statuses" json:"lacking_statuses"`

	ExpectMin *int `yaml:"expect_min" json:"expect_min"`
	ExpectMax *int `yaml:"expect_max" json:"expect_max"`

	SourceFile string `yaml:"source_file" json:"source_file"`
}

// DefaultQuestions are evaluated when no question files match
func DefaultQuestions() []Question {
	return []Question{
		{
			ID:         "q_c_section_absent",
			Prompt:     "Where are C-sections unavailable?",
			Type:       TypeCapabilityStatusCount,
			Capability: "c_section",
			Statuses:   []string{"absent"},
		},
		{
			ID:           "q_icu_without_oxygen",
			Prompt:       "Which hospitals claim ICUs but lack oxygen?",
			Type:         TypeMissingPrerequisite,
			Capability:   "icu",
			Prerequisite: "oxygen_supply",
		},
	}
}

// LoadQuestions reads every question file matching pattern.
// Files may hold a list, a {questions: [...]} document or a single question;
// JSON files parse as YAML. No matches yields DefaultQuestions.
func LoadQuestions(ctx context.Context, pattern string) ([]Question, error) {
	if pattern == "" {
		return DefaultQuestions(), nil
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, eris.Wrapf(err, "eval: bad questions glob %q", pattern)
	}
	if len(paths) == 0 {
		zap.L().Debug("eval: no question files, using defaults", zap.String("pattern", pattern))
		return DefaultQuestions(), nil
	}
	sort.Strings(paths)

	perFile := make([][]Question, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			qs, err := loadQuestionFile(path)
			if err != nil {
				return err
			}
			perFile[i] = qs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Question
	for _, qs := range perFile {
		out = append(out, qs...)
	}
	return out, nil
}

func loadQuestionFile(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "eval: read %s", path)
	}
	qs, err := ParseQuestions(data)
	if err != nil {
		return nil, eris.Wrapf(err, "eval: parse %s", path)
	}
	for i := range qs {
		if qs[i].SourceFile == "" {
			qs[i].SourceFile = path
		}
	}
	return qs, nil
}

// ParseQuestions decodes a question document; entries that are not objects are skipped
func ParseQuestions(data []byte) ([]Question, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]

	switch root.Kind {
	case yaml.SequenceNode:
		return decodeEntries(root.Content)
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			if root.Content[i].Value == "questions" && root.Content[i+1].Kind == yaml.SequenceNode {
				return decodeEntries(root.Content[i+1].Content)
			}
		}
		return decodeEntries([]*yaml.Node{root})
	}
	return nil, nil
}

func decodeEntries(nodes []*yaml.Node) ([]Question, error) {
	out := make([]Question, 0, len(nodes))
	for _, n := range nodes {
		if n.Kind != yaml.MappingNode {
			continue
		}
		var q Question
		if err := n.Decode(&q); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}
