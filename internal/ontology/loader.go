package ontology

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type capabilityEntry struct {
	ID              string   `yaml:"id"`
	Synonyms        []string `yaml:"synonyms"`
	StrongPhrases   []string `yaml:"strong_phrases"`
	WeakPhrases     []string `yaml:"weak_phrases"`
	NegativePhrases []string `yaml:"negative_phrases"`
}

type capabilitiesFile struct {
	Categories   yaml.Node   `yaml:"categories"`
	Capabilities []yaml.Node `yaml:"capabilities"`
}

type prerequisiteRule struct {
	Requires []string `yaml:"requires"`
}

type prerequisitesFile struct {
	Rules map[string]yaml.Node `yaml:"rules"`
}

// Load reads the capability and prerequisite files.
// Missing or malformed files are logged and replaced by built-in defaults.
func Load(capabilitiesPath, prerequisitesPath string) *Ontology {
	return Parse(readOptional(capabilitiesPath), readOptional(prerequisitesPath))
}

func readOptional(path string) []byte {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			zap.L().Warn("ontology: read file", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	return data
}

// Parse builds an ontology from raw YAML documents (either may be empty)
func Parse(capYAML, prereqYAML []byte) *Ontology {
	categories, explicit, explicitOrder := parseCapabilities(capYAML)
	rules := parsePrerequisites(prereqYAML)

	if len(categories) == 0 && len(explicit) == 0 {
		categories = defaultCategories()
	}

	// 1. Collect ids: category members first, then explicit-only entries
	var ids []string
	seen := make(map[string]bool)
	categoryOf := make(map[string]string)
	for _, c := range categories {
		for _, id := range c.IDs {
			if _, ok := categoryOf[id]; !ok {
				categoryOf[id] = c.Name
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	var uncategorized []string
	for _, id := range explicitOrder {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
			uncategorized = append(uncategorized, id)
		}
	}
	if len(uncategorized) > 0 {
		categories = appendToCategory(categories, UncategorizedCategory, uncategorized)
	}

	// 2. Build definitions
	defs := make(map[string]Definition, len(ids))
	for _, id := range ids {
		entry := explicit[id]
		category, ok := categoryOf[id]
		if !ok {
			category = UncategorizedCategory
		}

		synonyms := []string{label(id)}
		synonyms = append(synonyms, defaultSynonyms[id]...)
		synonyms = append(synonyms, entry.Synonyms...)
		synonyms = dedupe(synonyms)

		strong, weak, negative := synthesize(id, synonyms)
		prereqs := append(append([]string(nil), rules[id]...), defaultPrerequisites[id]...)

		defs[id] = Definition{
			ID:              id,
			Category:        category,
			Synonyms:        synonyms,
			StrongPhrases:   dedupe(append(append([]string(nil), entry.StrongPhrases...), strong...)),
			WeakPhrases:     dedupe(append(append([]string(nil), entry.WeakPhrases...), weak...)),
			NegativePhrases: dedupe(append(append([]string(nil), entry.NegativePhrases...), negative...)),
			Prerequisites:   dedupe(prereqs),
		}
	}

	return &Ontology{definitions: defs, categories: categories}
}

// parseCapabilities keeps category declaration order via the raw YAML node
func parseCapabilities(data []byte) ([]Category, map[string]capabilityEntry, []string) {
	explicit := make(map[string]capabilityEntry)
	if len(data) == 0 {
		return nil, explicit, nil
	}

	var file capabilitiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		zap.L().Warn("ontology: malformed capabilities file, using defaults", zap.Error(err))
		return nil, explicit, nil
	}

	var categories []Category
	if file.Categories.Kind == yaml.MappingNode {
		content := file.Categories.Content
		for i := 0; i+1 < len(content); i += 2 {
			var members []string
			if err := content[i+1].Decode(&members); err != nil {
				zap.L().Warn("ontology: skipping category", zap.String("category", content[i].Value), zap.Error(err))
				continue
			}
			// Category names are kept as written; only member ids are normalized
			name := content[i].Value
			normalized := make([]string, 0, len(members))
			for _, m := range members {
				if id := normalizeID(m); id != "" {
					normalized = append(normalized, id)
				}
			}
			categories = append(categories, Category{Name: name, IDs: normalized})
		}
	}

	var order []string
	for _, node := range file.Capabilities {
		var entry capabilityEntry
		if err := node.Decode(&entry); err != nil {
			zap.L().Warn("ontology: skipping capability entry", zap.Error(err))
			continue
		}
		id := strings.ToLower(strings.TrimSpace(entry.ID))
		if id == "" {
			continue
		}
		entry.ID = id
		if _, ok := explicit[id]; !ok {
			order = append(order, id)
		}
		explicit[id] = entry
	}
	return categories, explicit, order
}

func parsePrerequisites(data []byte) map[string][]string {
	rules := make(map[string][]string)
	if len(data) == 0 {
		return rules
	}

	var file prerequisitesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		zap.L().Warn("ontology: malformed prerequisites file, using defaults", zap.Error(err))
		return rules
	}

	for capability, node := range file.Rules {
		var rule prerequisiteRule
		if err := node.Decode(&rule); err != nil {
			zap.L().Warn("ontology: skipping prerequisite rule", zap.String("capability", capability), zap.Error(err))
			continue
		}
		var requires []string
		for _, req := range rule.Requires {
			if req = strings.ToLower(strings.TrimSpace(req)); req != "" {
				requires = append(requires, req)
			}
		}
		rules[strings.ToLower(strings.TrimSpace(capability))] = requires
	}
	return rules
}

func defaultCategories() []Category {
	out := make([]Category, len(defaultCatalogue))
	for i, c := range defaultCatalogue {
		out[i] = Category{Name: c.Name, IDs: append([]string(nil), c.IDs...)}
	}
	return out
}

func appendToCategory(categories []Category, name string, ids []string) []Category {
	for i := range categories {
		if categories[i].Name == name {
			categories[i].IDs = append(categories[i].IDs, ids...)
			return categories
		}
	}
	return append(categories, Category{Name: name, IDs: ids})
}
