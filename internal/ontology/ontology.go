package ontology

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Definition is the immutable description of one capability
type Definition struct {
	ID              string   `yaml:"id" json:"id"`
	Category        string   `yaml:"category" json:"category"`
	Synonyms        []string `yaml:"synonyms" json:"synonyms"`
	StrongPhrases   []string `yaml:"strong_phrases" json:"strong_phrases"`
	WeakPhrases     []string `yaml:"weak_phrases" json:"weak_phrases"`
	NegativePhrases []string `yaml:"negative_phrases" json:"negative_phrases"`
	Prerequisites   []string `yaml:"prerequisites" json:"prerequisites"`
}

// Category is a named, ordered group of capability ids
type Category struct {
	Name string   `yaml:"name" json:"name"`
	IDs  []string `yaml:"ids" json:"ids"`
}

// Ontology is the read-only capability knowledge base for one run
type Ontology struct {
	definitions map[string]Definition
	categories  []Category
}

// Get returns the definition for id
func (o *Ontology) Get(id string) (Definition, bool) {
	def, ok := o.definitions[id]
	return def, ok
}

// Len returns the number of defined capabilities
func (o *Ontology) Len() int {
	return len(o.definitions)
}

// Categories returns the categories in declaration order
func (o *Ontology) Categories() []Category {
	out := make([]Category, len(o.categories))
	for i, c := range o.categories {
		out[i] = Category{Name: c.Name, IDs: append([]string(nil), c.IDs...)}
	}
	return out
}

// Ordered returns definitions in category order, ids in list order.
// Category entries without a definition and repeated ids are skipped.
func (o *Ontology) Ordered() []Definition {
	var out []Definition
	seen := make(map[string]bool, len(o.definitions))
	for _, c := range o.categories {
		for _, id := range c.IDs {
			def, ok := o.definitions[id]
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, def)
		}
	}
	return out
}

// Fingerprint hashes the ordered phrase sets and prerequisites
func (o *Ontology) Fingerprint() string {
	h := sha256.New()
	for _, def := range o.Ordered() {
		fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s\n",
			def.ID,
			def.Category,
			strings.Join(def.StrongPhrases, ","),
			strings.Join(def.WeakPhrases, ","),
			strings.Join(def.NegativePhrases, ","),
			strings.Join(def.Prerequisites, ","),
		)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// label turns a capability id into its human-readable base term
func label(id string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(id, "_", " ")))
}

// normalizeID lowercases and snake-cases a capability id
func normalizeID(raw string) string {
	return strings.ReplaceAll(label(raw), " ", "_")
}

// dedupe lowercases, trims and removes repeats, keeping first occurrence
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		norm := strings.ToLower(strings.TrimSpace(v))
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out
}

func expand(templates, terms []string) []string {
	out := make([]string, 0, len(templates)*len(terms))
	for _, term := range terms {
		for _, tpl := range templates {
			out = append(out, fmt.Sprintf(tpl, term))
		}
	}
	return out
}

// synthesize builds the strong, weak and negative phrase sets for a term list
func synthesize(id string, synonyms []string) (strong, weak, negative []string) {
	terms := dedupe(append([]string{label(id)}, synonyms...))
	return dedupe(expand(strongTemplates, terms)),
		dedupe(expand(weakTemplates, terms)),
		dedupe(expand(negativeTemplates, terms))
}
